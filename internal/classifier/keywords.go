// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package classifier

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// ============================================================================
// KEYWORD SETS
// ============================================================================

// Category names used as keys of Result.KeywordSignals.
const (
	CategoryGrammar         = "grammar"
	CategoryLiterature      = "literature"
	CategoryHybrid          = "hybrid"
	CategoryGeneralPatterns = "general_patterns"
)

// grammarKeywords signal structured textbook content: particle, auxiliary
// verb, and conjugation vocabulary in English and Japanese.
var grammarKeywords = []string{
	"particle", "auxiliary", "conjugation", "tense", "form", "grammar", "rule",
	"ending", "suffix", "prefix", "inflection", "case", "aspect", "mood",
	"助詞", "助動詞", "活用", "語尾", "文法", "けり", "なり", "たり", "ぬ", "つ", "べし",
}

// literatureKeywords signal works, authors, and period culture the model
// knows better than a grammar textbook does.
var literatureKeywords = []string{
	"poem", "poetry", "genji", "tale", "kokin", "manyou", "author", "work",
	"heian", "kamakura", "court", "culture", "emperor", "empress", "novel",
	"chronicle", "diary", "sei shonagon", "murasaki", "basho", "issa",
	"歌", "詩", "物語", "日記", "源氏", "枕草子", "万葉", "古今", "新古今",
	"作者", "天皇", "中宮", "宮廷", "文化", "平安", "鎌倉",
}

// hybridKeywords signal explicit intent to combine textbook grounding with
// broader examples.
var hybridKeywords = []string{
	"example", "usage", "appears", "used in", "how does", "literature", "context",
	"meaning", "interpretation", "analysis", "compare", "difference", "similar",
	"explain", "clarify", "demonstrate", "illustrate", "show me",
	"例", "使用", "用法", "意味", "解釈", "分析", "説明", "例示", "違い", "比較",
}

// generalPatterns match phrasings that ask for background knowledge rather
// than textbook content.
var generalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`tell me about`),
	regexp.MustCompile(`what do you know about`),
	regexp.MustCompile(`background of`),
	regexp.MustCompile(`history of`),
	regexp.MustCompile(`who (was|is)`),
	regexp.MustCompile(`when (was|did)`),
	regexp.MustCompile(`cultural significance`),
	regexp.MustCompile(`influence of`),
}

// ============================================================================
// MATCHING
// ============================================================================

// foldQuestion normalizes a question for matching: lower-cased, with
// half-width katakana and full-width latin folded to their canonical forms
// so ＥＸＡＭＰＬＥ matches "example" and ｹﾘ matches けり.
func foldQuestion(q string) string {
	return strings.ToLower(width.Fold.String(q))
}

// matchKeywords runs case-insensitive substring matching of the question
// against the four keyword sets. Every category is present in the returned
// map, with an empty list when nothing matched. Overlaps across categories
// are expected; the decision matrix sorts them out.
func matchKeywords(question string) map[string][]string {
	folded := foldQuestion(question)

	signals := map[string][]string{
		CategoryGrammar:         {},
		CategoryLiterature:      {},
		CategoryHybrid:          {},
		CategoryGeneralPatterns: {},
	}

	for _, kw := range grammarKeywords {
		if strings.Contains(folded, foldQuestion(kw)) {
			signals[CategoryGrammar] = append(signals[CategoryGrammar], kw)
		}
	}
	for _, kw := range literatureKeywords {
		if strings.Contains(folded, foldQuestion(kw)) {
			signals[CategoryLiterature] = append(signals[CategoryLiterature], kw)
		}
	}
	for _, kw := range hybridKeywords {
		if strings.Contains(folded, foldQuestion(kw)) {
			signals[CategoryHybrid] = append(signals[CategoryHybrid], kw)
		}
	}
	for _, pat := range generalPatterns {
		if pat.MatchString(folded) {
			signals[CategoryGeneralPatterns] = append(signals[CategoryGeneralPatterns], pat.String())
		}
	}

	return signals
}
