// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/davidbennett1979/classical-japanese-assistant/internal/classifier"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/retrieval"
)

// =============================================================================
// TEMPLATES
// =============================================================================

// Placeholders substituted by RenderTemplate.
const (
	PlaceholderContext  = "{context}"
	PlaceholderQuestion = "{question}"
)

// DefaultRAGTemplate is the textbook-only prompt used when no template
// file is configured.
const DefaultRAGTemplate = `You are an expert Classical Japanese tutor with deep knowledge of grammar, vocabulary, and classical texts.

## Retrieved Context from Textbook:
{context}

## Student Question:
{question}

## Instructions:
1. Answer the question using the context provided above
2. Explain any grammatical terms clearly
3. Provide examples when helpful
4. Always cite sources using [number] format when referencing the context
5. If the context doesn't contain enough information, state that clearly
6. Use both Japanese characters and romanization when discussing specific words

## Response:`

// generalPreamble establishes the model as a literature expert for
// questions answered without retrieved context.
const generalPreamble = `You are an expert on Classical Japanese literature, history, and culture, from the Nara period through the Edo period.

Answer the following question from your own knowledge. Explain any grammatical or literary terms clearly, provide examples where helpful, and use both Japanese characters and romanization when discussing specific words.

## Question:
`

// hybridTemplate asks for a sectioned answer so textbook material and
// general knowledge stay visually distinct.
const hybridTemplate = `You are an expert Classical Japanese tutor with deep knowledge of grammar, vocabulary, and classical texts.

## Retrieved Context from Textbook:
{context}

## Student Question:
{question}

## Instructions:
Organize your answer into exactly three labeled sections:

### 📚 Textbook Explanation
Answer from the retrieved context above, citing sources with [number] format. If the context is insufficient, state that clearly.

### 🎭 Literary Examples
Supplement with examples from classical literature drawn from your own knowledge, clearly marked as outside the textbook.

### 💡 Synthesis
Connect the textbook explanation and the literary examples into a concise summary for the student.

Use both Japanese characters and romanization when discussing specific words.

## Response:`

// =============================================================================
// CONTEXT FORMATTING
// =============================================================================

// ContextBlock formats retrieved passages as a numbered block with
// source and page attribution. Returns a placeholder note when no
// passages were retrieved so templates never render an empty section.
func ContextBlock(passages []retrieval.Passage) string {
	if len(passages) == 0 {
		return "(no passages retrieved)"
	}
	var b strings.Builder
	for i, p := range passages {
		page := p.Page
		if page == "" {
			page = "N/A"
		}
		fmt.Fprintf(&b, "\n[%d] Source: %s, Page: %s\n", i+1, p.SourceOrUnknown(), page)
		b.WriteString("Content: " + p.Text + "\n")
		b.WriteString(strings.Repeat("-", 40))
	}
	return b.String()
}

// RenderTemplate substitutes the context block and question into a
// template. If the template lacks a question placeholder the question
// is appended, so the literal question text always reaches the model.
func RenderTemplate(templateSource, question, contextBlock string) string {
	out := strings.ReplaceAll(templateSource, PlaceholderContext, contextBlock)
	if strings.Contains(out, PlaceholderQuestion) {
		out = strings.ReplaceAll(out, PlaceholderQuestion, question)
	} else {
		out += "\n\n## Student Question:\n" + question
	}
	return out
}

// =============================================================================
// COMPOSER
// =============================================================================

// Composer builds prompts for each route. The RAG template can be
// replaced at runtime from a template file.
type Composer struct {
	ragTemplate string
}

// NewComposer creates a composer using the built-in templates.
func NewComposer() *Composer {
	return &Composer{ragTemplate: DefaultRAGTemplate}
}

// LoadRAGTemplate replaces the RAG template with the contents of a
// template file. The file should use {context} and {question}
// placeholders. The built-in template is kept on read failure.
func (c *Composer) LoadRAGTemplate(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompt template %s: %w", path, err)
	}
	c.ragTemplate = string(data)
	return nil
}

// Compose builds the prompt for the given route.
func (c *Composer) Compose(route classifier.Route, question string, passages []retrieval.Passage) string {
	switch route {
	case classifier.RouteGeneral:
		return c.ComposeGeneral(question)
	case classifier.RouteHybrid:
		return c.ComposeHybrid(question, passages)
	default:
		return c.ComposeRAG(question, passages)
	}
}

// ComposeRAG builds the textbook-only prompt.
func (c *Composer) ComposeRAG(question string, passages []retrieval.Passage) string {
	return RenderTemplate(c.ragTemplate, question, ContextBlock(passages))
}

// ComposeGeneral builds the no-context prompt ending in the literal
// question.
func (c *Composer) ComposeGeneral(question string) string {
	return generalPreamble + question
}

// ComposeHybrid builds the sectioned prompt mixing context and general
// knowledge.
func (c *Composer) ComposeHybrid(question string, passages []retrieval.Passage) string {
	return RenderTemplate(hybridTemplate, question, ContextBlock(passages))
}

// GrammarQuestion phrases a grammar point as a full tutoring question.
func GrammarQuestion(point string) string {
	return fmt.Sprintf("Explain the classical Japanese grammar point: %s. Include formation rules, usage, and examples.", point)
}

// TranslationQuestion phrases a passage as a translation request.
func TranslationQuestion(passage string) string {
	return fmt.Sprintf("Translate and analyze this classical Japanese passage: %s", passage)
}
