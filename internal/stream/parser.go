// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "unicode/utf8"

// =============================================================================
// THINK-DELIMITER PARSER
// =============================================================================

// Accepted delimiter spellings, longest first so the earliest-match search
// cannot truncate "<thought>" after its "<th" prefix.
var (
	openDelims  = []string{"<thought>", "<think>"}
	closeDelims = []string{"</thought>", "</think>"}
)

const (
	// maxLookahead bounds how long the parser waits for an opening
	// delimiter before assuming the model emitted none.
	maxLookahead = 50
	// tailHold is how many bytes are retained across token boundaries
	// while inside a thinking span, so a closing delimiter split across
	// two network chunks is still detected. Must exceed the longest
	// delimiter spelling.
	tailHold = 20
)

type parserState int

const (
	// stateAwaitOpen buffers tokens while looking for an opening delimiter.
	stateAwaitOpen parserState = iota
	// stateThinking emits deliberation text while watching for the close.
	stateThinking
	// stateAnswer emits everything immediately; no delimiters expected.
	stateAnswer
)

// Span is a fragment of classified output: thinking text or answer text.
type Span struct {
	Thinking bool
	Text     string
}

// ThinkParser is the streaming state machine that strips think delimiters
// from a raw token stream. It is pure: it performs no I/O and holds no
// locks, so the caller decides how spans become events.
type ThinkParser struct {
	state parserState
	buf   string
}

// NewThinkParser creates a parser. For a non-reasoning model the parser
// starts (and stays) in answer mode, passing every token through untouched.
func NewThinkParser(reasoningModel bool) *ThinkParser {
	p := &ThinkParser{state: stateAnswer}
	if reasoningModel {
		p.state = stateAwaitOpen
	}
	return p
}

// Feed consumes one raw token and returns the spans it released. A token
// may release zero spans (still buffering), one, or several (a delimiter
// completed inside it).
func (p *ThinkParser) Feed(token string) []Span {
	if token == "" {
		return nil
	}
	p.buf += token
	return p.drain(nil)
}

// Flush releases whatever the parser is still holding at end of stream.
// Text still awaiting an opening delimiter is treated as thinking, matching
// the lookahead-overflow fallback.
func (p *ThinkParser) Flush() []Span {
	spans := p.drain(nil)
	if p.buf != "" {
		spans = appendSpan(spans, Span{Thinking: p.state != stateAnswer, Text: p.buf})
		p.buf = ""
	}
	return spans
}

// drain runs state transitions until no more progress can be made on the
// current buffer.
func (p *ThinkParser) drain(spans []Span) []Span {
	for {
		switch p.state {
		case stateAnswer:
			if p.buf != "" {
				spans = appendSpan(spans, Span{Text: p.buf})
				p.buf = ""
			}
			return spans

		case stateAwaitOpen:
			if idx, n := findDelimiter(p.buf, openDelims); idx >= 0 {
				// Discard everything up to and including the delimiter;
				// leading text before it is model noise, not content.
				p.buf = p.buf[idx+n:]
				p.state = stateThinking
				continue
			}
			if len(p.buf) > maxLookahead {
				// Fail open: no delimiter within the lookahead window,
				// assume the model emits thinking without markers.
				spans = appendSpan(spans, Span{Thinking: true, Text: p.buf})
				p.buf = ""
				p.state = stateThinking
			}
			return spans

		case stateThinking:
			if idx, n := findDelimiter(p.buf, closeDelims); idx >= 0 {
				if idx > 0 {
					spans = appendSpan(spans, Span{Thinking: true, Text: p.buf[:idx]})
				}
				p.buf = p.buf[idx+n:]
				p.state = stateAnswer
				continue
			}
			// Emit everything except a held-back tail that might be the
			// start of a split closing delimiter.
			if len(p.buf) > tailHold {
				cut := runeBoundaryBefore(p.buf, len(p.buf)-tailHold)
				if cut > 0 {
					spans = appendSpan(spans, Span{Thinking: true, Text: p.buf[:cut]})
					p.buf = p.buf[cut:]
				}
			}
			return spans
		}
	}
}

// appendSpan drops empty spans so callers never see zero-length events.
func appendSpan(spans []Span, s Span) []Span {
	if s.Text == "" {
		return spans
	}
	return append(spans, s)
}

// findDelimiter returns the byte offset and length of the earliest
// case-insensitive occurrence of any delimiter spelling, or (-1, 0).
func findDelimiter(s string, delims []string) (int, int) {
	best, bestLen := -1, 0
	for _, d := range delims {
		if idx := indexFold(s, d); idx >= 0 && (best < 0 || idx < best) {
			best, bestLen = idx, len(d)
		}
	}
	return best, bestLen
}

// indexFold is an ASCII case-insensitive substring search. Delimiters are
// pure ASCII, so byte offsets into the original string stay valid.
func indexFold(s, substr string) int {
	n := len(substr)
	for i := 0; i+n <= len(s); i++ {
		if asciiEqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}

// asciiEqualFold compares two equal-length strings ignoring ASCII case.
func asciiEqualFold(a, b string) bool {
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// runeBoundaryBefore moves a byte offset backward until it lands on a UTF-8
// rune boundary, so held-back tails never split a multi-byte character.
func runeBoundaryBefore(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
