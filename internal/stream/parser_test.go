// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"
	"testing"
	"unicode/utf8"
)

// collect feeds spans into thinking and answer accumulators.
func collect(t *testing.T, spans []Span, thinking, answer *strings.Builder) {
	t.Helper()
	for _, s := range spans {
		if s.Text == "" {
			t.Fatal("parser released an empty span")
		}
		if s.Thinking {
			thinking.WriteString(s.Text)
		} else {
			answer.WriteString(s.Text)
		}
	}
}

// runParser feeds tokens through a fresh parser and returns the
// concatenated thinking and answer text.
func runParser(t *testing.T, reasoning bool, tokens []string) (string, string) {
	t.Helper()
	p := NewThinkParser(reasoning)
	var thinking, answer strings.Builder
	for _, tok := range tokens {
		collect(t, p.Feed(tok), &thinking, &answer)
	}
	collect(t, p.Flush(), &thinking, &answer)
	return thinking.String(), answer.String()
}

func TestThinkParserSeparation(t *testing.T) {
	tests := []struct {
		name         string
		tokens       []string
		wantThinking string
		wantAnswer   string
	}{
		{
			name:         "single_token",
			tokens:       []string{"<think>reasoning here</think>the answer"},
			wantThinking: "reasoning here",
			wantAnswer:   "the answer",
		},
		{
			name:         "thought_spelling",
			tokens:       []string{"<thought>steps</thought>done"},
			wantThinking: "steps",
			wantAnswer:   "done",
		},
		{
			name:         "mixed_spellings",
			tokens:       []string{"<think>steps</thought>done"},
			wantThinking: "steps",
			wantAnswer:   "done",
		},
		{
			name:         "case_insensitive",
			tokens:       []string{"<THINK>steps</Think>done"},
			wantThinking: "steps",
			wantAnswer:   "done",
		},
		{
			name:         "preamble_before_open_discarded",
			tokens:       []string{"noise <think>steps</think>done"},
			wantThinking: "steps",
			wantAnswer:   "done",
		},
		{
			name:         "close_split_across_tokens",
			tokens:       []string{"<think>steps</th", "ink>done"},
			wantThinking: "steps",
			wantAnswer:   "done",
		},
		{
			name:         "open_split_across_tokens",
			tokens:       []string{"<thi", "nk>steps</think>done"},
			wantThinking: "steps",
			wantAnswer:   "done",
		},
		{
			name:         "missing_close_all_thinking",
			tokens:       []string{"<think>never closed, still deliberating"},
			wantThinking: "never closed, still deliberating",
			wantAnswer:   "",
		},
		{
			name:         "empty_thinking_block",
			tokens:       []string{"<think></think>just the answer"},
			wantThinking: "",
			wantAnswer:   "just the answer",
		},
		{
			name:         "short_stream_without_delimiter_flushes_as_thinking",
			tokens:       []string{"short output"},
			wantThinking: "short output",
			wantAnswer:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thinking, answer := runParser(t, true, tt.tokens)
			if thinking != tt.wantThinking {
				t.Errorf("thinking = %q, want %q", thinking, tt.wantThinking)
			}
			if answer != tt.wantAnswer {
				t.Errorf("answer = %q, want %q", answer, tt.wantAnswer)
			}
		})
	}
}

// TestThinkParserSplitEverywhere verifies delimiter detection survives a
// token boundary at every byte position.
func TestThinkParserSplitEverywhere(t *testing.T) {
	const input = "<think>the model deliberates</think>the model answers"
	const wantThinking = "the model deliberates"
	const wantAnswer = "the model answers"

	for cut := 0; cut <= len(input); cut++ {
		thinking, answer := runParser(t, true, []string{input[:cut], input[cut:]})
		if thinking != wantThinking || answer != wantAnswer {
			t.Errorf("cut at %d: thinking = %q, answer = %q", cut, thinking, answer)
		}
	}
}

// TestThinkParserBytewise feeds one byte at a time, the worst case for
// delimiter reassembly.
func TestThinkParserBytewise(t *testing.T) {
	const input = "<thought>step one, step two</thought>final answer"
	tokens := make([]string, 0, len(input))
	for i := 0; i < len(input); i++ {
		tokens = append(tokens, input[i:i+1])
	}
	thinking, answer := runParser(t, true, tokens)
	if thinking != "step one, step two" {
		t.Errorf("thinking = %q", thinking)
	}
	if answer != "final answer" {
		t.Errorf("answer = %q", answer)
	}
}

// TestThinkParserLookaheadFallback verifies the parser gives up waiting
// for an opening delimiter once the lookahead window overflows and
// emits the buffered text as thinking.
func TestThinkParserLookaheadFallback(t *testing.T) {
	p := NewThinkParser(true)
	long := strings.Repeat("a", maxLookahead+10)

	spans := p.Feed(long)
	if len(spans) == 0 {
		t.Fatal("expected fallback emission after lookahead overflow")
	}
	var thinking, answer strings.Builder
	collect(t, spans, &thinking, &answer)
	collect(t, p.Feed(" more"), &thinking, &answer)
	collect(t, p.Flush(), &thinking, &answer)

	if got := thinking.String(); got != long+" more" {
		t.Errorf("thinking = %q", got)
	}
	if answer.Len() != 0 {
		t.Errorf("answer = %q, want empty", answer.String())
	}
}

// TestThinkParserTailHeld verifies thinking text is held back far enough
// that a split delimiter is never leaked as content.
func TestThinkParserTailHeld(t *testing.T) {
	p := NewThinkParser(true)
	var thinking, answer strings.Builder
	collect(t, p.Feed("<think>"+strings.Repeat("x", 100)), &thinking, &answer)

	// Everything emitted so far must be pure content, no partial tail.
	if got := thinking.String(); !strings.HasPrefix(strings.Repeat("x", 100), got) {
		t.Errorf("thinking prefix mismatch: %q", got)
	}
	emitted := thinking.Len()
	if emitted > 100-tailHold+utf8.UTFMax {
		t.Errorf("tail not held: %d bytes emitted of 100", emitted)
	}

	collect(t, p.Feed("</think>answer"), &thinking, &answer)
	collect(t, p.Flush(), &thinking, &answer)
	if thinking.String() != strings.Repeat("x", 100) {
		t.Errorf("thinking = %q", thinking.String())
	}
	if answer.String() != "answer" {
		t.Errorf("answer = %q", answer.String())
	}
}

// TestThinkParserRuneBoundaries verifies multi-byte Japanese text is
// never cut mid-rune while inside a thinking span.
func TestThinkParserRuneBoundaries(t *testing.T) {
	const content = "係り結びの法則を考える。ぞ、なむ、や、かは連体形で結ぶ。"
	p := NewThinkParser(true)
	var thinking, answer strings.Builder

	collect(t, p.Feed("<think>"), &thinking, &answer)
	for _, spans := range [][]Span{p.Feed(content), p.Flush()} {
		for _, s := range spans {
			if s.Thinking && !utf8.ValidString(s.Text) {
				t.Fatalf("thinking span is not valid UTF-8: %q", s.Text)
			}
		}
		collect(t, spans, &thinking, &answer)
	}

	if thinking.String() != content {
		t.Errorf("thinking = %q", thinking.String())
	}
}

func TestThinkParserNonReasoningPassthrough(t *testing.T) {
	tokens := []string{"plain ", "answer ", "with <think> literal text"}
	thinking, answer := runParser(t, false, tokens)
	if thinking != "" {
		t.Errorf("thinking = %q, want empty", thinking)
	}
	if answer != "plain answer with <think> literal text" {
		t.Errorf("answer = %q", answer)
	}
}

func TestThinkParserEmptyTokens(t *testing.T) {
	p := NewThinkParser(true)
	if spans := p.Feed(""); spans != nil {
		t.Errorf("Feed(\"\") = %v, want nil", spans)
	}
	if spans := p.Flush(); spans != nil {
		t.Errorf("Flush() on empty parser = %v, want nil", spans)
	}
}
