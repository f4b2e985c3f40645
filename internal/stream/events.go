// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"fmt"

	"github.com/davidbennett1979/classical-japanese-assistant/internal/classifier"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventType discriminates the variants of Event.
type EventType int

const (
	// EventModelInfo is emitted exactly once, first, on a successful stream.
	EventModelInfo EventType = iota
	// EventThinking carries a fragment of the model's deliberation text.
	EventThinking
	// EventAnswer carries a fragment of the final answer text.
	EventAnswer
	// EventFinal terminates a successful (or user-cancelled) stream.
	EventFinal
	// EventError terminates a failed stream.
	EventError
)

// String returns the event type name as it appears on the wire.
func (t EventType) String() string {
	switch t {
	case EventModelInfo:
		return "model_info"
	case EventThinking:
		return "thinking"
	case EventAnswer:
		return "answer"
	case EventFinal:
		return "final"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventType(%d)", t)
	}
}

// Event is one element of the answer stream. Exactly one ModelInfo opens a
// successful stream, zero or more Thinking/Answer events follow in arbitrary
// interleaving, and exactly one terminal event (Final or Error) closes it.
type Event struct {
	Type EventType

	// ModelInfo fields.
	Model           string
	IsThinkingModel bool
	Route           classifier.Route
	Confidence      float64
	Sources         []string

	// Thinking / Answer fields.
	Token string

	// Final fields (Route and Sources are shared with ModelInfo).
	FullText     string
	ThinkingText string
	AnswerText   string

	// Error fields.
	Message string
}

// IsTerminal reports whether the event ends the stream.
func (e Event) IsTerminal() bool {
	return e.Type == EventFinal || e.Type == EventError
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

// ModelInfo builds the opening event of a stream.
func ModelInfo(model string, thinking bool, route classifier.Route, confidence float64, sources []string) Event {
	return Event{
		Type:            EventModelInfo,
		Model:           model,
		IsThinkingModel: thinking,
		Route:           route,
		Confidence:      confidence,
		Sources:         sources,
	}
}

// Thinking builds a deliberation-fragment event.
func Thinking(token string) Event {
	return Event{Type: EventThinking, Token: token}
}

// Answer builds an answer-fragment event.
func Answer(token string) Event {
	return Event{Type: EventAnswer, Token: token}
}

// Final builds the successful terminal event.
func Final(fullText, thinkingText, answerText string, route classifier.Route, sources []string) Event {
	return Event{
		Type:         EventFinal,
		FullText:     fullText,
		ThinkingText: thinkingText,
		AnswerText:   answerText,
		Route:        route,
		Sources:      sources,
	}
}

// Error builds the failure terminal event.
func Error(message string) Event {
	return Event{Type: EventError, Message: message}
}
