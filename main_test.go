// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/davidbennett1979/classical-japanese-assistant/internal/assistant"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/ollama"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/stream"
)

func TestResolveSession(t *testing.T) {
	if got := resolveSession("study-1"); got != "study-1" {
		t.Errorf("resolveSession(study-1) = %q", got)
	}

	a := resolveSession("")
	b := resolveSession("")
	if a == "" || b == "" {
		t.Fatal("anonymous invocations must get a concrete session id")
	}
	if a == b {
		t.Error("minted session ids must be unique")
	}
}

// slowGenerator feeds single-character tokens with a delay so a stop
// request can land mid-stream.
type slowGenerator struct{}

func (slowGenerator) GenerateStream(ctx context.Context, model string, prompt string, callback ollama.TokenCallback) error {
	for _, c := range "abcde" {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		callback(ollama.Token{Text: string(c), Model: model})
		time.Sleep(10 * time.Millisecond)
	}
	callback(ollama.Token{Model: model, Done: true})
	return nil
}

func TestAnonymousInvocationStopsCooperatively(t *testing.T) {
	a := assistant.New(assistant.Options{
		Model:     "qwen2.5:14b",
		Generator: slowGenerator{},
	})

	// An anonymous run resolves its session id up front, and the stop
	// request targets that same id.
	sessionID := resolveSession("")
	ch := a.StreamAnswer(context.Background(), "question", sessionID, nil)

	var final stream.Event
	stopIssued := false
	for ev := range ch {
		if !stopIssued && ev.Type == stream.EventAnswer {
			a.StopGeneration(sessionID)
			stopIssued = true
		}
		if ev.IsTerminal() {
			final = ev
		}
	}

	if final.Type != stream.EventFinal {
		t.Fatalf("terminal event = %v", final.Type)
	}
	if !strings.Contains(final.AnswerText, "Generation stopped by user") {
		t.Errorf("stop marker missing from %q", final.AnswerText)
	}
	if !strings.HasPrefix(final.AnswerText, "a") {
		t.Errorf("partial output missing from %q", final.AnswerText)
	}
	if strings.Contains(final.AnswerText, "abcde") {
		t.Errorf("generation ran to completion despite stop: %q", final.AnswerText)
	}
}
