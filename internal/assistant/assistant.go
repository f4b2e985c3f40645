// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/davidbennett1979/classical-japanese-assistant/internal/classifier"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/ollama"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/prompt"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/retrieval"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/session"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/stream"
	"github.com/davidbennett1979/classical-japanese-assistant/internal/telemetry"
)

// stopMarker is appended to partial output when the user stops
// generation mid-stream.
const stopMarker = "\n\n*[生成が停止されました • Generation stopped by user]*"

// =============================================================================
// ASSISTANT
// =============================================================================

// Generator streams model tokens for a prompt. Implemented by
// *ollama.Client.
type Generator interface {
	GenerateStream(ctx context.Context, model string, prompt string, callback ollama.TokenCallback) error
}

// Options configures an Assistant. Retriever and Telemetry may be nil;
// retrieval failures and telemetry failures degrade to
// general-knowledge answering and dropped records respectively.
type Options struct {
	Model           string
	ReasoningModels []string
	TopK            int

	Generator  Generator
	Retriever  retrieval.Retriever
	Classifier *classifier.Classifier
	Composer   *prompt.Composer
	Sessions   *session.Registry
	Telemetry  *telemetry.Store
	Logger     *zap.Logger
}

// Assistant answers Classical Japanese study questions over a local
// model, routing each question between textbook retrieval and the
// model's own knowledge.
type Assistant struct {
	model           string
	reasoningModels []string
	topK            int

	generator  Generator
	retriever  retrieval.Retriever
	classifier *classifier.Classifier
	composer   *prompt.Composer
	sessions   *session.Registry
	telemetry  *telemetry.Store
	logger     *zap.Logger
}

// New creates an assistant. Options without a classifier, composer,
// session registry, or logger get defaults.
func New(opts Options) *Assistant {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.New(opts.Logger)
	}
	if opts.Composer == nil {
		opts.Composer = prompt.NewComposer()
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewRegistry(session.DefaultTTL, opts.Logger)
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &Assistant{
		model:           opts.Model,
		reasoningModels: opts.ReasoningModels,
		topK:            opts.TopK,
		generator:       opts.Generator,
		retriever:       opts.Retriever,
		classifier:      opts.Classifier,
		composer:        opts.Composer,
		sessions:        opts.Sessions,
		telemetry:       opts.Telemetry,
		logger:          opts.Logger,
	}
}

// Classifier exposes the classifier for threshold hot reload.
func (a *Assistant) Classifier() *classifier.Classifier {
	return a.classifier
}

// Classify runs routing on already-retrieved passages without
// generating. Used by dashboards that want the decision alone.
func (a *Assistant) Classify(question string, passages []retrieval.Passage) classifier.Result {
	return a.classifier.Classify(question, passages)
}

// StopGeneration requests cancellation of the session's active
// generation. Safe to call for unknown or finished sessions.
func (a *Assistant) StopGeneration(sessionID string) {
	a.sessions.SignalStop(sessionID)
}

// RouteStats returns aggregated routing statistics, or zero stats when
// telemetry is disabled.
func (a *Assistant) RouteStats(ctx context.Context) (telemetry.RouteStats, error) {
	if a.telemetry == nil {
		return telemetry.RouteStats{}, nil
	}
	return a.telemetry.Stats(ctx)
}

// =============================================================================
// STREAMING ENTRY POINTS
// =============================================================================

// StreamAnswer answers a question as a lazily produced event stream.
// Consuming the channel drives generation; an unread event blocks the
// producer, so an abandoned reader should cancel ctx. routeOverride
// forces a route; classification still runs for telemetry.
func (a *Assistant) StreamAnswer(ctx context.Context, question string, sessionID string, routeOverride *classifier.Route) <-chan stream.Event {
	events := make(chan stream.Event)
	go func() {
		defer close(events)
		a.run(ctx, events, question, sessionID, routeOverride)
	}()
	return events
}

// ExplainGrammar streams a focused explanation of one grammar point.
func (a *Assistant) ExplainGrammar(ctx context.Context, grammarPoint string, sessionID string) <-chan stream.Event {
	return a.StreamAnswer(ctx, prompt.GrammarQuestion(grammarPoint), sessionID, nil)
}

// TranslatePassage streams a translation and analysis of a classical
// passage.
func (a *Assistant) TranslatePassage(ctx context.Context, passage string, sessionID string) <-chan stream.Event {
	return a.StreamAnswer(ctx, prompt.TranslationQuestion(passage), sessionID, nil)
}

// =============================================================================
// GENERATION PIPELINE
// =============================================================================

func (a *Assistant) run(ctx context.Context, events chan<- stream.Event, question string, sessionID string, routeOverride *classifier.Route) {
	handle := a.sessions.GetOrCreate(sessionID)
	a.sessions.Clear(handle.ID())

	passages := a.retrieve(ctx, question)
	result := a.classifier.Classify(question, passages)

	route := result.Route
	overridden := routeOverride != nil && *routeOverride != result.Route
	if routeOverride != nil {
		route = *routeOverride
	}
	a.record(ctx, handle.ID(), question, result, overridden, route)

	promptText := a.composer.Compose(route, question, passages)
	var sources []string
	if route.UsesContext() {
		sources = retrieval.Sources(passages)
	}

	reasoning := ollama.IsReasoningModel(a.model, a.reasoningModels)
	if !a.emit(ctx, events, stream.ModelInfo(a.model, reasoning, route, result.Confidence, sources)) {
		return
	}

	genCtx, cancelGen := context.WithCancel(ctx)
	defer cancelGen()

	parser := stream.NewThinkParser(reasoning)
	var thinkingText, answerText string
	stopped := false
	blocked := false

	err := a.generator.GenerateStream(genCtx, a.model, promptText, func(tok ollama.Token) {
		if stopped || blocked {
			return
		}
		handle.Touch()
		if handle.Cancelled() {
			stopped = true
			cancelGen()
			return
		}
		for _, span := range parser.Feed(tok.Text) {
			if span.Thinking {
				thinkingText += span.Text
				if !a.emit(ctx, events, stream.Thinking(span.Text)) {
					blocked = true
					cancelGen()
					return
				}
			} else {
				answerText += span.Text
				if !a.emit(ctx, events, stream.Answer(span.Text)) {
					blocked = true
					cancelGen()
					return
				}
			}
		}
	})

	if blocked {
		return
	}

	if stopped {
		switch {
		case answerText != "":
			answerText += stopMarker
		case thinkingText != "":
			thinkingText += stopMarker
		default:
			answerText = "*[生成が停止されました • Generation stopped by user]*"
		}
		a.logger.Info("generation stopped by user",
			zap.String("session_id", handle.ID()),
			zap.Int("answer_len", len(answerText)))
		a.emit(ctx, events, stream.Final(fullText(answerText, thinkingText), thinkingText, answerText, route, sources))
		return
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		a.logger.Warn("generation failed",
			zap.String("session_id", handle.ID()),
			zap.String("model", a.model),
			zap.Error(err))
		a.emit(ctx, events, stream.Error(errorMessage(err)))
		return
	}

	for _, span := range parser.Flush() {
		if span.Thinking {
			thinkingText += span.Text
			if !a.emit(ctx, events, stream.Thinking(span.Text)) {
				return
			}
		} else {
			answerText += span.Text
			if !a.emit(ctx, events, stream.Answer(span.Text)) {
				return
			}
		}
	}

	a.emit(ctx, events, stream.Final(fullText(answerText, thinkingText), thinkingText, answerText, route, sources))
}

// retrieve searches the textbook store, degrading to no context on
// failure so the question can still be answered from model knowledge.
func (a *Assistant) retrieve(ctx context.Context, question string) []retrieval.Passage {
	if a.retriever == nil {
		return nil
	}
	passages, err := a.retriever.Search(ctx, question, a.topK)
	if err != nil {
		a.logger.Warn("retrieval failed, continuing without context", zap.Error(err))
		return nil
	}
	return passages
}

// record logs the routing decision, best-effort. The automatic route
// is stored even when overridden; the forced route goes in
// OverrideRoute so both remain recoverable.
func (a *Assistant) record(ctx context.Context, sessionID string, question string, result classifier.Result, overridden bool, route classifier.Route) {
	if a.telemetry == nil {
		return
	}
	d := telemetry.Decision{
		SessionID:       sessionID,
		Question:        question,
		Route:           result.Route,
		Confidence:      result.Confidence,
		Explanation:     result.Explanation,
		HitDensity:      result.Metrics.HitDensity,
		AvgDistance:     result.Metrics.AvgDistance,
		SourceDiversity: result.Metrics.SourceDiversity,
		ResultCount:     result.Metrics.ResultCount,
		Overridden:      overridden,
	}
	if overridden {
		d.OverrideRoute = route.String()
	}
	if err := a.telemetry.Record(ctx, d); err != nil {
		a.logger.Warn("failed to record routing decision", zap.Error(err))
	}
}

// emit sends an event, honoring context cancellation. Returns false
// when the consumer is gone.
func (a *Assistant) emit(ctx context.Context, events chan<- stream.Event, ev stream.Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func fullText(answer, thinking string) string {
	if answer != "" {
		return answer
	}
	return thinking
}

// errorMessage maps backend failures to the user-facing messages shown
// in the chat pane.
func errorMessage(err error) string {
	switch {
	case ollama.IsNotRunning(err):
		return "Ollama is not reachable. Start it with `ollama serve` and try again."
	case ollama.IsTimeout(err):
		return err.Error()
	case ollama.IsMalformed(err):
		return fmt.Sprintf("The model backend returned an unreadable response: %v", err)
	default:
		return fmt.Sprintf("Generation failed: %v", err)
	}
}
