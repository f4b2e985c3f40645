// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package classifier

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/davidbennett1979/classical-japanese-assistant/internal/retrieval"
)

// ============================================================================
// CLASSIFIER
// ============================================================================

// Classifier maps a question plus retrieval metrics to a route. It is
// stateless apart from its thresholds, which may be updated at runtime;
// updates take effect on the next Classify call.
//
// Safe for concurrent use.
type Classifier struct {
	mu         sync.RWMutex
	thresholds Thresholds
	logger     *zap.Logger
}

// New creates a classifier with the default thresholds.
func New(logger *zap.Logger) *Classifier {
	return NewWithThresholds(DefaultThresholds(), logger)
}

// NewWithThresholds creates a classifier with explicit thresholds.
func NewWithThresholds(t Thresholds, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{thresholds: t.Validate(), logger: logger}
}

// Thresholds returns the thresholds currently in effect.
func (c *Classifier) Thresholds() Thresholds {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.thresholds
}

// SetThresholds replaces the thresholds. The next Classify call sees the
// new values.
func (c *Classifier) SetThresholds(t Thresholds) {
	t = t.Validate()
	c.mu.Lock()
	c.thresholds = t
	c.mu.Unlock()
	c.logger.Info("classifier thresholds updated",
		zap.Float64("hit_density", t.HitDensity),
		zap.Int("min_sources", t.MinSources),
		zap.Float64("distance", t.Distance))
}

// Classify combines keyword signals and retrieval metrics into a routing
// decision. A nil or empty passage list uses worst-case metric defaults, so
// the result can never be RAG in that case.
func (c *Classifier) Classify(question string, passages []retrieval.Passage) Result {
	th := c.Thresholds()

	signals := matchKeywords(question)
	metrics := retrieval.ComputeMetrics(passages, th.Distance)

	route, confidence, explanation := decide(signals, metrics, th)

	return Result{
		Route:          route,
		Confidence:     clamp01(confidence),
		KeywordSignals: signals,
		Metrics:        metrics,
		Explanation:    explanation,
	}
}

// ============================================================================
// DECISION MATRIX
// ============================================================================

// decide walks the priority ladder. The order is deliberate: RAG and
// GENERAL are checked before any HYBRID condition, so an explicit hybrid
// keyword does not preempt a strong textbook hit.
func decide(signals map[string][]string, m retrieval.Metrics, th Thresholds) (Route, float64, string) {
	grammar := len(signals[CategoryGrammar])
	literature := len(signals[CategoryLiterature])
	hybrid := len(signals[CategoryHybrid])
	general := len(signals[CategoryGeneralPatterns])

	// Rule 1 (RAG): strong textbook hits + grammar focus, no general-
	// knowledge phrasing.
	if m.HitDensity >= th.HitDensity &&
		m.SourceDiversity >= th.MinSources &&
		grammar > 0 &&
		general == 0 {
		confidence := min(0.9, 0.5+m.HitDensity*0.4+float64(min(grammar, 3))*0.1)
		explanation := fmt.Sprintf("Strong textbook hits (%.2f density, %d sources) + grammar focus",
			m.HitDensity, m.SourceDiversity)
		return RouteRAG, confidence, explanation
	}

	// Rule 2 (GENERAL): the textbook has little to offer and the question
	// asks for literature or background knowledge.
	if m.HitDensity < 0.2 && (literature > 0 || general > 0) {
		confidence := min(0.8, 0.4+float64(literature+general)*0.15)
		explanation := fmt.Sprintf("Low textbook relevance (%.2f density) + literature/cultural focus",
			m.HitDensity)
		return RouteGeneral, confidence, explanation
	}

	// Rule 3 (HYBRID): explicit hybrid keywords, medium hit density, or
	// mixed grammar and literature signals.
	if hybrid > 0 ||
		(m.HitDensity >= 0.2 && m.HitDensity < th.HitDensity) ||
		(grammar > 0 && literature > 0) {
		confidence := 0.3 + m.HitDensity*0.3 + float64(hybrid)*0.1
		explanation := fmt.Sprintf("Mixed signals or medium textbook relevance (%.2f density)", m.HitDensity)
		return RouteHybrid, confidence, explanation
	}

	// Rule 4 (fallback): nothing matched, default to HYBRID with low
	// confidence.
	confidence := 0.2 + m.HitDensity*0.2
	return RouteHybrid, confidence, "Unclear signals, defaulting to hybrid approach"
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
