// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package classifier

import (
	"fmt"
	"strings"

	"github.com/davidbennett1979/classical-japanese-assistant/internal/retrieval"
)

// ============================================================================
// ROUTE TYPE
// ============================================================================

// Route is the knowledge-source strategy chosen for answering a question.
type Route int

const (
	// RouteRAG answers strictly from retrieved textbook passages.
	RouteRAG Route = iota
	// RouteGeneral answers strictly from the model's own knowledge.
	RouteGeneral
	// RouteHybrid blends textbook passages with general knowledge in
	// clearly separated sections.
	RouteHybrid
)

// String returns the canonical upper-case name of the route.
func (r Route) String() string {
	switch r {
	case RouteRAG:
		return "RAG"
	case RouteGeneral:
		return "GENERAL"
	case RouteHybrid:
		return "HYBRID"
	default:
		return fmt.Sprintf("Route(%d)", r)
	}
}

// UsesContext returns true if the route injects retrieved passages into the
// prompt.
func (r Route) UsesContext() bool {
	return r == RouteRAG || r == RouteHybrid
}

// ParseRoute converts a route name (any case) to a Route. Used for manual
// override flags.
func ParseRoute(s string) (Route, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RAG":
		return RouteRAG, nil
	case "GENERAL":
		return RouteGeneral, nil
	case "HYBRID":
		return RouteHybrid, nil
	default:
		return RouteHybrid, fmt.Errorf("unknown route %q (want RAG, GENERAL, or HYBRID)", s)
	}
}

// ============================================================================
// THRESHOLDS
// ============================================================================

// Thresholds hold the tunable cutoffs used by the decision matrix.
type Thresholds struct {
	// HitDensity is the minimum fraction of close passages for the RAG route.
	HitDensity float64
	// MinSources is the minimum distinct sources for the RAG route.
	MinSources int
	// Distance is the per-passage cutoff below which a hit counts as close.
	Distance float64
}

// DefaultThresholds returns the tuned production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{HitDensity: 0.40, MinSources: 2, Distance: 0.40}
}

// Validate clamps thresholds into sane ranges.
func (t Thresholds) Validate() Thresholds {
	if t.HitDensity <= 0 || t.HitDensity > 1 {
		t.HitDensity = 0.40
	}
	if t.MinSources < 1 {
		t.MinSources = 2
	}
	if t.Distance <= 0 || t.Distance > 1 {
		t.Distance = 0.40
	}
	return t
}

// ============================================================================
// CLASSIFICATION RESULT
// ============================================================================

// Result is the outcome of classifying one question. It is created once per
// question and read-only afterward; the same result feeds both routing and
// telemetry.
type Result struct {
	// Route chosen by the decision matrix.
	Route Route
	// Confidence in [0,1].
	Confidence float64
	// KeywordSignals maps category name to the matched terms/patterns.
	// Categories: grammar, literature, hybrid, general_patterns.
	KeywordSignals map[string][]string
	// Metrics are the retrieval quality metrics the decision was based on.
	Metrics retrieval.Metrics
	// Explanation is a short human-readable summary of the triggering
	// signal, for telemetry and debugging only.
	Explanation string
}
