// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package retrieval

import "context"

// =============================================================================
// PASSAGE
// =============================================================================

// Passage is a single retrieved textbook excerpt with its similarity score.
// Distances are normalized to [0,1] where 0 is a perfect match.
type Passage struct {
	Text     string
	Source   string
	Page     string
	Distance float64
}

// SourceOrUnknown returns the passage source, or "unknown" when the
// retrieval backend supplied no source metadata.
func (p Passage) SourceOrUnknown() string {
	if p.Source == "" {
		return "unknown"
	}
	return p.Source
}

// Sources returns the distinct source identifiers of a result list, in
// first-seen order.
func Sources(passages []Passage) []string {
	seen := make(map[string]bool, len(passages))
	var out []string
	for _, p := range passages {
		s := p.SourceOrUnknown()
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// =============================================================================
// RETRIEVER
// =============================================================================

// Retriever performs similarity search against the textbook corpus.
// Implementations may return an empty list; that is not an error.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Passage, error)
}

// =============================================================================
// METRICS
// =============================================================================

// Metrics summarizes the quality of a ranked retrieval result.
type Metrics struct {
	// HitDensity is the fraction of passages with Distance <= threshold.
	HitDensity float64
	// AvgDistance is the arithmetic mean distance, 1.0 when nothing matched.
	AvgDistance float64
	// SourceDiversity counts distinct source identifiers.
	SourceDiversity int
	// ResultCount is the number of retrieved passages.
	ResultCount int
}

// ComputeMetrics derives quality metrics from a result list. An empty list
// yields the worst-case defaults: zero density, average distance 1.0.
func ComputeMetrics(passages []Passage, distanceThreshold float64) Metrics {
	if len(passages) == 0 {
		return Metrics{HitDensity: 0.0, AvgDistance: 1.0, SourceDiversity: 0, ResultCount: 0}
	}

	hits := 0
	sum := 0.0
	sources := make(map[string]bool, len(passages))
	for _, p := range passages {
		if p.Distance <= distanceThreshold {
			hits++
		}
		sum += p.Distance
		sources[p.SourceOrUnknown()] = true
	}

	return Metrics{
		HitDensity:      float64(hits) / float64(len(passages)),
		AvgDistance:     sum / float64(len(passages)),
		SourceDiversity: len(sources),
		ResultCount:     len(passages),
	}
}
