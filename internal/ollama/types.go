// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// REQUEST / RESPONSE TYPES
// =============================================================================

// GenerateRequest is the payload for the /api/generate endpoint.
type GenerateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *Options `json:"options,omitempty"`
}

// Options tunes sampling for a generation request.
type Options struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// DefaultOptions returns the sampling settings used for tutoring answers.
func DefaultOptions() *Options {
	return &Options{Temperature: 0.7, TopP: 0.9}
}

// generateChunk is one NDJSON line of a streaming generate response.
type generateChunk struct {
	Model      string `json:"model"`
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`
}

// Token is one streamed fragment of model output.
type Token struct {
	// Text is the raw token text, possibly containing partial delimiters.
	Text string
	// Model is the model that produced the token.
	Model string
	// Done marks the final chunk of the stream.
	Done bool
}

// EmbeddingRequest is the payload for /api/embeddings.
type EmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// EmbeddingResponse carries the embedding vector.
type EmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// ModelInfo describes one locally installed model.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ListModelsResponse is the payload of /api/tags.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// OllamaError is the error body Ollama returns on non-200 responses.
type OllamaError struct {
	Error string `json:"error"`
}

// =============================================================================
// MODEL NAME HEURISTICS
// =============================================================================

// paramCountPattern extracts a parameter count like "72b" or "7B" from a
// model name such as "qwen2.5:72b" or "deepseek-r1:14b-qwen-distill".
var paramCountPattern = regexp.MustCompile(`(\d+)\s*b`)

// TimeoutForModel scales the generation timeout by apparent model size.
// Larger parameter counts get longer timeouts: first-token latency grows
// with load time, and a stalled 70B model is indistinguishable from a slow
// one for quite a while.
func TimeoutForModel(model string) time.Duration {
	params := 0
	if m := paramCountPattern.FindStringSubmatch(strings.ToLower(model)); m != nil {
		params, _ = strconv.Atoi(m[1])
	}
	switch {
	case params >= 60:
		return 120 * time.Second
	case params >= 25:
		return 90 * time.Second
	case params >= 10:
		return 60 * time.Second
	default:
		return 30 * time.Second
	}
}

// reasoningMarkers are name fragments of models that wrap deliberation in
// think delimiters.
var reasoningMarkers = []string{"r1", "qwq", "o1", "think"}

// IsReasoningModel reports whether the named model emits a thinking span
// before its answer. extra supplements the built-in marker list from
// configuration.
func IsReasoningModel(model string, extra []string) bool {
	name := strings.ToLower(model)
	for _, marker := range reasoningMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	for _, marker := range extra {
		if marker != "" && strings.Contains(name, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}
