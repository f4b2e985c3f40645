// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the local Ollama server: model
// listing, query embeddings, and token-by-token answer generation over the
// NDJSON streaming API.
//
// Request timeouts scale with the apparent parameter count of the selected
// model, because a 70B-class model loading from disk can legitimately take
// two minutes before its first token. Errors carry a type so callers can
// distinguish "service unreachable" from "request timed out" from
// "malformed response" without string matching.
package ollama
