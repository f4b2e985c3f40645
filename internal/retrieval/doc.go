// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package retrieval defines the passage type produced by vector similarity
// search, the quality metrics derived from a ranked result list, and the
// ChromaDB-backed retriever used in production.
//
// The metrics feed the question classifier: hit density (fraction of
// passages within the distance threshold), average distance, and source
// diversity together describe how well the textbook corpus covers a
// question. Retrieval failures are not fatal anywhere in the system; callers
// treat them as "no passages found".
package retrieval
