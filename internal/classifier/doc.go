// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package classifier decides, per question, which knowledge source answers
// it: retrieved textbook passages (RAG), the model's own knowledge
// (GENERAL), or a blend of both (HYBRID).
//
// The decision matrix combines lexical keyword signals from the question
// with retrieval quality metrics, evaluated as a first-match priority
// ladder:
//
//  1. RAG: strong textbook hits plus a grammar focus
//  2. GENERAL: weak textbook hits plus a literature/cultural request
//  3. HYBRID: explicit hybrid keywords, medium hit density, or mixed
//     grammar and literature signals
//  4. HYBRID: low-confidence fallback
//
// Thresholds are tunable at runtime; an update takes effect on the next
// classification call.
package classifier
