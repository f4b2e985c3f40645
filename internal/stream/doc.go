// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream defines the typed event stream delivered to callers during
// answer generation, and the state machine that separates a reasoning
// model's "thinking" span from its final answer.
//
// Local reasoning models emit a single flat token stream containing an
// opening delimiter, deliberation text, a closing delimiter, and then the
// answer. The delimiters can be split across arbitrary token boundaries and
// are not guaranteed to be well-formed, so the parser buffers a small
// lookahead and fails open rather than waiting forever for a delimiter that
// may never arrive.
package stream
