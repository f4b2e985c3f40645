// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assistant orchestrates a question into a streamed answer.
//
// The flow per question: retrieve textbook passages, classify the
// question to a knowledge route, compose the route's prompt, then
// stream the model's tokens as typed events with thinking and answer
// spans separated. Generation is cancellable per session between
// tokens.
//
// The event contract: exactly one ModelInfo event first, zero or more
// Thinking and Answer events in model order, then exactly one terminal
// Final or Error event.
package assistant
