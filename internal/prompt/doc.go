// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt builds the route-specific prompts sent to the model.
//
// Three shapes exist: a textbook-only prompt that pins the model to the
// retrieved context, a general-knowledge prompt with no context at all,
// and a hybrid prompt that injects context but asks for a sectioned
// answer separating textbook material from the model's own knowledge.
// Every composed prompt contains the student's question verbatim, and
// context-bearing prompts name every passage's source.
package prompt
