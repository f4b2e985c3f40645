// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks per-session generation state so concurrent
// questions can be stopped independently.
//
// Each session gets a Handle holding a cancellation flag that the
// generation loop polls between tokens. Handles expire after an idle
// TTL; expired entries are swept lazily on registry access rather than
// by a background goroutine.
package session
