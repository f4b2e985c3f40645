// Copyright (c) 2025 David Bennett
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// SESSION HANDLE
// =============================================================================

// Handle is the per-session cancellation flag polled by generation loops.
// All methods are safe for concurrent use.
type Handle struct {
	id         string
	cancelled  atomic.Bool
	lastActive atomic.Int64 // unix nanos
}

// ID returns the session identifier.
func (h *Handle) ID() string {
	return h.id
}

// Cancelled reports whether a stop has been requested for this session.
func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

// Touch records activity, deferring TTL expiry. Called per streamed token.
func (h *Handle) Touch() {
	h.lastActive.Store(time.Now().UnixNano())
}

func (h *Handle) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, h.lastActive.Load()))
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry maps session IDs to handles and sweeps idle entries.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Handle
	ttl      time.Duration
	logger   *zap.Logger
}

// DefaultTTL is the idle lifetime of a session handle.
const DefaultTTL = 60 * time.Minute

// NewRegistry creates a session registry. A zero or negative ttl falls
// back to DefaultTTL. A nil logger is replaced with a no-op logger.
func NewRegistry(ttl time.Duration, logger *zap.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Handle),
		ttl:      ttl,
		logger:   logger,
	}
}

// GetOrCreate returns the handle for the given session ID, creating one
// if needed. An empty ID gets a freshly generated UUID so anonymous
// callers never share state. Expired sessions are swept first, so a
// handle idle past the TTL is replaced rather than resurrected.
func (r *Registry) GetOrCreate(id string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()

	if id == "" {
		id = uuid.NewString()
	}
	if h, ok := r.sessions[id]; ok {
		h.Touch()
		return h
	}

	h := &Handle{id: id}
	h.Touch()
	r.sessions[id] = h
	r.logger.Debug("session created", zap.String("session_id", id))
	return h
}

// SignalStop requests cancellation of the identified session's active
// generation. Unknown IDs are a no-op: the session may have expired or
// already finished, and stopping is idempotent either way.
func (r *Registry) SignalStop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()

	if h, ok := r.sessions[id]; ok {
		h.cancelled.Store(true)
		r.logger.Info("stop requested", zap.String("session_id", id))
	}
}

// Clear resets the cancellation flag so the session can generate again.
// Called at the start of each new question.
func (r *Registry) Clear(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.sessions[id]; ok {
		h.cancelled.Store(false)
	}
}

// Len returns the number of live sessions after sweeping expired ones.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	return len(r.sessions)
}

// sweepLocked drops handles idle past the TTL. Caller holds r.mu.
func (r *Registry) sweepLocked() {
	now := time.Now()
	for id, h := range r.sessions {
		if h.idleSince(now) > r.ttl {
			delete(r.sessions, id)
			r.logger.Debug("session expired", zap.String("session_id", id))
		}
	}
}
