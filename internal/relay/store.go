/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package relay

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/relaycast/internal/events"
	"github.com/example/relaycast/internal/telemetry"
)

// Options bounds the configurable parameters a SessionStore applies to every
// session it creates.
type Options struct {
	RecordingsDir      string
	SessionTTL         time.Duration
	MaxListeners       int
	ListenerQueueDepth int
	SlowConsumerLimit  int
	RecordingHighWater int
}

// SessionStore is the process-wide registry mapping session id to Session. All
// operations are safe under concurrent access.
type SessionStore struct {
	opts   Options
	bus    *events.Bus
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore constructs an empty store.
func NewSessionStore(opts Options, bus *events.Bus, logger zerolog.Logger) *SessionStore {
	return &SessionStore{
		opts:     opts,
		bus:      bus,
		logger:   logger.With().Str("component", "session_store").Logger(),
		sessions: make(map[string]*Session),
	}
}

// Create allocates a new session: a random id and token, an append-mode
// recording file, and a scheduled expiry timer. It never returns an id
// collision — generation retries on the (astronomically unlikely) event of a
// live collision.
func (s *SessionStore) Create() (*Session, error) {
	var id string
	for {
		candidate, err := newSessionID()
		if err != nil {
			return nil, err
		}
		s.mu.RLock()
		_, exists := s.sessions[candidate]
		s.mu.RUnlock()
		if !exists {
			id = candidate
			break
		}
	}

	token, err := newListenerToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	path := filepath.Join(s.opts.RecordingsDir, recordingFileName(id, now))
	recording, err := NewRecordingSink(path, s.opts.RecordingHighWater, s.logger)
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:           id,
		Token:        token,
		CreatedAt:    now,
		ExpireAt:     now.Add(s.opts.SessionTTL),
		maxListeners: s.opts.MaxListeners,
		recording:    recording,
		bus:          s.bus,
		logger:       s.logger,
		store:        s,
	}
	session.active.Store(true)
	session.hub = NewRelayHub(recording, id, s.opts.ListenerQueueDepth, s.opts.SlowConsumerLimit, s.logger)

	session.expiryTimer = time.AfterFunc(s.opts.SessionTTL, func() {
		session.Teardown(ReasonExpired)
	})

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()

	telemetry.SessionsActive.Inc()
	s.bus.Publish(events.EventSessionCreated, events.Payload{"session_id": id})
	return session, nil
}

// Get returns the session for id, or (nil, false) if absent.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

// remove deletes the id->Session mapping. Idempotent. Unexported: callers end
// a session through Session.Teardown, which calls this as its last step.
func (s *SessionStore) remove(id string) {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if existed {
		telemetry.SessionsActive.Dec()
	}
}

// Snapshot returns a point-in-time slice of live sessions, used for the
// healthz liveness count and for shutdown fan-out.
func (s *SessionStore) Snapshot() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}

// Count returns the number of live sessions.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ShutdownAll tears down every live session with reason "shutdown", for use
// during graceful process shutdown.
func (s *SessionStore) ShutdownAll() {
	for _, session := range s.Snapshot() {
		session.Teardown(ReasonShutdown)
	}
}

func recordingFileName(id string, createdAt time.Time) string {
	return "broadcast-" + id + "-" + createdAt.UTC().Format("20060102T150405.000Z") + ".webm"
}
