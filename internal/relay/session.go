/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/relaycast/internal/events"
)

// Session is the aggregate state for one live broadcast: identity, expiry,
// broadcaster slot, listener set (owned by its RelayHub), recording sink,
// cached init segment, and the lifecycle flag gating all admissions.
type Session struct {
	ID        string
	Token     string
	CreatedAt time.Time
	ExpireAt  time.Time

	maxListeners int
	recording    *RecordingSink
	hub          *RelayHub
	bus          *events.Bus
	logger       zerolog.Logger
	store        *SessionStore

	active atomic.Bool

	mu          sync.Mutex
	broadcaster Socket

	bytesRecorded atomic.Int64
	peakListeners atomic.Int32
	listenerSeq   atomic.Uint64

	teardownOnce sync.Once
	expiryTimer  *time.Timer
}

// Active reports whether the session currently admits attaches and forwards.
func (s *Session) Active() bool {
	return s.active.Load()
}

// RecordingPath returns the path of the file this session records to.
func (s *Session) RecordingPath() string {
	return s.recording.Path()
}

// ListenerCount returns the number of currently attached listeners.
func (s *Session) ListenerCount() int {
	return s.hub.ListenerCount()
}

// MaxListeners returns the configured capacity for this session.
func (s *Session) MaxListeners() int {
	return s.maxListeners
}

// AttachBroadcaster binds socket as the session's sole broadcaster.
func (s *Session) AttachBroadcaster(socket Socket) error {
	s.mu.Lock()
	if !s.active.Load() {
		s.mu.Unlock()
		return ErrSessionNotLive
	}
	if s.broadcaster != nil {
		s.mu.Unlock()
		return ErrBroadcasterAlreadyPresent
	}
	s.broadcaster = socket
	s.mu.Unlock()

	s.hub.SetBroadcaster(socket)
	s.hub.Broadcast(map[string]any{"type": "broadcast-started"})
	s.bus.Publish(events.EventBroadcasterAttached, events.Payload{"session_id": s.ID})
	return nil
}

// DetachBroadcaster clears the broadcaster slot. Called by the WebSocket
// handler when the broadcaster's read loop exits, which then triggers a
// broadcaster-disconnected teardown rather than leaving the session live with
// no producer. Teardown clears the slot itself and does not call this.
func (s *Session) DetachBroadcaster() {
	s.mu.Lock()
	s.broadcaster = nil
	s.mu.Unlock()
	s.hub.ClearBroadcaster()
}

// AttachListener registers socket as a new listener, subject to capacity.
// Returns the listener id to later pass to DetachListener.
func (s *Session) AttachListener(socket Socket) (string, error) {
	if !s.active.Load() {
		return "", ErrSessionNotLive
	}

	// The capacity check and the add happen under s.mu so two concurrent
	// attaches cannot both pass the check and exceed the cap.
	s.mu.Lock()
	if s.hub.ListenerCount() >= s.maxListeners {
		s.mu.Unlock()
		return "", ErrCapacityExceeded
	}
	broadcasterAttached := s.broadcaster != nil
	id := fmt.Sprintf("%s-%d", s.ID, s.listenerSeq.Add(1))
	s.hub.AddListener(id, socket, broadcasterAttached)
	s.mu.Unlock()

	count := s.hub.ListenerCount()
	if int32(count) > s.peakListeners.Load() {
		s.peakListeners.Store(int32(count))
	}
	s.sendListenerCountToBroadcaster(count)
	s.bus.Publish(events.EventListenerAttached, events.Payload{"session_id": s.ID, "listener_id": id})
	return id, nil
}

// DetachListener removes a listener by id. Idempotent.
func (s *Session) DetachListener(id string) {
	s.hub.RemoveListener(id)
	s.sendListenerCountToBroadcaster(s.hub.ListenerCount())
	s.bus.Publish(events.EventListenerDetached, events.Payload{"session_id": s.ID, "listener_id": id})
}

func (s *Session) sendListenerCountToBroadcaster(count int) {
	s.mu.Lock()
	b := s.broadcaster
	s.mu.Unlock()
	if b == nil {
		return
	}
	_ = b.WriteJSON(context.Background(), map[string]any{"type": "listener-count", "count": count})
}

// Forward is the entry point for a binary frame from the broadcaster. It
// delegates to the RelayHub and accounts bytes written for SessionHistory.
func (s *Session) Forward(chunk []byte) error {
	if !s.active.Load() {
		return ErrSessionNotLive
	}
	s.bytesRecorded.Add(int64(len(chunk)))
	s.hub.Forward(chunk)
	return nil
}

// Teardown ends the session. Idempotent: a second call is a no-op and never
// re-performs socket writes or closes.
func (s *Session) Teardown(reason TeardownReason) {
	s.teardownOnce.Do(func() {
		s.active.Store(false)

		if s.expiryTimer != nil {
			s.expiryTimer.Stop()
		}

		s.mu.Lock()
		b := s.broadcaster
		s.broadcaster = nil
		s.mu.Unlock()
		if b != nil {
			_ = b.Close(string(reason))
		}

		s.hub.Broadcast(map[string]any{"type": "session-ended", "reason": string(reason)})
		for _, sock := range s.hub.CloseAllListeners() {
			_ = sock.Close(string(reason))
		}

		if err := s.recording.Close(); err != nil {
			s.logger.Warn().Err(err).Str("session_id", s.ID).Msg("recording close failed")
		}

		s.store.remove(s.ID)

		s.bus.Publish(events.EventSessionEnded, events.Payload{
			"session_id":     s.ID,
			"token":          s.Token,
			"reason":         string(reason),
			"started_at":     s.CreatedAt,
			"bytes_recorded": s.bytesRecorded.Load(),
			"peak_listeners": s.peakListeners.Load(),
			"recording_path": s.recording.Path(),
			"duration_ms":    time.Since(s.CreatedAt).Milliseconds(),
		})
	})
}
