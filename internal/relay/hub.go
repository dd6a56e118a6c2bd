/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package relay

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/example/relaycast/internal/telemetry"
)

// RelayHub is the per-session fan-out engine. It accepts binary chunks from the
// broadcaster and forwards them to the recording sink and every attached
// listener with bounded per-listener buffering, caches the first chunk as the
// init segment for late joiners, and relays recording backpressure to the
// broadcaster.
type RelayHub struct {
	sessionPrefix string // first 2 hex chars of the session id, used for metric labels
	queueDepth    int
	overflowLimit int
	logger        zerolog.Logger

	recording *RecordingSink

	mu          sync.RWMutex
	initSegment []byte
	initSet     bool
	listeners   map[string]*listener

	broadcasterMu sync.Mutex
	broadcaster   Socket
	draining      bool // true once a backpressure frame has been sent without a matching drain
}

// NewRelayHub constructs a hub bound to recording, which the caller owns the
// lifetime of (the hub writes to it but does not close it).
func NewRelayHub(recording *RecordingSink, sessionID string, queueDepth, overflowLimit int, logger zerolog.Logger) *RelayHub {
	prefix := sessionID
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	h := &RelayHub{
		sessionPrefix: prefix,
		queueDepth:    queueDepth,
		overflowLimit: overflowLimit,
		logger:        logger.With().Str("component", "relay_hub").Logger(),
		recording:     recording,
		listeners:     make(map[string]*listener),
	}
	recording.OnDrain(h.handleDrain)
	return h
}

// SetBroadcaster registers the broadcaster socket for backpressure frames.
func (h *RelayHub) SetBroadcaster(socket Socket) {
	h.broadcasterMu.Lock()
	h.broadcaster = socket
	h.draining = false
	h.broadcasterMu.Unlock()
}

// ClearBroadcaster removes the broadcaster socket reference.
func (h *RelayHub) ClearBroadcaster() {
	h.broadcasterMu.Lock()
	h.broadcaster = nil
	h.broadcasterMu.Unlock()
}

// Forward is the hot path entry point for one binary chunk from the broadcaster.
func (h *RelayHub) Forward(chunk []byte) {
	h.mu.Lock()
	if !h.initSet {
		h.initSegment = append([]byte(nil), chunk...)
		h.initSet = true
	}
	listeners := make([]*listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		listeners = append(listeners, l)
	}
	h.mu.Unlock()

	accepted := h.recording.Write(chunk)
	telemetry.ChunksRelayedTotal.WithLabelValues(h.sessionPrefix).Inc()
	if !accepted {
		h.signalBackpressure()
	}

	for _, l := range listeners {
		if slow := l.sendBinary(chunk); slow {
			h.disconnectSlowConsumer(l)
			continue
		}
	}
}

func (h *RelayHub) signalBackpressure() {
	h.broadcasterMu.Lock()
	if h.draining || h.broadcaster == nil {
		h.broadcasterMu.Unlock()
		return
	}
	h.draining = true
	b := h.broadcaster
	h.broadcasterMu.Unlock()
	_ = b.WriteJSON(context.Background(), map[string]any{"type": "backpressure"})
}

func (h *RelayHub) handleDrain() {
	h.broadcasterMu.Lock()
	if !h.draining || h.broadcaster == nil {
		h.broadcasterMu.Unlock()
		return
	}
	h.draining = false
	b := h.broadcaster
	h.broadcasterMu.Unlock()
	_ = b.WriteJSON(context.Background(), map[string]any{"type": "drain"})
}

// AddListener registers a new listener socket. If broadcasterAttached, a
// broadcast-started frame is queued first. If an init segment has already
// been captured, the announcement frame followed by the binary init segment
// is queued next. All of this happens while h.mu is still held, so a
// concurrent Forward either snapshots this listener with its init frames
// already queued ahead of the live chunk, or doesn't see it in the snapshot
// at all — it can never observe the listener before its init frames are
// queued.
func (h *RelayHub) AddListener(id string, socket Socket, broadcasterAttached bool) {
	l := newListener(id, socket, h.queueDepth, h.overflowLimit, h.logger)

	h.mu.Lock()
	h.listeners[id] = l
	initSegment, initSet := h.initSegment, h.initSet
	if broadcasterAttached {
		l.sendJSON(map[string]any{"type": "broadcast-started"})
	}
	if initSet {
		l.sendJSON(map[string]any{"type": "init-segment", "size": len(initSegment)})
		l.sendBinary(initSegment)
	}
	h.mu.Unlock()

	telemetry.ListenersActive.Inc()
}

// RemoveListener detaches and stops a listener. Idempotent.
func (h *RelayHub) RemoveListener(id string) {
	h.mu.Lock()
	l, ok := h.listeners[id]
	if ok {
		delete(h.listeners, id)
	}
	h.mu.Unlock()
	if ok {
		telemetry.ListenersActive.Dec()
		l.stop()
	}
}

func (h *RelayHub) disconnectSlowConsumer(l *listener) {
	telemetry.SlowConsumerDisconnectsTotal.WithLabelValues(h.sessionPrefix).Inc()
	telemetry.ListenerDropsTotal.WithLabelValues(h.sessionPrefix).Inc()
	h.RemoveListener(l.id)
	_ = l.socket.Close("slow-consumer")
}

// ListenerCount returns the number of currently attached listeners.
func (h *RelayHub) ListenerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Broadcast sends a JSON control frame to every attached listener, e.g.
// broadcast-started or session-ended.
func (h *RelayHub) Broadcast(v any) {
	h.mu.RLock()
	listeners := make([]*listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		listeners = append(listeners, l)
	}
	h.mu.RUnlock()
	for _, l := range listeners {
		l.sendJSON(v)
	}
}

// CloseAllListeners stops every listener's writer goroutine without sending a
// socket-level close; the caller is responsible for closing the underlying
// sockets after any best-effort final message has been queued.
func (h *RelayHub) CloseAllListeners() []Socket {
	h.mu.Lock()
	sockets := make([]Socket, 0, len(h.listeners))
	for id, l := range h.listeners {
		sockets = append(sockets, l.socket)
		l.drainAndStop()
		delete(h.listeners, id)
	}
	h.mu.Unlock()
	if len(sockets) > 0 {
		telemetry.ListenersActive.Sub(float64(len(sockets)))
	}
	return sockets
}
