/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ws

import (
	"context"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// maxFrameBytes bounds a single inbound frame per session, per the resource
// policy: a broadcaster or listener may never send more than 10 MiB in one
// WebSocket message.
const maxFrameBytes = 10 << 20

// conn adapts *websocket.Conn to relay.Socket. Writes are serialised with a
// mutex because nhooyr's Conn does not allow concurrent writers, and several
// goroutines may write control frames (listener count, backpressure, drain)
// to the same broadcaster connection.
type conn struct {
	c *websocket.Conn

	mu sync.Mutex
}

func newConn(c *websocket.Conn) *conn {
	c.SetReadLimit(maxFrameBytes)
	return &conn{c: c}
}

func (s *conn) WriteBinary(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.Write(ctx, websocket.MessageBinary, data)
}

func (s *conn) WriteJSON(ctx context.Context, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wsjson.Write(ctx, s.c, v)
}

func (s *conn) Close(reason string) error {
	return s.c.Close(websocket.StatusNormalClosure, reason)
}
