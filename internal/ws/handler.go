/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ws

import (
	"context"
	"time"

	"nhooyr.io/websocket"

	"github.com/example/relaycast/internal/relay"
)

// readBroadcaster blocks reading frames from the broadcaster until the
// connection closes, errors, or goes idle for longer than idleTimeout. Binary
// frames are forwarded to the session; other frame kinds are ignored per
// spec ("the core MAY ignore unknown types").
func readBroadcaster(ctx context.Context, socket *conn, session *relay.Session, idleTimeout time.Duration) {
	for {
		readCtx, cancel := context.WithTimeout(ctx, idleTimeout)
		kind, data, err := socket.c.Read(readCtx)
		cancel()
		if err != nil {
			return
		}
		if kind == websocket.MessageBinary {
			_ = session.Forward(data)
		}
	}
}

// readListener blocks reading frames from a listener purely to detect close
// or error; listeners never push meaningful data to the server.
func readListener(ctx context.Context, socket *conn) {
	for {
		if _, _, err := socket.c.Read(ctx); err != nil {
			return
		}
	}
}
