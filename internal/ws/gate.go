/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/example/relaycast/internal/relay"
	"github.com/example/relaycast/internal/telemetry"
)

// Gate is the UpgradeGate: it authenticates and admits incoming WebSocket
// upgrades, resolves role, enforces capacity, and binds the socket to a
// Session. Failures here return no error body — the connection is simply
// destroyed — this is the relay's sole admission control.
type Gate struct {
	Store           *relay.SessionStore
	BroadcasterIdle time.Duration
	Logger          zerolog.Logger
}

// ServeHTTP implements the WebSocket endpoint: ws(s)://host/?sid=..&role=..&t=..
func (g *Gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sid := q.Get("sid")
	role := q.Get("role")
	token := q.Get("t")

	if sid == "" || role == "" || (role != "broadcaster" && role != "listener") {
		destroySilently(w)
		return
	}

	session, ok := g.Store.Get(sid)
	if !ok || !session.Active() {
		destroySilently(w)
		return
	}

	if role == "listener" {
		if token != session.Token {
			destroySilently(w)
			return
		}
		if session.ListenerCount() >= sessionMaxListeners(session) {
			destroySilently(w)
			return
		}
	}

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		g.Logger.Debug().Err(err).Str("session_id", sid).Msg("websocket accept failed")
		return
	}
	socket := newConn(wsConn)
	telemetry.APIWebSocketConnections.Inc()
	defer telemetry.APIWebSocketConnections.Dec()

	if role == "broadcaster" {
		g.runBroadcaster(r.Context(), session, socket)
		return
	}
	g.runListener(r.Context(), session, socket)
}

// sessionMaxListeners reads back the configured cap via ListenerCount's
// sibling so the gate doesn't need its own copy of MAX_LISTENERS_PER_SESSION.
func sessionMaxListeners(s *relay.Session) int {
	return s.MaxListeners()
}

// destroySilently closes the underlying TCP connection without writing any
// HTTP response, so failed admission is indistinguishable from a dropped
// connection to the client — per spec, no information about session
// existence is leaked.
func destroySilently(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return
	}
	netConn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	_ = netConn.Close()
}

func (g *Gate) runBroadcaster(ctx context.Context, session *relay.Session, socket *conn) {
	if err := session.AttachBroadcaster(socket); err != nil {
		_ = socket.WriteJSON(ctx, map[string]any{"type": "error", "message": err.Error()})
		_ = socket.Close("rejected")
		return
	}

	readBroadcaster(ctx, socket, session, g.BroadcasterIdle)
	session.DetachBroadcaster()
	session.Teardown(relay.ReasonBroadcasterDisconnected)
}

func (g *Gate) runListener(ctx context.Context, session *relay.Session, socket *conn) {
	_ = socket.WriteJSON(ctx, map[string]any{"type": "ok", "sessionId": session.ID})

	id, err := session.AttachListener(socket)
	if err != nil {
		_ = socket.Close(err.Error())
		return
	}

	readListener(ctx, socket)
	session.DetachListener(id)
}
