/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package ws

import (
	"bufio"
	"fmt"
	"net"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/relaycast/internal/events"
	"github.com/example/relaycast/internal/relay"
)

func newTestStore(t *testing.T, maxListeners int) *relay.SessionStore {
	t.Helper()
	return relay.NewSessionStore(relay.Options{
		RecordingsDir:      t.TempDir(),
		SessionTTL:         time.Hour,
		MaxListeners:       maxListeners,
		ListenerQueueDepth: 8,
		SlowConsumerLimit:  5,
		RecordingHighWater: 1 << 20,
	}, events.NewBus(), zerolog.Nop())
}

// rawGet issues path over a plain TCP connection to addr and reports whether
// the server sent any bytes back before closing the connection. Admission
// failures hijack and close the raw connection with no HTTP response at all.
func rawGet(t *testing.T, addr, path string) (gotResponse bool) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	fmt.Fprintf(conn, "GET %s HTTP/1.1\r\nHost: test\r\n\r\n", path)
	conn.SetReadDeadline(time.Now().Add(time.Second))

	reader := bufio.NewReader(conn)
	_, err = reader.ReadByte()
	return err == nil
}

func TestGateRejectsMissingSessionID(t *testing.T) {
	store := newTestStore(t, 10)
	gate := &Gate{Store: store, BroadcasterIdle: time.Second, Logger: zerolog.Nop()}
	srv := httptest.NewServer(gate)
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	if rawGet(t, u.Host, "/?role=listener&t=x") {
		t.Fatal("expected admission failure to close the connection without a response")
	}
}

func TestGateRejectsUnknownSession(t *testing.T) {
	store := newTestStore(t, 10)
	gate := &Gate{Store: store, BroadcasterIdle: time.Second, Logger: zerolog.Nop()}
	srv := httptest.NewServer(gate)
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	if rawGet(t, u.Host, "/?sid=doesnotexist&role=listener&t=x") {
		t.Fatal("expected admission failure for unknown session")
	}
}

func TestGateRejectsListenerWithBadToken(t *testing.T) {
	store := newTestStore(t, 10)
	session, err := store.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer session.Teardown(relay.ReasonShutdown)

	gate := &Gate{Store: store, BroadcasterIdle: time.Second, Logger: zerolog.Nop()}
	srv := httptest.NewServer(gate)
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	if rawGet(t, u.Host, fmt.Sprintf("/?sid=%s&role=listener&t=wrong-token", session.ID)) {
		t.Fatal("expected admission failure for a bad listener token")
	}
}

func TestGateRejectsListenerOverCapacity(t *testing.T) {
	store := newTestStore(t, 0)
	session, err := store.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer session.Teardown(relay.ReasonShutdown)

	gate := &Gate{Store: store, BroadcasterIdle: time.Second, Logger: zerolog.Nop()}
	srv := httptest.NewServer(gate)
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	if rawGet(t, u.Host, fmt.Sprintf("/?sid=%s&role=listener&t=%s", session.ID, session.Token)) {
		t.Fatal("expected admission failure once at capacity")
	}
}

func TestGateRejectsInvalidRole(t *testing.T) {
	store := newTestStore(t, 10)
	gate := &Gate{Store: store, BroadcasterIdle: time.Second, Logger: zerolog.Nop()}
	srv := httptest.NewServer(gate)
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	if rawGet(t, u.Host, "/?sid=abc&role=admin&t=x") {
		t.Fatal("expected admission failure for an unrecognised role")
	}
}
