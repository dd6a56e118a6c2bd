/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package relay

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestHub(t *testing.T, queueDepth, overflowLimit int) (*RelayHub, *RecordingSink) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "broadcast-hub.webm")
	sink, err := NewRecordingSink(path, 1<<20, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRecordingSink: %v", err)
	}
	t.Cleanup(func() { sink.Close() })
	return NewRelayHub(sink, "abcd1234", queueDepth, overflowLimit, zerolog.Nop()), sink
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestHubAddListenerSendsInitSegmentAfterBroadcasterLive(t *testing.T) {
	hub, _ := newTestHub(t, 8, 5)
	hub.Forward([]byte("init-chunk"))

	sock := newFakeSocket()
	hub.AddListener("l1", sock, true)

	waitForCondition(t, time.Second, func() bool { return sock.jsonCount() >= 2 && sock.binaryCount() == 1 })

	if j, ok := sock.json[0].(map[string]any); !ok || j["type"] != "broadcast-started" {
		t.Fatalf("expected broadcast-started frame first, got %#v", sock.json[0])
	}
	if j, ok := sock.json[1].(map[string]any); !ok || j["type"] != "init-segment" {
		t.Fatalf("expected init-segment frame second, got %#v", sock.json[1])
	}
	if string(sock.binary[0]) != "init-chunk" {
		t.Fatalf("expected cached init chunk delivered, got %q", sock.binary[0])
	}
}

func TestHubAddListenerSkipsBroadcastStartedWhenNotYetLive(t *testing.T) {
	hub, _ := newTestHub(t, 8, 5)
	sock := newFakeSocket()
	hub.AddListener("l1", sock, false)

	time.Sleep(50 * time.Millisecond)
	if sock.jsonCount() != 0 {
		t.Fatalf("expected no control frames before broadcaster attaches, got %d", sock.jsonCount())
	}
}

func TestHubForwardFansOutToAllListeners(t *testing.T) {
	hub, _ := newTestHub(t, 8, 5)
	a, b := newFakeSocket(), newFakeSocket()
	hub.AddListener("a", a, false)
	hub.AddListener("b", b, false)

	hub.Forward([]byte("chunk"))

	waitForCondition(t, time.Second, func() bool { return a.binaryCount() == 1 && b.binaryCount() == 1 })
}

func TestHubDisconnectsSlowConsumerAfterSustainedOverflow(t *testing.T) {
	hub, _ := newTestHub(t, 1, 2)
	sock := newFakeSocket()
	sock.writeDelay = make(chan struct{}) // never closes: writer goroutine blocks forever
	hub.AddListener("l1", sock, false)

	// The listener's single writer goroutine is now permanently blocked inside
	// WriteBinary, so every subsequent enqueue only ever grows/drops pending.
	for i := 0; i < 6; i++ {
		hub.Forward([]byte("x"))
	}

	waitForCondition(t, time.Second, func() bool { return hub.ListenerCount() == 0 })
	if !sock.isClosed() {
		t.Fatal("expected slow consumer socket to be closed")
	}
}

func TestHubRemoveListenerIsIdempotent(t *testing.T) {
	hub, _ := newTestHub(t, 8, 5)
	sock := newFakeSocket()
	hub.AddListener("l1", sock, false)
	hub.RemoveListener("l1")
	hub.RemoveListener("l1") // must not panic or double-decrement
	if hub.ListenerCount() != 0 {
		t.Fatalf("expected 0 listeners, got %d", hub.ListenerCount())
	}
}
