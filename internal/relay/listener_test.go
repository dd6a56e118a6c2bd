/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package relay

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestListenerEnqueueDropsOldestAndSignalsSlowConsumer(t *testing.T) {
	l := &listener{
		id:        "l1",
		socket:    newFakeSocket(),
		logger:    zerolog.Nop(),
		depth:     2,
		threshold: 3,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	if slow := l.enqueue(outboundFrame{data: []byte("a")}); slow {
		t.Fatal("expected no slow consumer signal on first enqueue")
	}
	if slow := l.enqueue(outboundFrame{data: []byte("b")}); slow {
		t.Fatal("expected no slow consumer signal while under capacity")
	}
	if len(l.pending) != 2 {
		t.Fatalf("expected 2 pending frames, got %d", len(l.pending))
	}

	// Queue is now at capacity; each further enqueue drops the oldest entry.
	if slow := l.enqueue(outboundFrame{data: []byte("c")}); slow {
		t.Fatal("expected streak 1, not yet slow")
	}
	if string(l.pending[0].data) != "b" {
		t.Fatalf("expected oldest frame dropped, got %q", l.pending[0].data)
	}
	if slow := l.enqueue(outboundFrame{data: []byte("d")}); slow {
		t.Fatal("expected streak 2, not yet slow")
	}
	if slow := l.enqueue(outboundFrame{data: []byte("e")}); !slow {
		t.Fatal("expected slow consumer signal once overflow streak reaches threshold")
	}
}

func TestListenerEnqueueResetsStreakOnNonOverflowingEnqueue(t *testing.T) {
	l := &listener{
		id:        "l1",
		socket:    newFakeSocket(),
		logger:    zerolog.Nop(),
		depth:     1,
		threshold: 2,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	l.enqueue(outboundFrame{data: []byte("a")})
	if slow := l.enqueue(outboundFrame{data: []byte("b")}); slow {
		t.Fatal("first overflow should not yet be slow")
	}
	if l.overflowStreak != 1 {
		t.Fatalf("expected overflow streak 1, got %d", l.overflowStreak)
	}

	// Simulate the writer goroutine draining the queue, so the next enqueue
	// fits without overflowing.
	l.pending = l.pending[:0]
	if slow := l.enqueue(outboundFrame{data: []byte("c")}); slow {
		t.Fatal("non-overflowing enqueue must not signal slow consumer")
	}
	if l.overflowStreak != 0 {
		t.Fatalf("expected overflow streak reset to 0, got %d", l.overflowStreak)
	}
}

func TestListenerRunDeliversFramesInFIFOOrder(t *testing.T) {
	sock := newFakeSocket()
	l := newListener("l1", sock, 8, 5, zerolog.Nop())
	defer l.stop()

	l.sendJSON(map[string]any{"type": "ok"})
	l.sendBinary([]byte("chunk-1"))
	l.sendBinary([]byte("chunk-2"))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sock.jsonCount() == 1 && sock.binaryCount() == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if sock.jsonCount() != 1 {
		t.Fatalf("expected 1 json frame delivered, got %d", sock.jsonCount())
	}
	if sock.binaryCount() != 2 {
		t.Fatalf("expected 2 binary frames delivered, got %d", sock.binaryCount())
	}
	if string(sock.binary[0]) != "chunk-1" || string(sock.binary[1]) != "chunk-2" {
		t.Fatalf("expected FIFO delivery order, got %q then %q", sock.binary[0], sock.binary[1])
	}
}

func TestListenerStopIsIdempotent(t *testing.T) {
	l := newListener("l1", newFakeSocket(), 4, 3, zerolog.Nop())
	l.stop()
	l.stop() // must not panic on double close
}
