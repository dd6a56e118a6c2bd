/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package notify

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/relaycast/internal/events"
)

func TestNewLifecycleNotifierFallsBackWithoutURL(t *testing.T) {
	n := NewLifecycleNotifier(context.Background(), "", zerolog.Nop())
	if !n.useFallback {
		t.Fatal("expected fallback mode when no NATS URL is configured")
	}
	if n.conn != nil {
		t.Fatal("expected no connection to be held in fallback mode")
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewLifecycleNotifierFallsBackOnUnreachableURL(t *testing.T) {
	n := NewLifecycleNotifier(context.Background(), "nats://127.0.0.1:1", zerolog.Nop())
	if !n.useFallback {
		t.Fatal("expected fallback mode when the NATS server is unreachable")
	}
}

func TestListenDrainsEventsInFallbackModeWithoutBlocking(t *testing.T) {
	n := NewLifecycleNotifier(context.Background(), "", zerolog.Nop())
	bus := events.NewBus()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Listen(ctx, bus)
		close(done)
	}()

	bus.Publish(events.EventSessionCreated, events.Payload{"session_id": "s1"})
	bus.Publish(events.EventSessionEnded, events.Payload{"session_id": "s1"})

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Listen to return promptly after ctx cancellation")
	}
}

func TestPublishFallsBackAfterRepeatedFailures(t *testing.T) {
	n := &LifecycleNotifier{logger: zerolog.Nop()}

	for i := 0; i < maxPublishFailures; i++ {
		n.recordFailure(context.DeadlineExceeded, events.EventSessionEnded)
	}

	if !n.useFallback {
		t.Fatal("expected fallback mode after maxPublishFailures consecutive failures")
	}
}
