/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories published by the relay.
type EventType string

const (
	// EventSessionCreated fires once a session is allocated by SessionStore.
	EventSessionCreated EventType = "session.created"
	// EventBroadcasterAttached fires when a broadcaster socket successfully attaches.
	EventBroadcasterAttached EventType = "session.broadcaster_attached"
	// EventListenerAttached fires when a listener socket successfully attaches.
	EventListenerAttached EventType = "session.listener_attached"
	// EventListenerDetached fires when a listener socket is removed (clean or slow-consumer).
	EventListenerDetached EventType = "session.listener_detached"
	// EventSlowConsumer names a listener disconnect for failing to drain its queue.
	// The relay does not publish it; a slow-consumer removal is reported as
	// EventListenerDetached once the listener's read loop exits.
	EventSlowConsumer EventType = "session.slow_consumer"
	// EventSessionEnded fires once teardown has fully completed for a session.
	EventSessionEnded EventType = "session.ended"
)

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
	close(sub)
}
