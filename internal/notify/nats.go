/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/example/relaycast/internal/events"
)

const (
	streamName         = "RELAYCAST_LIFECYCLE"
	subjectPrefix      = "relaycast.lifecycle."
	maxPublishFailures = 5
)

// LifecycleNotifier forwards session lifecycle events onto a NATS JetStream
// stream for external consumers (dashboards, alerting, other services). If
// NATS is unreachable, or starts failing, it falls back to logging locally
// rather than blocking the relay — lifecycle notification is best-effort.
type LifecycleNotifier struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger zerolog.Logger

	mu          sync.Mutex
	failures    int
	useFallback bool
}

// NewLifecycleNotifier connects to url and ensures the lifecycle stream
// exists. A connection failure degrades to fallback mode instead of erroring,
// since lifecycle notification is not required for the relay to function.
func NewLifecycleNotifier(ctx context.Context, url string, logger zerolog.Logger) *LifecycleNotifier {
	logger = logger.With().Str("component", "notify").Logger()
	if url == "" {
		return &LifecycleNotifier{logger: logger, useFallback: true}
	}

	conn, err := nats.Connect(url, nats.MaxReconnects(-1), nats.ReconnectWait(2*time.Second))
	if err != nil {
		logger.Warn().Err(err).Msg("NATS connection failed, lifecycle notifications will log locally")
		return &LifecycleNotifier{logger: logger, useFallback: true}
	}

	js, err := jetstream.New(conn)
	if err != nil {
		logger.Warn().Err(err).Msg("JetStream init failed, lifecycle notifications will log locally")
		conn.Close()
		return &LifecycleNotifier{logger: logger, useFallback: true}
	}

	if _, err := js.Stream(ctx, streamName); err != nil {
		_, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     streamName,
			Subjects: []string{subjectPrefix + ">"},
			MaxAge:   24 * time.Hour,
			Storage:  jetstream.FileStorage,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create lifecycle stream, notifications will log locally")
			conn.Close()
			return &LifecycleNotifier{logger: logger, useFallback: true}
		}
	}

	return &LifecycleNotifier{conn: conn, js: js, logger: logger}
}

// Listen subscribes to the events relevant to session lifecycle and
// publishes each one to NATS until ctx is cancelled.
func (n *LifecycleNotifier) Listen(ctx context.Context, bus *events.Bus) {
	kinds := []events.EventType{
		events.EventSessionCreated,
		events.EventBroadcasterAttached,
		events.EventSlowConsumer,
		events.EventSessionEnded,
	}

	subs := make(map[events.EventType]events.Subscriber, len(kinds))
	for _, kind := range kinds {
		subs[kind] = bus.Subscribe(kind)
	}
	defer func() {
		for kind, sub := range subs {
			bus.Unsubscribe(kind, sub)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case p := <-subs[events.EventSessionCreated]:
			n.publish(ctx, events.EventSessionCreated, p)
		case p := <-subs[events.EventBroadcasterAttached]:
			n.publish(ctx, events.EventBroadcasterAttached, p)
		case p := <-subs[events.EventSlowConsumer]:
			n.publish(ctx, events.EventSlowConsumer, p)
		case p := <-subs[events.EventSessionEnded]:
			n.publish(ctx, events.EventSessionEnded, p)
		}
	}
}

func (n *LifecycleNotifier) publish(ctx context.Context, kind events.EventType, payload events.Payload) {
	n.mu.Lock()
	fallback := n.useFallback
	n.mu.Unlock()

	if fallback {
		n.logger.Info().Str("event", string(kind)).Interface("payload", payload).Msg("lifecycle event (local fallback)")
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error().Err(err).Str("event", string(kind)).Msg("failed to marshal lifecycle event")
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if _, err := n.js.Publish(pubCtx, subjectPrefix+string(kind), data); err != nil {
		n.recordFailure(err, kind)
		return
	}

	n.mu.Lock()
	n.failures = 0
	n.mu.Unlock()
}

func (n *LifecycleNotifier) recordFailure(err error, kind events.EventType) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures++
	n.logger.Warn().Err(err).Str("event", string(kind)).Int("failures", n.failures).Msg("lifecycle publish failed")
	if n.failures >= maxPublishFailures && !n.useFallback {
		n.logger.Warn().Msg("lifecycle notifier failure threshold reached, falling back to local logging")
		n.useFallback = true
		if n.conn != nil {
			n.conn.Close()
		}
	}
}

// Close releases the underlying NATS connection, if any.
func (n *LifecycleNotifier) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
