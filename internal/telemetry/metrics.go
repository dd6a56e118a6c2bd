/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP surface metrics, consumed by MetricsMiddleware.
var (
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relaycast_api_active_connections",
		Help: "Number of HTTP requests currently being handled.",
	})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaycast_api_requests_total",
		Help: "Total HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relaycast_api_request_duration_seconds",
		Help:    "HTTP request latency by method, route and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	APIWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relaycast_api_websocket_connections",
		Help: "Number of currently open WebSocket connections (broadcasters and listeners).",
	})
)

// Relay hub metrics. Labelled by the first two hex characters of a session id
// rather than the full id, to bound cardinality while still giving a coarse
// per-tenant breakdown in dashboards.
var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relaycast_sessions_active",
		Help: "Number of sessions currently tracked by the SessionStore.",
	})

	ListenersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relaycast_listeners_active",
		Help: "Number of listener sockets currently attached across all sessions.",
	})

	ChunksRelayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaycast_chunks_relayed_total",
		Help: "Total binary chunks forwarded from a broadcaster to the recording sink and listeners.",
	}, []string{"session_prefix"})

	ListenerDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaycast_listener_drops_total",
		Help: "Total listeners dropped for sustained queue overflow, one per disconnect; chunks discarded by drop-oldest overflow are not counted.",
	}, []string{"session_prefix"})

	SlowConsumerDisconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaycast_slow_consumer_disconnects_total",
		Help: "Total listeners disconnected for sustained queue overflow.",
	}, []string{"session_prefix"})

	RecordingWriteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relaycast_recording_write_seconds",
		Help:    "Time spent enqueuing a chunk onto the recording sink.",
		Buckets: prometheus.DefBuckets,
	})
)

// Database metrics, consumed by internal/db's gorm callbacks.
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relaycast_db_query_duration_seconds",
		Help:    "GORM operation latency by operation and table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaycast_db_errors_total",
		Help: "Total GORM operation errors by operation and kind.",
	}, []string{"operation", "kind"})

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relaycast_db_connections_active",
		Help: "Open connections in the database connection pool.",
	})
)

// Handler returns the Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
