/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// statusCapture wraps http.ResponseWriter to remember the status code written.
// MetricsMiddleware seeds statusCode with 200, so a handler that never calls
// WriteHeader is reported as 200.
type statusCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *statusCapture) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusCapture) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// routeLabel returns the chi route pattern when available, falling back to
// the raw path for requests chi never matched (e.g. a 404).
func routeLabel(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil && routeCtx.RoutePattern() != "" {
		return routeCtx.RoutePattern()
	}
	return r.URL.Path
}

// MetricsMiddleware records request count and latency for ordinary HTTP
// calls. A WebSocket upgrade request is excluded from the active-connections
// gauge, the request counter and the duration histogram: it is a long-lived
// stream tracked separately by APIWebSocketConnections (internal/ws/gate.go),
// not a bounded request.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		APIActiveConnections.Inc()
		defer APIActiveConnections.Dec()

		wrapped := &statusCapture{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		endpoint := routeLabel(r)
		status := strconv.Itoa(wrapped.statusCode)

		APIRequestDuration.WithLabelValues(r.Method, endpoint, status).Observe(time.Since(start).Seconds())
		APIRequestsTotal.WithLabelValues(r.Method, endpoint, status).Inc()
	})
}

// TracingMiddleware wraps the HTTP surface in an OpenTelemetry span per
// request, named by method and chi route pattern rather than the raw path so
// sessions with distinct IDs collapse into one span name in trace backends.
func TracingMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + routeLabel(r)
			}),
		)
	}
}
