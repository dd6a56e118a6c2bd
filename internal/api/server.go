/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/example/relaycast/internal/config"
	"github.com/example/relaycast/internal/relay"
	"github.com/example/relaycast/internal/telemetry"
	"github.com/example/relaycast/internal/ws"
)

// Server bundles the HTTP control surface and the WebSocket upgrade gate
// behind one listener.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	store      *relay.SessionStore
	gate       *ws.Gate
	closers    []func() error
}

// New constructs the server, wires routes, and prepares (but does not start)
// the underlying http.Server.
func New(cfg *config.Config, logger zerolog.Logger, store *relay.SessionStore) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.TracingMiddleware("relaycast-api"))
	router.Use(telemetry.MetricsMiddleware)
	// The WebSocket upgrade is a long-lived streaming connection; it must not
	// be bound by the request timeout applied to ordinary API calls.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	gate := &ws.Gate{
		Store:           store,
		BroadcasterIdle: cfg.BroadcasterIdleTimeout,
		Logger:          logger,
	}

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		store:  store,
		gate:   gate,
	}
	srv.configureRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: router,
		// WriteTimeout left at zero: the broadcaster and listener WebSocket
		// connections are long-lived and manage their own deadlines via the
		// read idle timeout in internal/ws.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", telemetry.Handler())

	s.router.Route("/api/session", func(r chi.Router) {
		r.Post("/create", s.handleCreateSession)
		r.Post("/{id}/stop", s.handleStopSession)
	})
	s.router.Get("/api/recording/{file}", s.handleGetRecording)

	// ws(s)://host/?sid=<id>&role=<broadcaster|listener>[&t=<token>] — mounted
	// at root so the listen URL returned by POST /api/session/create needs no
	// extra path segment.
	s.router.Handle("/", s.gate)
}

// HTTPServer exposes the underlying net/http server, e.g. for tests that need
// to drive it through httptest without a real listener.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe blocks serving HTTP until Shutdown is called, mirroring
// http.Server.ListenAndServe's contract of always returning a non-nil error.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("relay http server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight HTTP requests, tears down every live session, and
// runs registered closers in reverse order.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.store.ShutdownAll()

	var firstErr error
	if err != nil {
		firstErr = err
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if cerr := s.closers[i](); cerr != nil && firstErr == nil {
			firstErr = cerr
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook run in reverse order during Shutdown.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}
