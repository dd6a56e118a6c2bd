/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/relaycast/internal/config"
	"github.com/example/relaycast/internal/events"
	"github.com/example/relaycast/internal/relay"
)

func newTestServer(t *testing.T) (*Server, *relay.SessionStore) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		HTTPBind:               "127.0.0.1",
		HTTPPort:                0,
		RecordingsDir:           dir,
		SessionTTL:              time.Hour,
		MaxListenersPerSession:  10,
		BroadcasterIdleTimeout:  30 * time.Second,
		ListenerQueueDepth:      8,
		SlowConsumerThreshold:   5,
		RecordingHighWaterMark:  1 << 20,
	}
	store := relay.NewSessionStore(relay.Options{
		RecordingsDir:      cfg.RecordingsDir,
		SessionTTL:         cfg.SessionTTL,
		MaxListeners:       cfg.MaxListenersPerSession,
		ListenerQueueDepth: cfg.ListenerQueueDepth,
		SlowConsumerLimit:  cfg.SlowConsumerThreshold,
		RecordingHighWater: cfg.RecordingHighWaterMark,
	}, events.NewBus(), zerolog.Nop())

	return New(cfg, zerolog.Nop(), store), store
}

func TestHandleCreateSessionReturnsListenURL(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/session/create", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["sessionId"] == "" || body["token"] == "" {
		t.Fatalf("expected sessionId and token in response, got %v", body)
	}
	wantURL := fmt.Sprintf("/listener.html?sid=%v&t=%v", body["sessionId"], body["token"])
	if body["listenUrl"] != wantURL {
		t.Fatalf("expected listenUrl %q, got %v", wantURL, body["listenUrl"])
	}
}

func TestHandleStopSessionReturns404ForUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/session/doesnotexist/stop", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleStopSessionTearsDownSession(t *testing.T) {
	srv, store := newTestServer(t)
	session, err := store.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/session/"+session.ID+"/stop", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, ok := store.Get(session.ID); ok {
		t.Fatal("expected session to be removed from the store after stop")
	}
}

func TestHandleGetRecordingRejectsPathTraversal(t *testing.T) {
	srv, _ := newTestServer(t)

	// Place a file outside the recordings directory that a traversal attempt
	// might otherwise reach.
	outside := filepath.Join(t.TempDir(), "secret.webm")
	if err := os.WriteFile(outside, []byte("nope"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/recording/..%2F..%2Fsecret.webm", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected traversal attempt to resolve as not found, got %d", rec.Code)
	}
}

func TestHandleGetRecordingServesExistingFile(t *testing.T) {
	srv, _ := newTestServer(t)
	path := filepath.Join(srv.cfg.RecordingsDir, "broadcast-abc.webm")
	if err := os.WriteFile(path, []byte("audio-bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/recording/broadcast-abc.webm", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "audio-bytes" {
		t.Fatalf("expected file contents served, got %q", rec.Body.String())
	}
}

func TestHandleHealthzReportsLiveSessionCount(t *testing.T) {
	srv, store := newTestServer(t)
	if _, err := store.Create(); err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["liveSessions"] != float64(1) {
		t.Fatalf("expected liveSessions=1, got %v", body["liveSessions"])
	}
}
