/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/example/relaycast/internal/relay"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleCreateSession implements POST /api/session/create.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.Create()
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create session")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": session.ID,
		"token":     session.Token,
		"listenUrl": "/listener.html?sid=" + session.ID + "&t=" + session.Token,
		"expiresAt": session.ExpireAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	})
}

// handleStopSession implements POST /api/session/{id}/stop.
func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, ok := s.store.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}

	recordingName := filepath.Base(session.RecordingPath())
	session.Teardown(relay.ReasonStoppedByBroadcaster)

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "recording": recordingName})
}

// handleGetRecording implements GET /api/recording/{file}. Only the basename
// is ever honoured — any directory component is stripped before joining with
// the recordings directory, so a request cannot escape it via "../".
func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	requested := filepath.Base(chi.URLParam(r, "file"))
	path := filepath.Join(s.cfg.RecordingsDir, requested)

	f, err := openRecording(path)
	if err != nil {
		if errors.Is(err, errRecordingNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		s.logger.Error().Err(err).Str("path", path).Msg("failed to open recording")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "audio/webm")
	http.ServeContent(w, r, requested, f.modTime, f)
}

// handleHealthz implements GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"liveSessions": s.store.Count(),
	})
}
