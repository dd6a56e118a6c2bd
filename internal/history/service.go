/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/example/relaycast/internal/events"
)

// Service persists a SessionRecord for every session teardown it observes.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService creates a history service backed by db.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Start subscribes to session-ended events and writes a record for each,
// until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	sessionEnded := s.bus.Subscribe(events.EventSessionEnded)
	defer s.bus.Unsubscribe(events.EventSessionEnded, sessionEnded)

	s.logger.Info().Msg("history service started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("history service stopping")
			return
		case payload := <-sessionEnded:
			s.record(payload)
		}
	}
}

func (s *Service) record(payload events.Payload) {
	sessionID, _ := payload["session_id"].(string)
	token, _ := payload["token"].(string)
	reason, _ := payload["reason"].(string)
	startedAt, _ := payload["started_at"].(time.Time)
	bytesRecorded, _ := payload["bytes_recorded"].(int64)
	peakListeners, _ := payload["peak_listeners"].(int32)
	recordingPath, _ := payload["recording_path"].(string)
	durationMS, _ := payload["duration_ms"].(int64)

	tokenHash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to hash listener token")
		return
	}

	record := &SessionRecord{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		ListenerTokenHash: string(tokenHash),
		Reason:            reason,
		StartedAt:         startedAt,
		EndedAt:           startedAt.Add(time.Duration(durationMS) * time.Millisecond),
		DurationMS:        durationMS,
		BytesRecorded:     bytesRecorded,
		PeakListeners:     peakListeners,
		RecordingPath:     recordingPath,
	}

	if err := s.db.Create(record).Error; err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to persist session record")
	}
}
