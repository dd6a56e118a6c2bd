/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package history

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/example/relaycast/internal/events"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&SessionRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestServiceRecordPersistsSessionRecordWithHashedToken(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, events.NewBus(), zerolog.Nop())

	startedAt := time.Now().UTC().Truncate(time.Second)
	svc.record(events.Payload{
		"session_id":     "sess-1",
		"token":          "secret-token",
		"reason":         "stopped_by_broadcaster",
		"started_at":     startedAt,
		"bytes_recorded": int64(4096),
		"peak_listeners": int32(3),
		"recording_path": "/recordings/sess-1.webm",
		"duration_ms":    int64(60000),
	})

	var got SessionRecord
	if err := db.First(&got, "session_id = ?", "sess-1").Error; err != nil {
		t.Fatalf("expected a persisted record, got error: %v", err)
	}

	if got.Reason != "stopped_by_broadcaster" {
		t.Fatalf("expected reason to be persisted, got %q", got.Reason)
	}
	if got.BytesRecorded != 4096 || got.PeakListeners != 3 {
		t.Fatalf("expected counters to be persisted, got bytes=%d peak=%d", got.BytesRecorded, got.PeakListeners)
	}
	if got.ListenerTokenHash == "secret-token" {
		t.Fatal("expected the token to be hashed, not stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(got.ListenerTokenHash), []byte("secret-token")); err != nil {
		t.Fatalf("expected stored hash to verify against the original token: %v", err)
	}
	if !got.EndedAt.After(got.StartedAt) {
		t.Fatalf("expected EndedAt to be derived from StartedAt + duration")
	}
}

func TestServiceStartStopsOnContextCancellation(t *testing.T) {
	db := newTestDB(t)
	bus := events.NewBus()
	svc := NewService(db, bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	bus.Publish(events.EventSessionEnded, events.Payload{
		"session_id": "sess-2",
		"token":      "another-token",
		"started_at": time.Now().UTC(),
	})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		var count int64
		db.Model(&SessionRecord{}).Where("session_id = ?", "sess-2").Count(&count)
		if count == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	var count int64
	db.Model(&SessionRecord{}).Where("session_id = ?", "sess-2").Count(&count)
	if count != 1 {
		t.Fatalf("expected the published event to be recorded, got count=%d", count)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Start to return after ctx cancellation")
	}
}
