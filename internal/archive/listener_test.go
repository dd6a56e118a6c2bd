/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package archive

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/relaycast/internal/config"
	"github.com/example/relaycast/internal/events"
)

func TestNewRecordingArchiverDisabledWithoutBucket(t *testing.T) {
	cfg := &config.Config{S3Bucket: ""}
	archiver, err := NewRecordingArchiver(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRecordingArchiver: %v", err)
	}
	if archiver != nil {
		t.Fatal("expected a nil archiver when S3Bucket is unset")
	}
}

func TestNilArchiverListenIsANoOp(t *testing.T) {
	var archiver *RecordingArchiver
	bus := events.NewBus()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		archiver.Listen(ctx, bus)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Listen to return immediately for a nil archiver")
	}
}
