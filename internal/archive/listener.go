/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package archive

import (
	"context"

	"github.com/example/relaycast/internal/events"
)

// Listen subscribes to session-ended events and archives each session's
// recording in the background, until ctx is cancelled. A nil archiver
// (archival disabled) makes this a no-op.
func (a *RecordingArchiver) Listen(ctx context.Context, bus *events.Bus) {
	if a == nil {
		return
	}

	sessionEnded := bus.Subscribe(events.EventSessionEnded)
	defer bus.Unsubscribe(events.EventSessionEnded, sessionEnded)

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-sessionEnded:
			sessionID, _ := payload["session_id"].(string)
			path, _ := payload["recording_path"].(string)
			if path == "" {
				continue
			}
			if err := a.Upload(ctx, sessionID, path); err != nil {
				a.logger.Warn().Err(err).Str("session_id", sessionID).Msg("recording archive upload failed")
			}
		}
	}
}
