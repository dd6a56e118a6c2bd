/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package history

import "time"

// SessionRecord is the durable audit row written once a broadcast session
// ends. The listener token is never stored in the clear.
type SessionRecord struct {
	ID                string `gorm:"primaryKey;size:36"`
	SessionID         string `gorm:"index;size:32;not null"`
	ListenerTokenHash string `gorm:"size:60;not null"`
	Reason            string `gorm:"size:32;not null"`
	StartedAt         time.Time
	EndedAt           time.Time
	DurationMS        int64
	BytesRecorded     int64
	PeakListeners     int32
	RecordingPath     string `gorm:"size:512"`
}
