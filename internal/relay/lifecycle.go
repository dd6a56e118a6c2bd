/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package relay

// TeardownReason identifies why a session's lifecycle ended. It is reported to
// listeners in the session-ended frame and recorded in SessionHistory.
type TeardownReason string

const (
	ReasonBroadcasterDisconnected TeardownReason = "broadcaster-disconnected"
	ReasonStoppedByBroadcaster    TeardownReason = "stopped-by-broadcaster"
	ReasonExpired                 TeardownReason = "expired"
	ReasonShutdown                TeardownReason = "shutdown"
)
