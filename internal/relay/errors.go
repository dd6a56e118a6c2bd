/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package relay

import "errors"

// Sentinel errors returned by Session and SessionStore operations. Callers compare
// with errors.Is; HTTP and WebSocket edges translate these to status codes or silent
// socket destruction.
var (
	ErrSessionNotFound           = errors.New("relay: session not found")
	ErrBroadcasterAlreadyPresent = errors.New("relay: broadcaster already present")
	ErrCapacityExceeded          = errors.New("relay: listener capacity exceeded")
	ErrSessionNotLive            = errors.New("relay: session is not active")
)
