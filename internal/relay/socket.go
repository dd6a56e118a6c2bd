/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package relay

import "context"

// Socket is the minimal transport the hub needs to deliver frames to a
// broadcaster or listener. It is implemented by the WebSocket adapter in
// internal/ws so that the hub and session logic stay transport-agnostic and
// testable without a real network connection.
type Socket interface {
	// WriteBinary sends a binary audio frame.
	WriteBinary(ctx context.Context, data []byte) error
	// WriteJSON sends a text control frame.
	WriteJSON(ctx context.Context, v any) error
	// Close terminates the connection with a human-readable reason.
	Close(reason string) error
}
