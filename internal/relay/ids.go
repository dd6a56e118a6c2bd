/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package relay

import (
	"crypto/rand"
	"encoding/hex"
)

// idBytes is half the length of the 8-hex-char public session identifier.
const idBytes = 4

// tokenBytes is half the length of the 32-hex-char listener secret.
const tokenBytes = 16

// newSessionID returns an 8-hex-char public identifier.
func newSessionID() (string, error) {
	buf := make([]byte, idBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// newListenerToken returns a 32-hex-char unguessable listener secret.
func newListenerToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
