// Package pop implements the two Proof-of-Payment token schemes (C6): an
// HMAC-bearer scheme used by the relay, and a chain-commitment scheme used
// by the keyserver.
package pop

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrInvalidAuth is returned when a presented token fails validation.
var ErrInvalidAuth = errors.New("pop: invalid auth")

// HMACScheme mints and validates bearer tokens bound to a 20-byte subject
// (an address body) via HMAC-SHA256 under a server secret.
type HMACScheme struct {
	secret []byte
}

func NewHMACScheme(secret []byte) *HMACScheme {
	return &HMACScheme{secret: secret}
}

// Mint returns the base64url token for subject.
func (h *HMACScheme) Mint(subject []byte) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(subject)
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}

// Validate reports whether token is the correct HMAC bearer token for
// subject.
func (h *HMACScheme) Validate(subject []byte, token string) error {
	expected := h.Mint(subject)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrInvalidAuth
	}
	return nil
}
