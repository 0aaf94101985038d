// Package address implements just the slice this system assumes from a
// full cash-address codec: lowercase-hex encode/decode of a 20-byte
// address body. The bech32 cash-address format itself is out of scope
// (§1); callers that need a human-facing address round-trip through some
// external codec before reaching this package.
package address

import (
	"encoding/hex"
	"errors"
)

// BodyLen is the fixed length of an address body (RIPEMD160(SHA256(pub))).
const BodyLen = 20

var ErrInvalidLength = errors.New("address: body must be 20 bytes")

// Decode parses a lowercase-hex address body.
func Decode(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != BodyLen {
		return nil, ErrInvalidLength
	}
	return b, nil
}

// Encode renders an address body as lowercase hex.
func Encode(body []byte) string {
	return hex.EncodeToString(body)
}
