// Package auth implements the auth-wrapper engine (C4): parsing and
// signature verification of the signed envelope every metadata/profile
// write is authenticated by.
package auth

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/pondio/pondrelay/wire"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required for Hash160
)

// Error is a classified parse/verify failure; the Kind distinguishes the
// HTTP status the caller should map it to (§7).
type Error struct {
	Kind string
	err  error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }

func wrapErr(kind, msg string) *Error {
	return &Error{Kind: kind, err: errors.New(msg)}
}

// Error kinds, named by cause per §4.1/§7.
const (
	KindPublicKey              = "public_key"
	KindUnsupportedScheme      = "unsupported_scheme"
	KindSignature               = "signature"
	KindDigestAndPayloadMissing = "digest_and_payload_missing"
	KindFraudulentDigest         = "fraudulent_digest"
	KindUnexpectedLengthDigest   = "unexpected_length_digest"
	KindUnsupportedVerify        = "unsupported_verify"
	KindInvalidSignature         = "invalid_signature"
)

// Parsed is the result of parsing an AuthWrapper: a validated public key,
// signature, scheme, and resolved payload digest.
type Parsed struct {
	PublicKey     *btcec.PublicKey
	PublicKeyRaw  []byte
	Signature     [64]byte
	Scheme        wire.Scheme
	Payload       []byte
	PayloadDigest []byte
}

// Parse validates an AuthWrapper's structural invariants (§3, §4.1): the
// public key decodes, the scheme is recognized, the signature is 64 bytes,
// and the payload digest is consistent with the payload.
func Parse(w *wire.AuthWrapper) (*Parsed, error) {
	pub, err := btcec.ParsePubKey(w.PublicKey)
	if err != nil {
		return nil, wrapErr(KindPublicKey, fmt.Sprintf("invalid public key: %v", err))
	}

	switch w.Scheme {
	case wire.SchemeECDSA, wire.SchemeSchnorr:
	default:
		return nil, wrapErr(KindUnsupportedScheme, "unsupported scheme")
	}

	if len(w.Signature) != 64 {
		return nil, wrapErr(KindSignature, "signature must be 64 bytes")
	}
	var sig [64]byte
	copy(sig[:], w.Signature)

	digest, err := resolveDigest(w.PayloadDigest, w.Payload)
	if err != nil {
		return nil, err
	}

	return &Parsed{
		PublicKey:     pub,
		PublicKeyRaw:  w.PublicKey,
		Signature:     sig,
		Scheme:        w.Scheme,
		Payload:       w.Payload,
		PayloadDigest: digest,
	}, nil
}

// resolveDigest implements the four-way branch of §4.1's digest resolution.
func resolveDigest(digest, payload []byte) ([]byte, error) {
	switch len(digest) {
	case 0:
		if len(payload) == 0 {
			return nil, wrapErr(KindDigestAndPayloadMissing, "both payload and digest are empty")
		}
		sum := sha256.Sum256(payload)
		return sum[:], nil
	case 32:
		sum := sha256.Sum256(payload)
		if !bytes.Equal(sum[:], digest) {
			return nil, wrapErr(KindFraudulentDigest, "payload digest does not match payload")
		}
		return digest, nil
	default:
		return nil, wrapErr(KindUnexpectedLengthDigest, "payload digest must be 0 or 32 bytes")
	}
}

// Verify checks the ECDSA signature over the payload digest. Schnorr is
// reserved and always rejected (§4.1, §9).
func Verify(p *Parsed) error {
	if p.Scheme != wire.SchemeECDSA {
		return wrapErr(KindUnsupportedVerify, "schnorr verification is not supported")
	}

	var r, s btcec.ModNScalar
	r.SetByteSlice(p.Signature[:32])
	s.SetByteSlice(p.Signature[32:])
	sig := ecdsa.NewSignature(&r, &s)

	if !sig.Verify(p.PayloadDigest, p.PublicKey) {
		return wrapErr(KindInvalidSignature, "signature verification failed")
	}
	return nil
}

// PubKeyHash computes RIPEMD160(SHA256(pub)), the 20-byte cash-address body
// (§3).
func PubKeyHash(pub []byte) []byte {
	sum := sha256.Sum256(pub)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}
