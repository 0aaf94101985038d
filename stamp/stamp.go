// Package stamp implements the stamp verifier (C5): proof that a message's
// sender burned value to an address derivable from the recipient's public
// key and the message's payload digest, without any interactive handshake.
package stamp

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pondio/pondrelay/auth"
	"github.com/pondio/pondrelay/bitcoin"
	"github.com/pondio/pondrelay/wire"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Error is a classified stamp-verification failure (§4.2, §7).
type Error struct {
	Kind string
	err  error
}

func (e *Error) Error() string { return e.err.Error() }
func (e *Error) Unwrap() error { return e.err }

func wrapErr(kind string, err error) *Error {
	return &Error{Kind: kind, err: err}
}

// Error kinds, named by cause per §4.2/§7.
const (
	KindDegenerateCombination = "degenerate_combination"
	KindDecode                = "decode"
	KindMissingOutput         = "missing_output"
	KindNotP2PKH              = "not_p2pkh"
	KindUnexpectedAddress     = "unexpected_address"
	KindTxReject              = "tx_reject"
)

// derivation path prefix fixed by §4.2: m/44/145/<outpoint index>/<vout>.
const (
	purposeIndex = 44
	coinTypeBCH  = 145
)

// Broadcaster is the node dependency a Verifier needs: just enough to
// broadcast a stamp transaction. Satisfied by *bitcoin.Client.
type Broadcaster interface {
	SendTx(ctx context.Context, rawTx []byte) (string, error)
}

// Verifier checks and broadcasts stamp transactions for a single message.
type Verifier struct {
	node   Broadcaster
	params *chaincfg.Params
	logger zerolog.Logger
}

func NewVerifier(node Broadcaster, network string) *Verifier {
	return &Verifier{
		node:   node,
		params: bitcoin.NetParams(network),
		logger: log.With().Str("module", "stamp_verifier").Logger(),
	}
}

// Verify checks every outpoint of stampSet against destPub/payloadDigest and,
// if all checks pass, broadcasts every stamp transaction. No transaction is
// broadcast unless every outpoint verifies (§7: observable state never
// precedes the operation that would reject the request).
func (v *Verifier) Verify(ctx context.Context, destPub *btcec.PublicKey, payloadDigest []byte, stampSet *wire.Stamp) error {
	combined, err := combine(destPub, payloadDigest)
	if err != nil {
		return err
	}

	root := rootExtendedKey(combined, payloadDigest, v.params)

	txs := make([][]byte, 0, len(stampSet.StampOutpoints))
	for i, outpoint := range stampSet.StampOutpoints {
		tx, err := bitcoin.DecodeTx(outpoint.StampTx)
		if err != nil {
			return wrapErr(KindDecode, err)
		}
		idxKey, err := root.Derive(uint32(purposeIndex))
		if err != nil {
			return wrapErr(KindDecode, fmt.Errorf("derive purpose level: %w", err))
		}
		idxKey, err = idxKey.Derive(uint32(coinTypeBCH))
		if err != nil {
			return wrapErr(KindDecode, fmt.Errorf("derive coin-type level: %w", err))
		}
		idxKey, err = idxKey.Derive(uint32(i))
		if err != nil {
			return wrapErr(KindDecode, fmt.Errorf("derive outpoint-index level: %w", err))
		}

		for _, vout := range outpoint.Vouts {
			if int(vout) >= len(tx.TxOut) {
				return wrapErr(KindMissingOutput, fmt.Errorf("vout %d out of range", vout))
			}
			out := tx.TxOut[vout]
			if !bitcoin.IsP2PKH(out.PkScript) {
				return wrapErr(KindNotP2PKH, fmt.Errorf("outpoint %d vout %d is not p2pkh", i, vout))
			}
			declared, err := bitcoin.ExtractP2PKHHash(out.PkScript)
			if err != nil {
				return wrapErr(KindNotP2PKH, err)
			}

			childKey, err := idxKey.Derive(vout)
			if err != nil {
				return wrapErr(KindDecode, fmt.Errorf("derive vout level: %w", err))
			}
			childPub, err := childKey.ECPubKey()
			if err != nil {
				return wrapErr(KindDecode, fmt.Errorf("derive child pubkey: %w", err))
			}
			derived := auth.PubKeyHash(childPub.SerializeCompressed())
			if !bytes.Equal(derived, declared) {
				return wrapErr(KindUnexpectedAddress, fmt.Errorf("outpoint %d vout %d: derived address does not match", i, vout))
			}
		}

		txs = append(txs, outpoint.StampTx)
	}

	for _, raw := range txs {
		if _, err := v.node.SendTx(ctx, raw); err != nil {
			v.logger.Warn().Err(err).Msg("stamp transaction rejected by node")
			return wrapErr(KindTxReject, err)
		}
	}
	return nil
}

// combine computes K = destPub + s*G where s is payloadDigest interpreted as
// a scalar, rejecting degenerate (identity) combinations and out-of-range
// scalars rather than panicking, per §4.2's "astronomically unlikely but
// must reject" invariant.
func combine(destPub *btcec.PublicKey, payloadDigest []byte) (*btcec.PublicKey, error) {
	var s btcec.ModNScalar
	overflow := s.SetByteSlice(payloadDigest)
	if overflow || s.IsZero() {
		return nil, wrapErr(KindDegenerateCombination, errors.New("payload digest is not a valid scalar"))
	}

	sBytes := s.Bytes()
	_, sPub := btcec.PrivKeyFromBytes(sBytes[:])

	var j1, j2, sum btcec.JacobianPoint
	destPub.AsJacobian(&j1)
	sPub.AsJacobian(&j2)
	btcec.AddNonConst(&j1, &j2, &sum)
	sum.ToAffine()

	if sum.X.IsZero() && sum.Y.IsZero() {
		return nil, wrapErr(KindDegenerateCombination, errors.New("destination key and stamp point combine to the identity"))
	}

	return btcec.NewPublicKey(&sum.X, &sum.Y), nil
}

// rootExtendedKey builds the depth-0 extended public key M described by
// §4.2: public key K, chain code payload_digest, no parent.
func rootExtendedKey(pub *btcec.PublicKey, payloadDigest []byte, params *chaincfg.Params) *hdkeychain.ExtendedKey {
	version := params.HDPublicKeyID[:]
	return hdkeychain.NewExtendedKey(version, pub.SerializeCompressed(), payloadDigest, []byte{0, 0, 0, 0}, 0, 0, false)
}
