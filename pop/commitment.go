package pop

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pondio/pondrelay/bitcoin"
)

// TxFetcher is the node dependency chain-commitment validation needs.
// Satisfied by *bitcoin.Client.
type TxFetcher interface {
	GetRawTransaction(ctx context.Context, txid string) ([]byte, error)
}

// CommitmentScheme validates chain-commitment tokens: a token names a
// (tx_id, vout) pair whose output must carry an OP_RETURN commitment to a
// caller-supplied preimage.
type CommitmentScheme struct {
	node TxFetcher
}

func NewCommitmentScheme(node TxFetcher) *CommitmentScheme {
	return &CommitmentScheme{node: node}
}

// MintToken encodes a (tx_id, vout) pair as the base64url token returned to
// the client after a successful /payments call.
func MintToken(txID []byte, vout uint32) string {
	buf := make([]byte, len(txID)+4)
	copy(buf, txID)
	binary.BigEndian.PutUint32(buf[len(txID):], vout)
	return base64.URLEncoding.EncodeToString(buf)
}

// ParseToken decodes a chain-commitment token into its tx_id and vout.
func ParseToken(token string) (txID []byte, vout uint32, err error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, 0, fmt.Errorf("pop: decode token: %w", err)
	}
	if len(raw) < 4 {
		return nil, 0, errors.New("pop: token too short")
	}
	txID = raw[:len(raw)-4]
	vout = binary.BigEndian.Uint32(raw[len(raw)-4:])
	return txID, vout, nil
}

// Commitment builds the expected 32-byte OP_RETURN commitment for a
// (pubkey_hash, metadata_digest) pair, per §4.3/§4.7.
func Commitment(pubKeyHash, metadataDigest []byte) []byte {
	sum := sha256.Sum256(append(append([]byte{}, pubKeyHash...), metadataDigest...))
	return sum[:]
}

// Validate fetches the referenced transaction and checks that, at vout, it
// carries an OP_RETURN PUSH32 of expectedCommitment.
func (c *CommitmentScheme) Validate(ctx context.Context, token string, expectedCommitment []byte) error {
	txIDBytes, vout, err := ParseToken(token)
	if err != nil {
		return err
	}
	txid, err := chainhash.NewHash(txIDBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAuth, err)
	}

	raw, err := c.node.GetRawTransaction(ctx, txid.String())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAuth, err)
	}
	tx, err := bitcoin.DecodeTx(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAuth, err)
	}
	if int(vout) >= len(tx.TxOut) {
		return ErrInvalidAuth
	}
	script := tx.TxOut[vout].PkScript
	if len(script) != 34 || !bitcoin.IsOpReturn(script) {
		return ErrInvalidAuth
	}
	pushes, err := bitcoin.OpReturnPushes(script)
	if err != nil || len(pushes) != 1 || len(pushes[0]) != 32 {
		return ErrInvalidAuth
	}
	if !bytes.Equal(pushes[0], expectedCommitment) {
		return ErrInvalidAuth
	}
	return nil
}

// FindCommitmentOutput scans decoded transactions for the first output at
// a length-34 OP_RETURN PUSH32 script matching expectedCommitment, returning
// its tx id in internal byte order (as held by tx.TxHash()) and vout for
// token minting.
func FindCommitmentOutput(txs [][]byte, expectedCommitment []byte) (txIDBytes []byte, vout uint32, rawTx []byte, ok bool) {
	for _, raw := range txs {
		tx, err := bitcoin.DecodeTx(raw)
		if err != nil {
			continue
		}
		for i, out := range tx.TxOut {
			if len(out.PkScript) != 34 || !bitcoin.IsOpReturn(out.PkScript) {
				continue
			}
			pushes, err := bitcoin.OpReturnPushes(out.PkScript)
			if err != nil || len(pushes) != 1 || len(pushes[0]) != 32 {
				continue
			}
			if bytes.Equal(pushes[0], expectedCommitment) {
				id := tx.TxHash()
				return id[:], uint32(i), raw, true
			}
		}
	}
	return nil, 0, nil, false
}
