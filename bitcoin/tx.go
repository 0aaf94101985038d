// Package bitcoin implements the minimal Bitcoin transaction decoder (C2)
// and the JSON-RPC node client (C3) the rest of this module treats as
// external collaborators: only transaction/output/script inspection and the
// three RPC methods (send_tx, get_new_addr, get_raw_transaction), plus the
// block-count and block-hash calls of the block poller, are used.
package bitcoin

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// NetParams resolves a configured network name to the btcd chain params
// used for BIP32 version bytes in stamp derivation (§4.2).
func NetParams(network string) *chaincfg.Params {
	switch network {
	case "mainnet", "main":
		return &chaincfg.MainNetParams
	case "testnet", "test", "testnet3":
		return &chaincfg.TestNet3Params
	default:
		return &chaincfg.RegressionNetParams
	}
}

// DecodeTx parses a raw transaction, exposing version/inputs/outputs/locktime
// via the standard btcd wire.MsgTx rather than a hand-rolled decoder.
func DecodeTx(raw []byte) (*wire.MsgTx, error) {
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("bitcoin: decode tx: %w", err)
	}
	return &tx, nil
}

// IsOpReturn reports whether script is a null-data (OP_RETURN) output.
func IsOpReturn(script []byte) bool {
	return txscript.GetScriptClass(script) == txscript.NullDataTy
}

// IsP2PKH reports whether script is a standard pay-to-pubkey-hash output.
func IsP2PKH(script []byte) bool {
	return txscript.GetScriptClass(script) == txscript.PubKeyHashTy
}

// ExtractP2PKHHash returns the 20-byte hash committed to by a P2PKH script,
// i.e. OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG.
func ExtractP2PKHHash(script []byte) ([]byte, error) {
	if !IsP2PKH(script) {
		return nil, fmt.Errorf("bitcoin: script is not p2pkh")
	}
	if len(script) != 25 {
		return nil, fmt.Errorf("bitcoin: unexpected p2pkh script length %d", len(script))
	}
	hash := make([]byte, 20)
	copy(hash, script[3:23])
	return hash, nil
}

// OpReturnPushes returns the data pushes carried by an OP_RETURN script, in
// order, after the leading OP_RETURN opcode.
func OpReturnPushes(script []byte) ([][]byte, error) {
	if !IsOpReturn(script) {
		return nil, fmt.Errorf("bitcoin: script is not op_return")
	}
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	var pushes [][]byte
	first := true
	for tokenizer.Next() {
		if first {
			first = false
			continue // skip the OP_RETURN opcode itself
		}
		data := tokenizer.Data()
		if data == nil {
			data = []byte{}
		}
		pushes = append(pushes, data)
	}
	if err := tokenizer.Err(); err != nil {
		return nil, fmt.Errorf("bitcoin: tokenize op_return script: %w", err)
	}
	return pushes, nil
}

// pondPrefix tags a POND burn-vote output, distinguishing it from the
// keyserver's 34-byte chain-commitment OP_RETURN script.
var pondPrefix = []byte{'P', 'O', 'N', 'D'}

// ParsePondBurn recognizes the exact 40-byte burn-vote script of §4.5:
// OP_RETURN PUSH4 "POND" (OP_0|OP_1) PUSH32 <32-byte digest commitment>.
// It reads raw opcode positions rather than tokenizing, since OP_0/OP_1
// are control opcodes a data-push tokenizer doesn't surface as pushes.
func ParsePondBurn(script []byte) (digest []byte, upvote bool, ok bool) {
	if len(script) != 40 {
		return nil, false, false
	}
	if script[0] != txscript.OP_RETURN || script[1] != txscript.OP_DATA_4 {
		return nil, false, false
	}
	if !bytes.Equal(script[2:6], pondPrefix) {
		return nil, false, false
	}
	switch script[6] {
	case txscript.OP_1:
		upvote = true
	case txscript.OP_0:
		upvote = false
	default:
		return nil, false, false
	}
	if script[7] != txscript.OP_DATA_32 {
		return nil, false, false
	}
	digest = make([]byte, 32)
	copy(digest, script[8:40])
	return digest, upvote, true
}
