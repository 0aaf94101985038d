package stamp

import (
	"bytes"
	"context"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	btcwire "github.com/btcsuite/btcd/wire"
	"github.com/pondio/pondrelay/auth"
	"github.com/pondio/pondrelay/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroadcaster struct {
	sent [][]byte
	err  error
}

func (f *fakeBroadcaster) SendTx(_ context.Context, rawTx []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, rawTx)
	return "deadbeef", nil
}

func p2pkhScript(t *testing.T, hash []byte) []byte {
	t.Helper()
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(hash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	require.NoError(t, err)
	return script
}

func buildStampTx(t *testing.T, hash []byte) []byte {
	t.Helper()
	tx := btcwire.NewMsgTx(btcwire.TxVersion)
	tx.AddTxOut(btcwire.NewTxOut(1000, p2pkhScript(t, hash)))
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	return buf.Bytes()
}

func TestVerifyAcceptsCorrectlyDerivedStamp(t *testing.T) {
	destPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	destPub := destPriv.PubKey()

	payloadDigest := make([]byte, 32)
	payloadDigest[31] = 7

	combined, err := combine(destPub, payloadDigest)
	require.NoError(t, err)
	root := rootExtendedKey(combined, payloadDigest, &chaincfg.RegressionNetParams)

	idxKey, err := root.Derive(purposeIndex)
	require.NoError(t, err)
	idxKey, err = idxKey.Derive(coinTypeBCH)
	require.NoError(t, err)
	idxKey, err = idxKey.Derive(0) // outpoint index 0
	require.NoError(t, err)
	childKey, err := idxKey.Derive(0) // vout 0
	require.NoError(t, err)
	childPub, err := childKey.ECPubKey()
	require.NoError(t, err)
	hash := auth.PubKeyHash(childPub.SerializeCompressed())

	rawTx := buildStampTx(t, hash)

	stampSet := &wire.Stamp{
		StampOutpoints: []*wire.StampOutpoint{
			{StampTx: rawTx, Vouts: []uint32{0}},
		},
	}

	bc := &fakeBroadcaster{}
	v := NewVerifier(bc, "regtest")
	err = v.Verify(context.Background(), destPub, payloadDigest, stampSet)
	require.NoError(t, err)
	assert.Len(t, bc.sent, 1)
}

func TestVerifyRejectsWrongAddress(t *testing.T) {
	destPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	destPub := destPriv.PubKey()
	payloadDigest := make([]byte, 32)
	payloadDigest[31] = 9

	wrongHash := make([]byte, 20)
	wrongHash[0] = 0xff
	rawTx := buildStampTx(t, wrongHash)

	stampSet := &wire.Stamp{
		StampOutpoints: []*wire.StampOutpoint{
			{StampTx: rawTx, Vouts: []uint32{0}},
		},
	}

	bc := &fakeBroadcaster{}
	v := NewVerifier(bc, "regtest")
	err = v.Verify(context.Background(), destPub, payloadDigest, stampSet)
	require.Error(t, err)
	var stampErr *Error
	require.ErrorAs(t, err, &stampErr)
	assert.Equal(t, KindUnexpectedAddress, stampErr.Kind)
	assert.Empty(t, bc.sent)
}

func TestVerifyRejectsMissingOutput(t *testing.T) {
	destPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	destPub := destPriv.PubKey()
	payloadDigest := make([]byte, 32)
	payloadDigest[31] = 3

	rawTx := buildStampTx(t, make([]byte, 20))
	stampSet := &wire.Stamp{
		StampOutpoints: []*wire.StampOutpoint{
			{StampTx: rawTx, Vouts: []uint32{5}},
		},
	}

	bc := &fakeBroadcaster{}
	v := NewVerifier(bc, "regtest")
	err = v.Verify(context.Background(), destPub, payloadDigest, stampSet)
	require.Error(t, err)
	var stampErr *Error
	require.ErrorAs(t, err, &stampErr)
	assert.Equal(t, KindMissingOutput, stampErr.Kind)
}

func TestCombineRejectsZeroDigest(t *testing.T) {
	destPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	_, err = combine(destPriv.PubKey(), make([]byte, 32))
	require.Error(t, err)
	var stampErr *Error
	require.ErrorAs(t, err, &stampErr)
	assert.Equal(t, KindDegenerateCombination, stampErr.Kind)
}
