package pop

import (
	"bytes"
	"context"
	"testing"

	"github.com/btcsuite/btcd/txscript"
	btcwire "github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opReturnScript(t *testing.T, push []byte) []byte {
	t.Helper()
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(push).
		Script()
	require.NoError(t, err)
	return script
}

func TestTokenRoundTrip(t *testing.T) {
	txID := make([]byte, 32)
	txID[0] = 0xab
	token := MintToken(txID, 3)

	gotID, gotVout, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, txID, gotID)
	assert.Equal(t, uint32(3), gotVout)
}

func TestFindCommitmentOutput(t *testing.T) {
	pubKeyHash := make([]byte, 20)
	pubKeyHash[0] = 1
	metadataDigest := make([]byte, 32)
	metadataDigest[0] = 2
	expected := Commitment(pubKeyHash, metadataDigest)

	tx := btcwire.NewMsgTx(btcwire.TxVersion)
	tx.AddTxOut(btcwire.NewTxOut(0, opReturnScript(t, expected)))
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	txID, vout, rawTx, ok := FindCommitmentOutput([][]byte{buf.Bytes()}, expected)
	require.True(t, ok)
	assert.Equal(t, uint32(0), vout)
	assert.NotEmpty(t, txID)
	assert.NotEmpty(t, rawTx)
}

func TestFindCommitmentOutputNoMatch(t *testing.T) {
	tx := btcwire.NewMsgTx(btcwire.TxVersion)
	tx.AddTxOut(btcwire.NewTxOut(0, opReturnScript(t, make([]byte, 32))))
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	other := make([]byte, 32)
	other[0] = 1
	_, _, _, ok := FindCommitmentOutput([][]byte{buf.Bytes()}, other)
	assert.False(t, ok)
}

type fakeTxFetcher struct {
	raw []byte
	err error
}

func (f *fakeTxFetcher) GetRawTransaction(_ context.Context, _ string) ([]byte, error) {
	return f.raw, f.err
}

func TestCommitmentScheme_Validate(t *testing.T) {
	pubKeyHash := make([]byte, 20)
	metadataDigest := make([]byte, 32)
	expected := Commitment(pubKeyHash, metadataDigest)

	tx := btcwire.NewMsgTx(btcwire.TxVersion)
	tx.AddTxOut(btcwire.NewTxOut(0, opReturnScript(t, expected)))
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	fetcher := &fakeTxFetcher{raw: buf.Bytes()}
	scheme := NewCommitmentScheme(fetcher)

	token := MintToken(make([]byte, 32), 0)
	err := scheme.Validate(context.Background(), token, expected)
	require.NoError(t, err)
}

func TestCommitmentScheme_ValidateRejectsMismatch(t *testing.T) {
	tx := btcwire.NewMsgTx(btcwire.TxVersion)
	tx.AddTxOut(btcwire.NewTxOut(0, opReturnScript(t, make([]byte, 32))))
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))

	fetcher := &fakeTxFetcher{raw: buf.Bytes()}
	scheme := NewCommitmentScheme(fetcher)

	token := MintToken(make([]byte, 32), 0)
	err := scheme.Validate(context.Background(), token, []byte("different-expected-commitment-32"))
	assert.ErrorIs(t, err, ErrInvalidAuth)
}
