package keyserver

import (
	"bytes"
	"context"
	"testing"

	btcwire "github.com/btcsuite/btcd/wire"
	"github.com/pondio/pondrelay/bitcoin"
	"github.com/pondio/pondrelay/wire"
	"github.com/stretchr/testify/require"
)

func buildPondTx(t *testing.T, upvote bool, digest []byte, value int64) []byte {
	t.Helper()
	script := []byte{0x6a, 0x04, 'P', 'O', 'N', 'D', 0x00, 0x20}
	if upvote {
		script[6] = 0x51
	}
	script = append(script, digest...)
	require.Len(t, script, 40)

	tx := btcwire.NewMsgTx(btcwire.TxVersion)
	tx.AddTxOut(btcwire.NewTxOut(value, script))
	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	return buf.Bytes()
}

func TestRecordBurnVotesFoldsRealUpvoteAndDownvote(t *testing.T) {
	s := newTestService(t)
	digest := make([]byte, 32)
	for i := range digest {
		digest[i] = byte(i)
	}

	upTx := buildPondTx(t, true, digest, 1000)
	downTx := buildPondTx(t, false, digest, 400)

	w := &wire.AuthWrapper{
		Transactions: []wire.BurnOutputs{
			{Tx: upTx, Index: 0},
			{Tx: downTx, Index: 0},
		},
	}

	s.recordBurnVotes(context.Background(), w, digest)

	// Re-recording the upvote's exact (txid, index) is a dedup no-op that
	// surfaces the accumulated signed sum of both outputs.
	decoded, err := bitcoin.DecodeTx(upTx)
	require.NoError(t, err)
	id := decoded.TxHash()
	total, err := s.topics.RecordBurn(digest, id[:], 0, 1000, true)
	require.NoError(t, err)
	require.Equal(t, int64(600), total)
}

func TestRecordBurnVotesIgnoresMismatchedDigest(t *testing.T) {
	s := newTestService(t)
	digest := make([]byte, 32)
	other := make([]byte, 32)
	other[0] = 0xff

	tx := buildPondTx(t, true, other, 1000)
	w := &wire.AuthWrapper{Transactions: []wire.BurnOutputs{{Tx: tx, Index: 0}}}

	s.recordBurnVotes(context.Background(), w, digest)

	total, err := s.topics.RecordBurn(digest, make([]byte, 32), 1, 1, true)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
}
