package bitcoin

import (
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPondScript(t *testing.T, upvote bool, digest []byte) []byte {
	t.Helper()
	vote := byte(txscript.OP_0)
	if upvote {
		vote = txscript.OP_1
	}
	script := []byte{txscript.OP_RETURN, txscript.OP_DATA_4, 'P', 'O', 'N', 'D', vote, txscript.OP_DATA_32}
	script = append(script, digest...)
	require.Len(t, script, 40)
	return script
}

func TestParsePondBurnUpvote(t *testing.T) {
	digest := make([]byte, 32)
	for i := range digest {
		digest[i] = byte(i)
	}
	script := buildPondScript(t, true, digest)

	got, upvote, ok := ParsePondBurn(script)
	require.True(t, ok)
	assert.True(t, upvote)
	assert.Equal(t, digest, got)
}

func TestParsePondBurnDownvote(t *testing.T) {
	digest := make([]byte, 32)
	script := buildPondScript(t, false, digest)

	_, upvote, ok := ParsePondBurn(script)
	require.True(t, ok)
	assert.False(t, upvote)
}

func TestParsePondBurnRejectsWrongLength(t *testing.T) {
	_, _, ok := ParsePondBurn([]byte{txscript.OP_RETURN, txscript.OP_DATA_4, 'P', 'O', 'N', 'D'})
	assert.False(t, ok)
}

func TestParsePondBurnRejectsWrongPrefix(t *testing.T) {
	digest := make([]byte, 32)
	script := buildPondScript(t, true, digest)
	script[2] = 'X'
	_, _, ok := ParsePondBurn(script)
	assert.False(t, ok)
}

func TestParsePondBurnRejectsKeyserverCommitmentScript(t *testing.T) {
	script := make([]byte, 34)
	script[0] = txscript.OP_RETURN
	script[1] = txscript.OP_DATA_32
	_, _, ok := ParsePondBurn(script)
	assert.False(t, ok)
}
