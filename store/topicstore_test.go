package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTopicStore(t *testing.T) *TopicStore {
	t.Helper()
	payloads, err := NewLevelDB("")
	require.NoError(t, err)
	messages, err := NewLevelDB("")
	require.NoError(t, err)
	t.Cleanup(func() {
		payloads.Close()
		messages.Close()
	})
	return NewTopicStore(payloads, messages)
}

func TestValidateTopic(t *testing.T) {
	assert.NoError(t, ValidateTopic("a.b.c"))
	assert.NoError(t, ValidateTopic("posts"))
	assert.ErrorIs(t, ValidateTopic(""), ErrInvalidTopic)
	assert.ErrorIs(t, ValidateTopic("A.b"), ErrInvalidTopic)
	assert.ErrorIs(t, ValidateTopic("a b"), ErrInvalidTopic)
	assert.ErrorIs(t, ValidateTopic("a..b"), ErrInvalidTopic)
	assert.ErrorIs(t, ValidateTopic("a/b"), ErrInvalidTopic)
	assert.ErrorIs(t, ValidateTopic("a.b.c.d.e.f.g.h.i.j.k"), ErrInvalidTopic)
}

func TestTopicPutAndGetHierarchical(t *testing.T) {
	ts := newTestTopicStore(t)

	require.NoError(t, ts.Put("a.b.c", 100, digest32(1), []byte("payload-1")))

	for _, topic := range []string{"", "a", "a.b", "a.b.c"} {
		records, err := ts.Get(topic, 0, MaxTimestamp)
		require.NoError(t, err)
		require.Lenf(t, records, 1, "topic %q", topic)
		assert.Equal(t, []byte("payload-1"), records[0].Payload)
	}

	records, err := ts.Get("a.b.x", 0, MaxTimestamp)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTopicGetRespectsBounds(t *testing.T) {
	ts := newTestTopicStore(t)

	require.NoError(t, ts.Put("topic", 100, digest32(1), []byte("one")))
	require.NoError(t, ts.Put("topic", 200, digest32(2), []byte("two")))
	require.NoError(t, ts.Put("topic", 300, digest32(3), []byte("three")))

	records, err := ts.Get("topic", 150, 250)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("two"), records[0].Payload)
}

func TestTopicUpdatePayloadLeavesIndexAlone(t *testing.T) {
	ts := newTestTopicStore(t)
	digest := digest32(1)

	require.NoError(t, ts.Put("topic", 100, digest, []byte("v1")))
	require.NoError(t, ts.UpdatePayload(digest, []byte("v2")))

	records, err := ts.Get("topic", 0, MaxTimestamp)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("v2"), records[0].Payload)
}

func TestRecordBurnDedupesAndSumsSigned(t *testing.T) {
	ts := newTestTopicStore(t)
	digest := digest32(1)
	txid := []byte("tx-a")

	total, err := ts.RecordBurn(digest, txid, 0, 1000, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), total)

	total, err = ts.RecordBurn(digest, []byte("tx-b"), 0, 500, false)
	require.NoError(t, err)
	assert.Equal(t, int64(500), total)

	// re-recording the same (txid, index) is a no-op.
	total, err = ts.RecordBurn(digest, txid, 0, 1000, true)
	require.NoError(t, err)
	assert.Equal(t, int64(500), total)
}
