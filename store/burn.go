package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// burnKeyPrefix namespaces the per-digest burn ledger rows inside the
// payloads database, separate from the digest's own payload row.
var burnKeyPrefix = []byte{0x00, 'b', 'u', 'r', 'n', ':'}

func burnOutputKey(digest, txid []byte, index uint32) []byte {
	key := make([]byte, 0, len(burnKeyPrefix)+len(digest)+len(txid)+4)
	key = append(key, burnKeyPrefix...)
	key = append(key, digest...)
	key = append(key, txid...)
	idx := make([]byte, 4)
	binary.BigEndian.PutUint32(idx, index)
	key = append(key, idx...)
	return key
}

func burnScanPrefix(digest []byte) []byte {
	key := make([]byte, 0, len(burnKeyPrefix)+len(digest))
	key = append(key, burnKeyPrefix...)
	return append(key, digest...)
}

// RecordBurn folds a new (txid, index) burn output into digest's ledger,
// deduplicating by (txid, index), and returns the recomputed signed sum:
// +value for an upvote output, -value for a downvote output.
func (t *TopicStore) RecordBurn(digest, txid []byte, index uint32, value int64, upvote bool) (int64, error) {
	key := burnOutputKey(digest, txid, index)
	if _, err := t.payloads.Get(key, nil); err == nil {
		return t.sumBurns(digest)
	} else if !errors.Is(err, leveldb.ErrNotFound) {
		return 0, fmt.Errorf("store: burn lookup: %w", err)
	}

	signed := value
	if !upvote {
		signed = -value
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(signed))
	if err := t.payloads.Put(key, buf, nil); err != nil {
		return 0, fmt.Errorf("store: burn record: %w", err)
	}
	return t.sumBurns(digest)
}

func (t *TopicStore) sumBurns(digest []byte) (int64, error) {
	prefix := burnScanPrefix(digest)
	iter := t.payloads.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var total int64
	for iter.Next() {
		total += int64(binary.BigEndian.Uint64(iter.Value()))
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("store: sum burns: %w", err)
	}
	return total, nil
}
