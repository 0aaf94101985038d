package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound mirrors goleveldb's not-found sentinel at this package's API
// boundary so callers never import goleveldb directly.
var ErrNotFound = leveldb.ErrNotFound

// Bound selects one edge of a Range scan: either a raw timestamp or a
// digest resolved through the digest index (§4.5).
type Bound struct {
	Timestamp uint64
	Digest    []byte
}

// TimestampBound builds a Bound from a raw millisecond timestamp.
func TimestampBound(ts uint64) Bound { return Bound{Timestamp: ts} }

// DigestBound builds a Bound resolved via the digest index at scan time.
func DigestBound(digest []byte) Bound { return Bound{Digest: digest} }

// Record is one stored row: the raw message bytes and the timestamp they
// were stored under.
type Record struct {
	Timestamp uint64
	Value     []byte
}

// Store is the ordered KV message store described in §4.5: append-only
// rows keyed by (addr, ns, timestamp, digest prefix), with a digest->
// timestamp sidecar index enabling point lookup by digest.
type Store struct {
	db     *leveldb.DB
	logger zerolog.Logger
}

// NewLevelDB opens (or creates) a goleveldb database at path, or an
// in-memory database when path is empty, exactly as the teacher's
// bitcoin.NewLevelDB does.
func NewLevelDB(path string) (*leveldb.DB, error) {
	if path == "" {
		return leveldb.Open(storage.NewMemStorage(), nil)
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open leveldb %s: %w", path, err)
	}
	return db, nil
}

func New(db *leveldb.DB) *Store {
	return &Store{db: db, logger: log.With().Str("module", "message_store").Logger()}
}

// Push writes the message row and its digest-index sidecar. The two writes
// are not atomic; a reader resolving digest->timestamp->value during the
// gap between them at most observes a temporary ErrNotFound (§4.5).
func (s *Store) Push(addr []byte, ns byte, timestamp uint64, raw, digest []byte) error {
	if err := s.db.Put(rowKey(addr, ns, timestamp, digest), raw, nil); err != nil {
		return fmt.Errorf("store: push row: %w", err)
	}
	tsBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(tsBuf, timestamp)
	if err := s.db.Put(digestIndexKey(addr, digest), tsBuf, nil); err != nil {
		return fmt.Errorf("store: push digest index: %w", err)
	}
	return nil
}

// GetByDigest resolves digest to its timestamp via the index, then reads
// the row at that (addr, ns, timestamp, digest).
func (s *Store) GetByDigest(addr []byte, ns byte, digest []byte) ([]byte, error) {
	ts, err := s.resolveDigest(addr, digest)
	if err != nil {
		return nil, err
	}
	val, err := s.db.Get(rowKey(addr, ns, ts, digest), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get by digest: %w", err)
	}
	return val, nil
}

func (s *Store) resolveDigest(addr, digest []byte) (uint64, error) {
	val, err := s.db.Get(digestIndexKey(addr, digest), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("store: resolve digest index: %w", err)
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("store: corrupt digest index row")
	}
	return binary.BigEndian.Uint64(val), nil
}

// Range scans forward from start (inclusive) to end (exclusive), stopping
// at the first key leaving the (addr, ns) namespace or at end, in strictly
// ascending (timestamp, digest_prefix) order.
func (s *Store) Range(addr []byte, ns byte, start, end Bound) ([]Record, error) {
	startTS, err := s.resolveBound(addr, start)
	if err != nil {
		return nil, err
	}
	endTS, err := s.resolveBound(addr, end)
	if err != nil {
		return nil, err
	}

	rng := &util.Range{
		Start: timestampBoundKey(addr, ns, startTS),
		Limit: timestampBoundKey(addr, ns, endTS),
	}
	iter := s.db.NewIterator(rng, nil)
	defer iter.Release()

	var records []Record
	for iter.Next() {
		key := iter.Key()
		ts := binary.BigEndian.Uint64(key[addrLen+1 : addrLen+9])
		val := make([]byte, len(iter.Value()))
		copy(val, iter.Value())
		records = append(records, Record{Timestamp: ts, Value: val})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("store: range scan: %w", err)
	}
	return records, nil
}

func (s *Store) resolveBound(addr []byte, b Bound) (uint64, error) {
	if b.Digest != nil {
		return s.resolveDigest(addr, b.Digest)
	}
	return b.Timestamp, nil
}

// DeleteByDigest removes the row and its digest-index entry.
func (s *Store) DeleteByDigest(addr []byte, ns byte, digest []byte) error {
	ts, err := s.resolveDigest(addr, digest)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Delete(rowKey(addr, ns, ts, digest))
	batch.Delete(digestIndexKey(addr, digest))
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("store: delete by digest: %w", err)
	}
	return nil
}

// DeleteRange removes every row (and digest-index entry) in [start, end).
func (s *Store) DeleteRange(addr []byte, ns byte, start, end Bound) error {
	startTS, err := s.resolveBound(addr, start)
	if err != nil {
		return err
	}
	endTS, err := s.resolveBound(addr, end)
	if err != nil {
		return err
	}

	rng := &util.Range{
		Start: timestampBoundKey(addr, ns, startTS),
		Limit: timestampBoundKey(addr, ns, endTS),
	}
	iter := s.db.NewIterator(rng, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		batch.Delete(key)
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("store: delete range scan: %w", err)
	}

	// The row key only carries a 4-byte digest prefix, so the matching
	// digest-index rows are found by scanning the index for entries whose
	// timestamp is in range and whose row exists in this namespace.
	idx := s.db.NewIterator(util.BytesPrefix(namespacePrefix(addr, nsDigestIndex)), nil)
	defer idx.Release()
	for idx.Next() {
		if v := idx.Value(); len(v) == 8 {
			ts := binary.BigEndian.Uint64(v)
			rk := rowKey(addr, ns, ts, idx.Key()[addrLen+1:])
			if ok, _ := s.db.Has(rk, nil); ok && ts >= startTS && ts < endTS {
				batch.Delete(append([]byte(nil), idx.Key()...))
			}
		}
	}
	if err := idx.Error(); err != nil {
		return fmt.Errorf("store: delete range index scan: %w", err)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("store: delete range: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
