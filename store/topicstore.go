package store

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrInvalidTopic is returned when a topic fails validation (§4.5).
var ErrInvalidTopic = errors.New("store: invalid topic")

const maxTopicSegments = 10

// ValidateTopic rejects topics containing whitespace, uppercase, characters
// outside [a-z0-9.-], more than 10 dot-separated segments, or empty
// segments.
func ValidateTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	segments := strings.Split(topic, ".")
	if len(segments) > maxTopicSegments {
		return ErrInvalidTopic
	}
	for _, seg := range segments {
		if seg == "" {
			return ErrInvalidTopic
		}
	}
	for _, r := range topic {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-':
		default:
			return ErrInvalidTopic
		}
	}
	return nil
}

// topicPrefixes returns the hierarchical prefixes of topic, including the
// empty root prefix: for "a.b.c" that's {"", "a", "a.b", "a.b.c"}.
func topicPrefixes(topic string) []string {
	segments := strings.Split(topic, ".")
	prefixes := make([]string, 0, len(segments)+1)
	prefixes = append(prefixes, "")
	for i := range segments {
		prefixes = append(prefixes, strings.Join(segments[:i+1], "."))
	}
	return prefixes
}

// TopicStore is the pub/sub-flavored store (C12): a hierarchical
// topic index over a content-addressed payload table, emulating goleveldb's
// lack of native column families with two separate databases, one per
// logical column family (payloads, messages).
type TopicStore struct {
	payloads *leveldb.DB
	messages *leveldb.DB
	logger   zerolog.Logger
}

func NewTopicStore(payloads, messages *leveldb.DB) *TopicStore {
	return &TopicStore{
		payloads: payloads,
		messages: messages,
		logger:   log.With().Str("module", "topic_store").Logger(),
	}
}

func topicMessageKey(topic string, timestamp uint64, digest []byte) []byte {
	sum := sha256.Sum256([]byte(topic))
	key := make([]byte, 32+8+len(digest))
	copy(key, sum[:])
	binary.BigEndian.PutUint64(key[32:], timestamp)
	copy(key[40:], digest)
	return key
}

func topicBoundKey(topic string, timestamp uint64) []byte {
	sum := sha256.Sum256([]byte(topic))
	key := make([]byte, 32+8)
	copy(key, sum[:])
	binary.BigEndian.PutUint64(key[32:], timestamp)
	return key
}

// topicPrefixUpperBound returns the smallest key strictly greater than
// every key under topic's hash prefix, used when the caller's upper bound
// is the all-ones MaxTimestamp sentinel (incrementing it would overflow).
func topicPrefixUpperBound(topic string) []byte {
	sum := sha256.Sum256([]byte(topic))
	upper := make([]byte, 32)
	copy(upper, sum[:])
	for i := len(upper) - 1; i >= 0; i-- {
		upper[i]++
		if upper[i] != 0 {
			return upper
		}
	}
	return nil // sha256 output of all 0xff is a probability-zero edge case
}

// Put indexes digest under every hierarchical prefix of topic and writes
// its encoded payload, for a brand-new message.
func (t *TopicStore) Put(topic string, timestamp uint64, digest, payload []byte) error {
	if err := ValidateTopic(topic); err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	for _, prefix := range topicPrefixes(topic) {
		batch.Put(topicMessageKey(prefix, timestamp, digest), digest)
	}
	if err := t.messages.Write(batch, nil); err != nil {
		return fmt.Errorf("store: topic index write: %w", err)
	}
	if err := t.payloads.Put(digest, payload, nil); err != nil {
		return fmt.Errorf("store: topic payload write: %w", err)
	}
	return nil
}

// UpdatePayload rewrites only the payloads row for digest, e.g. after a new
// burn output is folded in. No index rows change: every existing index row
// already points at this digest.
func (t *TopicStore) UpdatePayload(digest, payload []byte) error {
	if err := t.payloads.Put(digest, payload, nil); err != nil {
		return fmt.Errorf("store: topic payload update: %w", err)
	}
	return nil
}

// GetPayload reads the current payload bytes for digest.
func (t *TopicStore) GetPayload(digest []byte) ([]byte, error) {
	val, err := t.payloads.Get(digest, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: topic payload read: %w", err)
	}
	return val, nil
}

// TopicRecord is one dereferenced topic-indexed item.
type TopicRecord struct {
	Timestamp uint64
	Digest    []byte
	Payload   []byte
}

// Get scans the topic's index forward from (topic, from) while the key
// prefix matches SHA256(topic) and the timestamp portion is <= to,
// dereferencing each digest through the payloads table.
func (t *TopicStore) Get(topic string, from, to uint64) ([]TopicRecord, error) {
	// The empty root prefix is indexed by Put and readable here, although
	// ValidateTopic keeps it from being published to.
	if topic != "" {
		if err := ValidateTopic(topic); err != nil {
			return nil, err
		}
	}

	var limit []byte
	if to == MaxTimestamp {
		limit = topicPrefixUpperBound(topic)
	} else {
		limit = topicBoundKey(topic, to+1)
	}
	rng := &util.Range{
		Start: topicBoundKey(topic, from),
		Limit: limit,
	}
	iter := t.messages.NewIterator(rng, nil)
	defer iter.Release()

	var records []TopicRecord
	for iter.Next() {
		key := iter.Key()
		ts := binary.BigEndian.Uint64(key[32:40])
		digest := make([]byte, len(key)-40)
		copy(digest, key[40:])

		payload, err := t.GetPayload(digest)
		if err != nil {
			t.logger.Warn().Err(err).Msg("topic index row points at missing payload")
			continue
		}
		records = append(records, TopicRecord{Timestamp: ts, Digest: digest, Payload: payload})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("store: topic range scan: %w", err)
	}
	return records, nil
}

func (t *TopicStore) Close() error {
	if err := t.payloads.Close(); err != nil {
		return err
	}
	return t.messages.Close()
}
