// Package store implements the ordered KV message store (C8) and the
// topic-indexed pub/sub store (C12), both over goleveldb.
package store

import "encoding/binary"

// Namespace bytes distinguish message rows sharing the same address body.
const (
	NSMessage     byte = 'm'
	NSFeed        byte = 'f'
	nsDigestIndex byte = 'd'
)

const (
	addrLen   = 20
	digestLen = 32
	// digestPrefixLen is how many leading digest bytes are folded into the
	// primary row key, per §3/§4.5.
	digestPrefixLen = 4
)

// rowKey builds addr|ns|timestamp_be|digest_prefix.
func rowKey(addr []byte, ns byte, timestamp uint64, digest []byte) []byte {
	key := make([]byte, addrLen+1+8+digestPrefixLen)
	copy(key, addr)
	key[addrLen] = ns
	binary.BigEndian.PutUint64(key[addrLen+1:], timestamp)
	n := digestPrefixLen
	if len(digest) < n {
		n = len(digest)
	}
	copy(key[addrLen+1+8:], digest[:n])
	return key
}

// namespacePrefix builds addr|ns, the scan prefix for a (addr, ns) range.
func namespacePrefix(addr []byte, ns byte) []byte {
	key := make([]byte, addrLen+1)
	copy(key, addr)
	key[addrLen] = ns
	return key
}

// timestampBoundKey builds addr|ns|timestamp_be with no digest suffix: it
// sorts immediately before any real row at that timestamp, so it doubles as
// both an inclusive lower bound and an exclusive upper bound depending on
// which side of a range it's used.
func timestampBoundKey(addr []byte, ns byte, timestamp uint64) []byte {
	key := make([]byte, addrLen+1+8)
	copy(key, addr)
	key[addrLen] = ns
	binary.BigEndian.PutUint64(key[addrLen+1:], timestamp)
	return key
}

// digestIndexKey builds addr|'d'|digest, the key of the digest->timestamp
// sidecar row.
func digestIndexKey(addr, digest []byte) []byte {
	key := make([]byte, addrLen+1+len(digest))
	copy(key, addr)
	key[addrLen] = nsDigestIndex
	copy(key[addrLen+1:], digest)
	return key
}

// MaxTimestamp is the sentinel "end of namespace" bound.
const MaxTimestamp uint64 = ^uint64(0)
