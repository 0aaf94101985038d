package relay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/pondio/pondrelay/auth"
	"github.com/pondio/pondrelay/httperr"
	"github.com/pondio/pondrelay/store"
	"github.com/pondio/pondrelay/wire"
)

// getRecords implements the GET selection logic shared by messages, feeds
// and payloads (§4.8): either a single record by ?digest= or a range scan
// bounded by start_*/end_* query parameters.
func (s *Service) getRecords(w http.ResponseWriter, r *http.Request, ns byte) ([][]byte, bool) {
	addr, err := addrParam(r)
	if err != nil {
		httperr.Write(w, err)
		return nil, false
	}

	if hexDigest := r.URL.Query().Get("digest"); hexDigest != "" {
		digest, derr := hex.DecodeString(hexDigest)
		if derr != nil {
			httperr.Write(w, httperr.BadRequest("invalid digest hex"))
			return nil, false
		}
		val, gerr := s.store.GetByDigest(addr, ns, digest)
		if gerr != nil {
			if gerr == store.ErrNotFound {
				httperr.Write(w, httperr.NotFound("no record with that digest"))
				return nil, false
			}
			httperr.Write(w, httperr.Internal(gerr))
			return nil, false
		}
		return [][]byte{val}, true
	}

	start, end, perr := parseRangeQuery(r)
	if perr != nil {
		httperr.Write(w, perr)
		return nil, false
	}
	records, rerr := s.store.Range(addr, ns, start, end)
	if rerr != nil {
		if rerr == store.ErrNotFound {
			httperr.Write(w, httperr.BadRequest("start bound digest not found"))
			return nil, false
		}
		httperr.Write(w, httperr.Internal(rerr))
		return nil, false
	}
	out := make([][]byte, len(records))
	for i, rec := range records {
		out[i] = rec.Value
	}
	return out, true
}

// deleteRecords implements the DELETE selection logic shared by messages
// and feeds.
func (s *Service) deleteRecords(w http.ResponseWriter, r *http.Request, ns byte) bool {
	addr, err := addrParam(r)
	if err != nil {
		httperr.Write(w, err)
		return false
	}

	if hexDigest := r.URL.Query().Get("digest"); hexDigest != "" {
		digest, derr := hex.DecodeString(hexDigest)
		if derr != nil {
			httperr.Write(w, httperr.BadRequest("invalid digest hex"))
			return false
		}
		if err := s.store.DeleteByDigest(addr, ns, digest); err != nil {
			if err == store.ErrNotFound {
				httperr.Write(w, httperr.NotFound("no record with that digest"))
				return false
			}
			httperr.Write(w, httperr.Internal(err))
			return false
		}
		return true
	}

	start, end, perr := parseRangeQuery(r)
	if perr != nil {
		httperr.Write(w, perr)
		return false
	}
	if err := s.store.DeleteRange(addr, ns, start, end); err != nil {
		httperr.Write(w, httperr.Internal(err))
		return false
	}
	return true
}

// ingestMessages implements PUT /messages and PUT /feeds (§4.8 steps 1-5):
// stamping, dual-address storage, and bus fan-out with the WebSocket
// truncation threshold.
func (s *Service) ingestMessages(ctx context.Context, ns byte, set *wire.MessageSet) error {
	now := uint64(time.Now().UnixMilli())

	for _, m := range set.Messages {
		m.ReceivedTime = now

		destPub, err := btcec.ParsePubKey(m.DestinationPublicKey)
		if err != nil {
			return httperr.BadRequest("invalid destination public key")
		}
		destHash := auth.PubKeyHash(m.DestinationPublicKey)
		srcHash := auth.PubKeyHash(m.SourcePublicKey)

		digest := sha256.Sum256(m.Payload)
		m.PayloadDigest = digest[:]

		selfSend := bytes.Equal(destHash, srcHash)
		if !selfSend {
			if err := s.stampV.Verify(ctx, destPub, m.PayloadDigest, m.Stamp); err != nil {
				return httperr.Wrap(http.StatusBadRequest, "stamp verification failed", err)
			}
		}

		encoded := m.Marshal()
		if err := s.store.Push(destHash, ns, now, encoded, m.PayloadDigest); err != nil {
			return httperr.Internal(err)
		}
		if err := s.store.Push(srcHash, ns, now, encoded, m.PayloadDigest); err != nil {
			return httperr.Internal(err)
		}

		frame := encoded
		if uint64(len(m.Payload)) > s.cfg.Limits.WebsocketPayloadCap {
			truncated := *m
			truncated.Payload = nil
			frame = truncated.Marshal()
		}
		s.bus.Publish(destHash, frame)
		if selfSend {
			s.bus.Publish(srcHash, frame)
		}
	}
	return nil
}
