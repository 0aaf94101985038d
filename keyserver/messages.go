package keyserver

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pondio/pondrelay/auth"
	"github.com/pondio/pondrelay/bitcoin"
	"github.com/pondio/pondrelay/httperr"
	"github.com/pondio/pondrelay/pop"
	"github.com/pondio/pondrelay/store"
	"github.com/pondio/pondrelay/wire"
)

// handleGetMessagesByTopic implements GET /messages?topic&from&to: every
// wrapper published under topic in [from, to], oldest first, in
// store.TopicStore.Get's ascending timestamp order.
func (s *Service) handleGetMessagesByTopic(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	from, ferr := parseOptionalUint64(r.URL.Query().Get("from"), 0)
	to, terr := parseOptionalUint64(r.URL.Query().Get("to"), store.MaxTimestamp)
	if ferr != nil || terr != nil {
		httperr.Write(w, httperr.BadRequest("invalid from/to"))
		return
	}

	records, err := s.topics.Get(topic, from, to)
	if err != nil {
		if err == store.ErrInvalidTopic {
			httperr.Write(w, httperr.BadRequest("invalid topic"))
			return
		}
		httperr.Write(w, httperr.Internal(err))
		return
	}

	set := &wire.AuthWrapperSet{Items: make([]*wire.AuthWrapper, 0, len(records))}
	for _, rec := range records {
		item, derr := wire.UnmarshalAuthWrapper(rec.Payload)
		if derr != nil {
			s.logger.Warn().Err(derr).Msg("topic record failed to decode as a wrapper")
			continue
		}
		set.Items = append(set.Items, item)
	}
	writeBinary(w, http.StatusOK, set.Marshal())
}

// handleGetMessageByDigest implements GET /messages/{digest}: the single
// wrapper stored under that content digest.
func (s *Service) handleGetMessageByDigest(w http.ResponseWriter, r *http.Request) {
	digest, err := digestParam(r)
	if err != nil {
		httperr.Write(w, err)
		return
	}
	payload, gerr := s.topics.GetPayload(digest)
	if gerr != nil {
		if gerr == store.ErrNotFound {
			httperr.Write(w, httperr.NotFound("message not found"))
			return
		}
		httperr.Write(w, httperr.Internal(gerr))
		return
	}
	writeBinary(w, http.StatusOK, payload)
}

// handlePutMessage implements PUT /messages?topic=...: a chain-commitment
// gated publish into topic, indexed under every one of topic's hierarchical
// prefixes. Any burn-vote outputs the wrapper carries (§4.5) are parsed,
// broadcast, and folded into the payload digest's burn ledger with their
// real upvote/downvote sign; no GET endpoint returns that ledger.
func (s *Service) handlePutMessage(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if err := store.ValidateTopic(topic); err != nil {
		httperr.Write(w, httperr.BadRequest("invalid topic"))
		return
	}

	body, rerr := readLimited(r, int64(s.cfg.Limits.TopicSize))
	if rerr != nil {
		httperr.Write(w, rerr)
		return
	}
	wrapper, derr := wire.UnmarshalAuthWrapper(body)
	if derr != nil {
		httperr.Write(w, httperr.BadRequest("malformed message wrapper"))
		return
	}
	parsed, perr := auth.Parse(wrapper)
	if perr != nil {
		httperr.Write(w, httperr.BadRequest(perr.Error()))
		return
	}
	if verr := auth.Verify(parsed); verr != nil {
		httperr.Write(w, httperr.BadRequest(verr.Error()))
		return
	}
	pubKeyHash := auth.PubKeyHash(parsed.PublicKeyRaw)
	commitment := pop.Commitment(pubKeyHash, parsed.PayloadDigest)

	token, hasToken := pop.Extract(r)
	if !hasToken || s.commitment.Validate(r.Context(), token, commitment) != nil {
		s.mintCommitmentInvoice(w, pubKeyHash, parsed.PayloadDigest, commitment)
		return
	}

	wrapper.PayloadDigest = parsed.PayloadDigest
	canonical := wrapper.Marshal()
	digest := sha256.Sum256(canonical)
	now := uint64(time.Now().UnixMilli())

	if err := s.topics.Put(topic, now, digest[:], canonical); err != nil {
		httperr.Write(w, httperr.Internal(err))
		return
	}

	s.recordBurnVotes(r.Context(), wrapper, parsed.PayloadDigest)

	w.WriteHeader(http.StatusOK)
}

// recordBurnVotes parses every transaction attached to the wrapper for a
// POND burn-vote output committing to digest, broadcasts it, and folds its
// signed value into the digest's burn ledger. Best-effort: a malformed or
// unbroadcastable entry is logged and skipped, it never fails the publish
// (§4.5, grounded on the original's per-output handling in put_message).
func (s *Service) recordBurnVotes(ctx context.Context, wrapper *wire.AuthWrapper, digest []byte) {
	for _, bo := range wrapper.Transactions {
		tx, err := bitcoin.DecodeTx(bo.Tx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("burn vote: malformed transaction")
			continue
		}
		if int(bo.Index) >= len(tx.TxOut) {
			s.logger.Warn().Uint32("index", bo.Index).Msg("burn vote: output index out of range")
			continue
		}
		out := tx.TxOut[bo.Index]
		voteDigest, upvote, ok := bitcoin.ParsePondBurn(out.PkScript)
		if !ok {
			s.logger.Warn().Msg("burn vote: output is not a pond burn script")
			continue
		}
		if !bytes.Equal(voteDigest, digest) {
			s.logger.Warn().Msg("burn vote: commitment does not match payload digest")
			continue
		}
		if _, err := s.node.SendTx(ctx, bo.Tx); err != nil {
			s.logger.Warn().Err(err).Msg("burn vote: failed to broadcast transaction")
		}
		id := tx.TxHash()
		if _, err := s.topics.RecordBurn(digest, id[:], bo.Index, out.Value, upvote); err != nil {
			s.logger.Warn().Err(err).Msg("burn vote: failed to record burn")
		}
	}
}

func digestParam(r *http.Request) ([]byte, error) {
	b, err := hex.DecodeString(mux.Vars(r)["digest"])
	if err != nil || len(b) != 32 {
		return nil, httperr.BadRequest("invalid digest")
	}
	return b, nil
}

func parseOptionalUint64(s string, def uint64) (uint64, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return v, nil
}
