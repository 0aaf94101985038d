package keyserver

import (
	"bytes"
	"io"
	"net/http"

	"github.com/pondio/pondrelay/address"
	"github.com/pondio/pondrelay/auth"
	"github.com/pondio/pondrelay/httperr"
	"github.com/pondio/pondrelay/pop"
	"github.com/pondio/pondrelay/store"
	"github.com/pondio/pondrelay/wire"
	"github.com/btcsuite/btcd/txscript"
)

// handleGetKey implements GET /keys/{addr}: return the locally stored
// metadata wrapper, falling back to a best-effort peer sample when it is
// missing locally and the caller did not already ask us not to (§4.6).
func (s *Service) handleGetKey(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r)
	if err != nil {
		httperr.Write(w, err)
		return
	}

	raw, err := s.meta.GetByDigest(addr, nsMeta, addr)
	if err == nil {
		writeBinary(w, http.StatusOK, raw)
		return
	}
	if err != store.ErrNotFound {
		httperr.Write(w, httperr.Internal(err))
		return
	}

	if r.Header.Get("Sample-Peers") == "false" {
		httperr.Write(w, httperr.NotFound("metadata not found"))
		return
	}
	if found := s.sampleFromPeers(r, addr); found != nil {
		writeBinary(w, http.StatusOK, found)
		return
	}
	httperr.Write(w, httperr.NotFound("metadata not found"))
}

func (s *Service) sampleFromPeers(r *http.Request, addr []byte) []byte {
	for _, peerURL := range s.peers.URLs() {
		url := peerURL + "/keys/" + address.Encode(addr)
		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		req.Header.Set("Sample-Peers", "false")
		resp, err := s.httpClient.Do(req)
		if err != nil {
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			continue
		}
		body, rerr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if rerr != nil {
			continue
		}
		return body
	}
	return nil
}

// handlePutKey implements PUT /keys/{addr}: a chain-commitment-gated write
// of the signed metadata wrapper (§4.3, §4.6). The commitment binds the
// submitter's pubkey hash to the digest of the metadata payload, so a
// token minted for one piece of metadata cannot be replayed for another.
func (s *Service) handlePutKey(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r)
	if err != nil {
		httperr.Write(w, err)
		return
	}

	body, rerr := readLimited(r, int64(s.cfg.Limits.MessageSize))
	if rerr != nil {
		httperr.Write(w, rerr)
		return
	}
	wrapper, derr := wire.UnmarshalAuthWrapper(body)
	if derr != nil {
		httperr.Write(w, httperr.BadRequest("malformed metadata wrapper"))
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
	if !bytes.Equal(pubKeyHash, addr) {
		httperr.Write(w, httperr.BadRequest("public key does not match address"))
		return
	}

	commitment := pop.Commitment(pubKeyHash, parsed.PayloadDigest)
	token, hasToken := pop.Extract(r)
	if !hasToken || s.commitment.Validate(r.Context(), token, commitment) != nil {
		s.mintCommitmentInvoice(w, pubKeyHash, parsed.PayloadDigest, commitment)
		return
	}

	wrapper.PayloadDigest = parsed.PayloadDigest
	canonical := wrapper.Marshal()
	if err := s.meta.Push(addr, nsMeta, 0, canonical, addr); err != nil {
		httperr.Write(w, httperr.Internal(err))
		return
	}

	height, herr := s.node.GetBlockCount(r.Context())
	if herr != nil {
		s.logger.Warn().Err(herr).Msg("failed to read block height for token cache")
	}
	s.tokens.Insert(addr, token, height)

	w.WriteHeader(http.StatusOK)
}

// mintCommitmentInvoice writes a 402 BIP70 payment request whose sole
// output commits to commitment, with merchant_data carrying the
// (pubkey_hash, metadata_digest) pair the eventual payment must match.
func (s *Service) mintCommitmentInvoice(w http.ResponseWriter, pubKeyHash, metadataDigest, commitment []byte) {
	script, err := txscript.NullDataScript(commitment)
	if err != nil {
		httperr.Write(w, httperr.Internal(err))
		return
	}
	merchantData := make([]byte, 0, len(pubKeyHash)+len(metadataDigest))
	merchantData = append(merchantData, pubKeyHash...)
	merchantData = append(merchantData, metadataDigest...)

	req := &wire.PaymentRequest{
		Details: &wire.PaymentDetails{
			Network:      s.cfg.Bitcoin.Network,
			Outputs:      []*wire.Output{{Amount: 0, Script: script}},
			Memo:         s.cfg.Payment.Memo,
			PaymentURL:   s.cfg.Payment.PaymentURL,
			MerchantData: merchantData,
		},
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusPaymentRequired)
	_, _ = w.Write(req.Marshal())
}
