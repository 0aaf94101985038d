package keyserver

import (
	"net/http"

	"github.com/pondio/pondrelay/address"
	"github.com/pondio/pondrelay/httperr"
	"github.com/pondio/pondrelay/pop"
	"github.com/pondio/pondrelay/wire"
)

// handlePayments implements POST /payments: the chain-commitment flow. The
// submitted transactions must carry an OP_RETURN output committing to the
// (pubkey_hash, metadata_digest) pair named in MerchantData; once found,
// every transaction is broadcast and a chain-commitment PoP token naming
// that output is returned.
func (s *Service) handlePayments(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Accept") == "" || r.Header.Get("Content-Type") == "" {
		httperr.Write(w, httperr.New(http.StatusNotAcceptable, "missing required headers"))
		return
	}
	if r.Header.Get("Content-Type") != "application/bitcoincash-payment" {
		httperr.Write(w, httperr.New(http.StatusUnsupportedMediaType, "unexpected content type"))
		return
	}

	body, rerr := readLimited(r, int64(s.cfg.Limits.PaymentSize))
	if rerr != nil {
		httperr.Write(w, rerr)
		return
	}
	payment, derr := wire.UnmarshalPayment(body)
	if derr != nil {
		httperr.Write(w, httperr.BadRequest("malformed payment"))
		return
	}
	if len(payment.MerchantData) != address.BodyLen+32 {
		httperr.Write(w, httperr.BadRequest("malformed merchant data"))
		return
	}
	pubKeyHash := payment.MerchantData[:address.BodyLen]
	metadataDigest := payment.MerchantData[address.BodyLen:]
	expected := pop.Commitment(pubKeyHash, metadataDigest)

	txID, vout, _, ok := pop.FindCommitmentOutput(payment.Transactions, expected)
	if !ok {
		httperr.Write(w, httperr.BadRequest("no transaction commits to the expected metadata"))
		return
	}

	for _, raw := range payment.Transactions {
		if _, err := s.node.SendTx(r.Context(), raw); err != nil {
			httperr.Write(w, httperr.Wrap(http.StatusBadRequest, "transaction rejected", err))
			return
		}
	}

	token := pop.MintToken(txID, vout)
	w.Header().Set("Authorization", "POP "+token)
	w.Header().Set("Location", "/keys/"+address.Encode(pubKeyHash))
	w.Header().Set("Content-Type", "application/bitcoincash-paymentack")
	w.WriteHeader(http.StatusOK)
	ack := &wire.PaymentAck{Payment: payment, Memo: "thanks"}
	_, _ = w.Write(ack.Marshal())
}
