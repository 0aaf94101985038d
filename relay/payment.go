package relay

import (
	"context"
	"net/http"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/pondio/pondrelay/bitcoin"
	"github.com/pondio/pondrelay/httperr"
	"github.com/pondio/pondrelay/pop"
	"github.com/pondio/pondrelay/wallet"
	"github.com/pondio/pondrelay/wire"
)

// requirePoP checks for a valid HMAC-bearer PoP token bound to subject. If
// none is present, it mints a fresh invoice, registers the expected output
// in the wallet, and writes a 402 carrying the BIP70 PaymentRequest.
func (s *Service) requirePoP(w http.ResponseWriter, r *http.Request, subject []byte) bool {
	token, ok := pop.Extract(r)
	if ok && s.hmac.Validate(subject, token) == nil {
		return true
	}

	req, err := s.mintInvoice(r.Context(), subject)
	if err != nil {
		httperr.Write(w, httperr.Internal(err))
		return false
	}
	w.Header().Set("Content-Type", "application/bitcoincash-paymentrequest")
	w.WriteHeader(http.StatusPaymentRequired)
	_, _ = w.Write(req.Marshal())
	return false
}

// mintInvoice asks the node for a fresh address, registers its script as
// the expected payment output under subject in the wallet, and returns the
// BIP70 invoice describing it.
func (s *Service) mintInvoice(ctx context.Context, subject []byte) (*wire.PaymentRequest, error) {
	addrStr, err := s.node.GetNewAddr(ctx)
	if err != nil {
		return nil, err
	}
	params := bitcoin.NetParams(s.cfg.Bitcoin.Network)
	addr, err := btcutil.DecodeAddress(addrStr, params)
	if err != nil {
		return nil, err
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	s.wallet.AddOutputs(subject, []wallet.Output{
		{Script: script, Amount: s.cfg.Payment.TokenFeeSats, MatchAmount: true},
	})

	return &wire.PaymentRequest{
		Details: &wire.PaymentDetails{
			Network:      s.cfg.Bitcoin.Network,
			Outputs:      []*wire.Output{{Amount: s.cfg.Payment.TokenFeeSats, Script: script}},
			MerchantData: subject,
			PaymentURL:   "/payments",
			Memo:         s.cfg.Payment.Memo,
		},
	}, nil
}

// handlePayments implements POST /payments: validates headers, extracts
// declared transactions, confirms the wallet match for MerchantData,
// broadcasts every transaction, and returns a fresh PoP token plus the
// encoded PaymentAck.
func (s *Service) handlePayments(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Accept") == "" || r.Header.Get("Content-Type") == "" {
		httperr.Write(w, httperr.New(http.StatusNotAcceptable, "missing required headers"))
		return
	}
	if r.Header.Get("Content-Type") != "application/bitcoincash-payment" {
		httperr.Write(w, httperr.New(http.StatusUnsupportedMediaType, "unexpected content type"))
		return
	}

	body, err := readLimited(r, int64(s.cfg.Limits.PaymentSize))
	if err != nil {
		httperr.Write(w, err)
		return
	}
	payment, err := wire.UnmarshalPayment(body)
	if err != nil {
		httperr.Write(w, httperr.BadRequest("malformed payment"))
		return
	}

	observed, err := observedOutputs(payment.Transactions)
	if err != nil {
		httperr.Write(w, httperr.BadRequest("malformed transaction"))
		return
	}

	if err := s.wallet.RecvOutputs(payment.MerchantData, observed); err != nil {
		httperr.Write(w, httperr.BadRequest("payment does not match invoice"))
		return
	}

	for _, raw := range payment.Transactions {
		if _, err := s.node.SendTx(r.Context(), raw); err != nil {
			httperr.Write(w, httperr.Wrap(http.StatusBadRequest, "transaction rejected", err))
			return
		}
	}

	token := s.hmac.Mint(payment.MerchantData)
	w.Header().Set("Authorization", "POP "+token)
	w.Header().Set("Content-Type", "application/bitcoincash-paymentack")
	w.WriteHeader(http.StatusOK)
	ack := &wire.PaymentAck{Payment: payment, Memo: "thanks"}
	_, _ = w.Write(ack.Marshal())
}

func observedOutputs(txs [][]byte) ([]wallet.Output, error) {
	var outs []wallet.Output
	for _, raw := range txs {
		tx, err := bitcoin.DecodeTx(raw)
		if err != nil {
			return nil, err
		}
		for _, out := range tx.TxOut {
			outs = append(outs, wallet.Output{Script: out.PkScript, Amount: uint64(out.Value), MatchAmount: true})
		}
	}
	return outs, nil
}
