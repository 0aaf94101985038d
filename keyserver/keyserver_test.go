package keyserver

import (
	"bytes"
	"crypto/sha256"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/pondio/pondrelay/auth"
	"github.com/pondio/pondrelay/bitcoin"
	"github.com/pondio/pondrelay/config"
	"github.com/pondio/pondrelay/pop"
	"github.com/pondio/pondrelay/store"
	"github.com/pondio/pondrelay/wire"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// newTestService builds a Service against in-memory stores and a node
// client pointed at an unreachable address: every handler path exercised
// here either supplies no PoP token (exercising the 402 invoice path, which
// never reaches the node) or is a read-only lookup. The burn tests'
// broadcast attempts against that client fail and are only logged.
func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := config.Defaults()
	cfg.DBPath = ""
	cfg.Bitcoin.RPCAddr = "http://127.0.0.1:1"

	metaDB, err := store.NewLevelDB("")
	require.NoError(t, err)
	payloadsDB, err := store.NewLevelDB("")
	require.NoError(t, err)
	messagesDB, err := store.NewLevelDB("")
	require.NoError(t, err)
	peersDB, err := store.NewLevelDB("")
	require.NoError(t, err)

	node, err := bitcoin.NewClient(cfg.Bitcoin)
	require.NoError(t, err)

	peers, err := NewPeerSet(peersDB, nil)
	require.NoError(t, err)

	s := &Service{
		cfg:        cfg,
		meta:       store.New(metaDB),
		topics:     store.NewTopicStore(payloadsDB, messagesDB),
		node:       node,
		commitment: pop.NewCommitmentScheme(node),
		peers:      peers,
		tokens:     NewTokenCache(),
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
	}
	s.router = s.registerRoutes()
	return s
}

func signedWrapper(t *testing.T, payload []byte) (*wire.AuthWrapper, []byte) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeCompressed()
	digest := sha256.Sum256(payload)
	sig := signDigest(t, priv, digest[:])
	w := &wire.AuthWrapper{
		PublicKey: pub,
		Signature: sig,
		Scheme:    wire.SchemeECDSA,
		Payload:   payload,
	}
	return w, auth.PubKeyHash(pub)
}

func signDigest(t *testing.T, priv *btcec.PrivateKey, digest []byte) []byte {
	t.Helper()
	sig := ecdsa.Sign(priv, digest)
	r := sig.R()
	s := sig.S()
	out := make([]byte, 64)
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	copy(out[32-len(rBytes):32], rBytes[:])
	copy(out[64-len(sBytes):64], sBytes[:])
	return out
}

func hexAddr(body []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(body)*2)
	for i, b := range body {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}

func TestPutKeyWithoutPoPReturns402WithMatchingMerchantData(t *testing.T) {
	s := newTestService(t)
	w, addrBody := signedWrapper(t, []byte("profile json"))

	req := httptest.NewRequest(http.MethodPut, "/keys/"+hexAddr(addrBody), bytes.NewReader(w.Marshal()))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	invoice, err := wire.UnmarshalPaymentRequest(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, invoice.Details.MerchantData, 52)
	require.Equal(t, addrBody, invoice.Details.MerchantData[:20])
}

func TestGetKeyMissingReturns404WhenNoPeers(t *testing.T) {
	s := newTestService(t)
	addrBody := make([]byte, 20)
	req := httptest.NewRequest(http.MethodGet, "/keys/"+hexAddr(addrBody), nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutMessageWithoutPoPReturns402(t *testing.T) {
	s := newTestService(t)
	w, _ := signedWrapper(t, []byte("broadcast body"))

	req := httptest.NewRequest(http.MethodPut, "/messages?topic=pond.general", bytes.NewReader(w.Marshal()))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestPutMessageInvalidTopicIsBadRequest(t *testing.T) {
	s := newTestService(t)
	w, _ := signedWrapper(t, []byte("broadcast body"))

	req := httptest.NewRequest(http.MethodPut, "/messages?topic=BAD%20TOPIC", bytes.NewReader(w.Marshal()))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMessagesByTopicEmptyIsOK(t *testing.T) {
	s := newTestService(t)
	req := httptest.NewRequest(http.MethodGet, "/messages?topic=pond.general", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	set, err := wire.UnmarshalAuthWrapperSet(rec.Body.Bytes())
	require.NoError(t, err)
	require.Empty(t, set.Items)
}

func TestGetPeersReturnsConfiguredPeers(t *testing.T) {
	s := newTestService(t)
	_, err := s.peers.Add("https://peer.example")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/peers", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	list, err := wire.UnmarshalPeerList(rec.Body.Bytes())
	require.NoError(t, err)
	require.Contains(t, list.URLs(), "https://peer.example")
}

func TestPaymentsRejectsMissingHeaders(t *testing.T) {
	s := newTestService(t)
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotAcceptable, rec.Code)
}

func TestPaymentsRejectsNoMatchingCommitment(t *testing.T) {
	s := newTestService(t)
	payment := &wire.Payment{MerchantData: make([]byte, 52)}
	req := httptest.NewRequest(http.MethodPost, "/payments", bytes.NewReader(payment.Marshal()))
	req.Header.Set("Accept", "application/bitcoincash-paymentack")
	req.Header.Set("Content-Type", "application/bitcoincash-payment")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
