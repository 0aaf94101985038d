package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthWrapperRoundTrip(t *testing.T) {
	w := &AuthWrapper{
		PublicKey:     []byte{0x02, 0x01, 0x02, 0x03},
		Signature:     make([]byte, 64),
		Scheme:        SchemeECDSA,
		Payload:       []byte("hello"),
		PayloadDigest: []byte{1, 2, 3},
	}
	data := w.Marshal()
	got, err := UnmarshalAuthWrapper(data)
	require.NoError(t, err)
	assert.Equal(t, w.PublicKey, got.PublicKey)
	assert.Equal(t, w.Signature, got.Signature)
	assert.Equal(t, w.Scheme, got.Scheme)
	assert.Equal(t, w.Payload, got.Payload)
	assert.Equal(t, w.PayloadDigest, got.PayloadDigest)
}

func TestAuthWrapperTransactionsRoundTrip(t *testing.T) {
	w := &AuthWrapper{
		PublicKey:     []byte{0x02, 0x01, 0x02, 0x03},
		Signature:     make([]byte, 64),
		Scheme:        SchemeECDSA,
		PayloadDigest: make([]byte, 32),
		Transactions: []BurnOutputs{
			{Tx: []byte{0xde, 0xad, 0xbe, 0xef}, Index: 0},
			{Tx: []byte{0x01}, Index: 3},
		},
	}
	data := w.Marshal()
	got, err := UnmarshalAuthWrapper(data)
	require.NoError(t, err)
	require.Len(t, got.Transactions, 2)
	assert.Equal(t, w.Transactions[0].Tx, got.Transactions[0].Tx)
	assert.Equal(t, w.Transactions[0].Index, got.Transactions[0].Index)
	assert.Equal(t, w.Transactions[1].Tx, got.Transactions[1].Tx)
	assert.Equal(t, uint32(3), got.Transactions[1].Index)
}

func TestAuthWrapperEmptyFieldsRoundTrip(t *testing.T) {
	w := &AuthWrapper{}
	data := w.Marshal()
	got, err := UnmarshalAuthWrapper(data)
	require.NoError(t, err)
	assert.Empty(t, got.PublicKey)
	assert.Equal(t, Scheme(0), got.Scheme)
}

func TestMessageRoundTrip(t *testing.T) {
	m := &Message{
		SourcePublicKey:      []byte{1, 2, 3},
		DestinationPublicKey: []byte{4, 5, 6},
		SenderPubKeyHash:     make([]byte, 20),
		ReceivedTime:         1234567890,
		Payload:              []byte("payload bytes"),
		PayloadDigest:        make([]byte, 32),
		Stamp: &Stamp{
			StampOutpoints: []*StampOutpoint{
				{StampTx: []byte{0xde, 0xad}, Vouts: []uint32{0, 1, 2}},
			},
		},
		Scheme:    SchemeECDSA,
		Signature: make([]byte, 64),
	}
	data := m.Marshal()
	got, err := UnmarshalMessage(data)
	require.NoError(t, err)
	assert.Equal(t, m.ReceivedTime, got.ReceivedTime)
	assert.Equal(t, m.Payload, got.Payload)
	require.Len(t, got.Stamp.StampOutpoints, 1)
	assert.Equal(t, []uint32{0, 1, 2}, got.Stamp.StampOutpoints[0].Vouts)
}

func TestMessageSetRoundTrip(t *testing.T) {
	set := &MessageSet{Messages: []*Message{
		{Payload: []byte("a"), ReceivedTime: 1},
		{Payload: []byte("b"), ReceivedTime: 2},
	}}
	data := set.Marshal()
	got, err := UnmarshalMessageSet(data)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, []byte("a"), got.Messages[0].Payload)
	assert.Equal(t, []byte("b"), got.Messages[1].Payload)
}

func TestPaymentRequestRoundTrip(t *testing.T) {
	req := &PaymentRequest{
		Details: &PaymentDetails{
			Network: "mainnet",
			Time:    100,
			Expires: 200,
			Outputs: []*Output{
				{Amount: 100000, Script: []byte{0x76, 0xa9}},
			},
			MerchantData: []byte("merchant"),
			PaymentURL:   "/payments",
			Memo:         "thanks",
		},
	}
	data := req.Marshal()
	got, err := UnmarshalPaymentRequest(data)
	require.NoError(t, err)
	assert.Equal(t, "none", got.PKIType)
	require.NotNil(t, got.Details)
	assert.Equal(t, "mainnet", got.Details.Network)
	require.Len(t, got.Details.Outputs, 1)
	assert.Equal(t, uint64(100000), got.Details.Outputs[0].Amount)
}

func TestPaymentAndAckRoundTrip(t *testing.T) {
	pay := &Payment{
		MerchantData: []byte("merchant"),
		Transactions: [][]byte{{0x01, 0x02}, {0x03}},
		Memo:         "hi",
	}
	ack := &PaymentAck{Payment: pay, Memo: "thanks for your custom!"}
	data := ack.Marshal()
	got, err := UnmarshalPaymentAck(data)
	require.NoError(t, err)
	assert.Equal(t, ack.Memo, got.Memo)
	require.Len(t, got.Payment.Transactions, 2)
	assert.Equal(t, []byte{0x01, 0x02}, got.Payment.Transactions[0])
}

func TestPeerListRoundTrip(t *testing.T) {
	pl := NewPeerList([]string{"https://a.example", "https://b.example"})
	data := pl.Marshal()
	got, err := UnmarshalPeerList(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, got.URLs())
}

func TestMalformedRecordRejected(t *testing.T) {
	_, err := UnmarshalAuthWrapper([]byte{0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, ErrMalformed)
}
