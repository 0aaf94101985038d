package wire

import "google.golang.org/protobuf/encoding/protowire"

const (
	fieldOutputAmount protowire.Number = iota + 1
	fieldOutputScript
)

// Output is a single BIP70 payment output: an amount and the script clients
// must pay to.
type Output struct {
	Amount uint64
	Script []byte
}

func (o *Output) marshal() []byte {
	var b []byte
	b = appendVarintField(b, fieldOutputAmount, o.Amount)
	b = appendBytesField(b, fieldOutputScript, o.Script)
	return b
}

func unmarshalOutput(data []byte) (*Output, error) {
	o := &Output{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fieldOutputAmount:
			v, n := consumeVarint(b)
			if typ != protowire.VarintType || n < 0 {
				return -1
			}
			o.Amount = v
			return n
		case fieldOutputScript:
			v, n := consumeBytes(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			o.Script = v
			return n
		default:
			return 0
		}
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

const (
	fieldDetailsNetwork protowire.Number = iota + 1
	fieldDetailsTime
	fieldDetailsExpires
	fieldDetailsOutputs
	fieldDetailsMerchantData
	fieldDetailsPaymentURL
	fieldDetailsMemo
)

// PaymentDetails is the BIP70 PaymentDetails message embedded in a
// PaymentRequest (§3).
type PaymentDetails struct {
	Network      string
	Time         uint64
	Expires      uint64
	Outputs      []*Output
	MerchantData []byte
	PaymentURL   string
	Memo         string
}

func (d *PaymentDetails) marshal() []byte {
	var b []byte
	b = appendStringField(b, fieldDetailsNetwork, d.Network)
	b = appendVarintField(b, fieldDetailsTime, d.Time)
	b = appendVarintField(b, fieldDetailsExpires, d.Expires)
	for _, o := range d.Outputs {
		b = appendMessageField(b, fieldDetailsOutputs, o.marshal())
	}
	b = appendBytesField(b, fieldDetailsMerchantData, d.MerchantData)
	b = appendStringField(b, fieldDetailsPaymentURL, d.PaymentURL)
	b = appendStringField(b, fieldDetailsMemo, d.Memo)
	return b
}

func unmarshalDetails(data []byte) (*PaymentDetails, error) {
	d := &PaymentDetails{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fieldDetailsNetwork:
			v, n := consumeString(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			d.Network = v
			return n
		case fieldDetailsTime:
			v, n := consumeVarint(b)
			if typ != protowire.VarintType || n < 0 {
				return -1
			}
			d.Time = v
			return n
		case fieldDetailsExpires:
			v, n := consumeVarint(b)
			if typ != protowire.VarintType || n < 0 {
				return -1
			}
			d.Expires = v
			return n
		case fieldDetailsOutputs:
			if typ != protowire.BytesType {
				return -1
			}
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return -1
			}
			o, err := unmarshalOutput(raw)
			if err != nil {
				return -1
			}
			d.Outputs = append(d.Outputs, o)
			return n
		case fieldDetailsMerchantData:
			v, n := consumeBytes(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			d.MerchantData = v
			return n
		case fieldDetailsPaymentURL:
			v, n := consumeString(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			d.PaymentURL = v
			return n
		case fieldDetailsMemo:
			v, n := consumeString(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			d.Memo = v
			return n
		default:
			return 0
		}
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

const (
	fieldRequestPKIType protowire.Number = iota + 1
	fieldRequestDetails
)

// PaymentRequest is the 402 body: a `none`-PKI BIP70 request wrapping
// PaymentDetails.
type PaymentRequest struct {
	PKIType string
	Details *PaymentDetails
}

func (r *PaymentRequest) Marshal() []byte {
	var b []byte
	pkiType := r.PKIType
	if pkiType == "" {
		pkiType = "none"
	}
	b = appendStringField(b, fieldRequestPKIType, pkiType)
	if r.Details != nil {
		b = appendMessageField(b, fieldRequestDetails, r.Details.marshal())
	}
	return b
}

func UnmarshalPaymentRequest(data []byte) (*PaymentRequest, error) {
	r := &PaymentRequest{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fieldRequestPKIType:
			v, n := consumeString(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			r.PKIType = v
			return n
		case fieldRequestDetails:
			if typ != protowire.BytesType {
				return -1
			}
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return -1
			}
			d, err := unmarshalDetails(raw)
			if err != nil {
				return -1
			}
			r.Details = d
			return n
		default:
			return 0
		}
	})
	if err != nil {
		return nil, err
	}
	if r.PKIType == "" {
		r.PKIType = "none"
	}
	return r, nil
}

const (
	fieldPaymentMerchantData protowire.Number = iota + 1
	fieldPaymentTransactions
	fieldPaymentRefundTo
	fieldPaymentMemo
)

// Payment is the client's POST /payments body.
type Payment struct {
	MerchantData []byte
	Transactions [][]byte
	RefundTo     []*Output
	Memo         string
}

func (p *Payment) Marshal() []byte {
	var b []byte
	b = appendBytesField(b, fieldPaymentMerchantData, p.MerchantData)
	for _, tx := range p.Transactions {
		b = appendMessageField(b, fieldPaymentTransactions, tx)
	}
	for _, o := range p.RefundTo {
		b = appendMessageField(b, fieldPaymentRefundTo, o.marshal())
	}
	b = appendStringField(b, fieldPaymentMemo, p.Memo)
	return b
}

func UnmarshalPayment(data []byte) (*Payment, error) {
	p := &Payment{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fieldPaymentMerchantData:
			v, n := consumeBytes(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			p.MerchantData = v
			return n
		case fieldPaymentTransactions:
			if typ != protowire.BytesType {
				return -1
			}
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return -1
			}
			cp := make([]byte, len(raw))
			copy(cp, raw)
			p.Transactions = append(p.Transactions, cp)
			return n
		case fieldPaymentRefundTo:
			if typ != protowire.BytesType {
				return -1
			}
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return -1
			}
			o, err := unmarshalOutput(raw)
			if err != nil {
				return -1
			}
			p.RefundTo = append(p.RefundTo, o)
			return n
		case fieldPaymentMemo:
			v, n := consumeString(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			p.Memo = v
			return n
		default:
			return 0
		}
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

const (
	fieldAckPayment protowire.Number = iota + 1
	fieldAckMemo
)

// PaymentAck is the 200 response to POST /payments.
type PaymentAck struct {
	Payment *Payment
	Memo    string
}

func (a *PaymentAck) Marshal() []byte {
	var b []byte
	if a.Payment != nil {
		b = appendMessageField(b, fieldAckPayment, a.Payment.Marshal())
	}
	b = appendStringField(b, fieldAckMemo, a.Memo)
	return b
}

func UnmarshalPaymentAck(data []byte) (*PaymentAck, error) {
	a := &PaymentAck{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fieldAckPayment:
			if typ != protowire.BytesType {
				return -1
			}
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return -1
			}
			p, err := UnmarshalPayment(raw)
			if err != nil {
				return -1
			}
			a.Payment = p
			return n
		case fieldAckMemo:
			v, n := consumeString(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			a.Memo = v
			return n
		default:
			return 0
		}
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}
