package wire

import "google.golang.org/protobuf/encoding/protowire"

// Scheme identifies the signature algorithm declared in an AuthWrapper.
type Scheme uint64

const (
	SchemeECDSA   Scheme = 1
	SchemeSchnorr Scheme = 2
)

const (
	fieldWrapperPublicKey protowire.Number = iota + 1
	fieldWrapperSignature
	fieldWrapperScheme
	fieldWrapperPayload
	fieldWrapperPayloadDigest
	fieldWrapperTransactions
)

const (
	fieldBurnOutputsTx protowire.Number = iota + 1
	fieldBurnOutputsIndex
)

// BurnOutputs names a single output, by index, of a raw transaction carried
// alongside a message publish: the POND burn-vote script embedded at that
// output commits to the message's payload digest (§3, §4.5).
type BurnOutputs struct {
	Tx    []byte
	Index uint32
}

func (b *BurnOutputs) Marshal() []byte {
	var out []byte
	out = appendBytesField(out, fieldBurnOutputsTx, b.Tx)
	out = appendVarintField(out, fieldBurnOutputsIndex, uint64(b.Index))
	return out
}

func unmarshalBurnOutputs(data []byte) (*BurnOutputs, error) {
	b := &BurnOutputs{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, raw []byte) int {
		switch num {
		case fieldBurnOutputsTx:
			if typ != protowire.BytesType {
				return -1
			}
			v, n := consumeBytes(raw)
			if n < 0 {
				return -1
			}
			b.Tx = v
			return n
		case fieldBurnOutputsIndex:
			if typ != protowire.VarintType {
				return -1
			}
			v, n := consumeVarint(raw)
			if n < 0 {
				return -1
			}
			b.Index = uint32(v)
			return n
		default:
			return 0
		}
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// AuthWrapper is the signed envelope of §3: a public key, a 64-byte
// signature, a scheme tag, a payload with its digest, and the raw
// transactions (if any) carrying burn-vote outputs that commit to that
// digest (§4.5). Transactions is never covered by Signature (§4.3).
type AuthWrapper struct {
	PublicKey     []byte
	Signature     []byte
	Scheme        Scheme
	Payload       []byte
	PayloadDigest []byte
	Transactions  []BurnOutputs
}

// Marshal encodes the wrapper as a length-delimited, varint-tagged record.
func (w *AuthWrapper) Marshal() []byte {
	var b []byte
	b = appendBytesField(b, fieldWrapperPublicKey, w.PublicKey)
	b = appendBytesField(b, fieldWrapperSignature, w.Signature)
	b = appendVarintField(b, fieldWrapperScheme, uint64(w.Scheme))
	b = appendBytesField(b, fieldWrapperPayload, w.Payload)
	b = appendBytesField(b, fieldWrapperPayloadDigest, w.PayloadDigest)
	for i := range w.Transactions {
		b = appendMessageField(b, fieldWrapperTransactions, w.Transactions[i].Marshal())
	}
	return b
}

// UnmarshalAuthWrapper decodes a record produced by Marshal.
func UnmarshalAuthWrapper(data []byte) (*AuthWrapper, error) {
	w := &AuthWrapper{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fieldWrapperPublicKey:
			if typ != protowire.BytesType {
				return -1
			}
			v, n := consumeBytes(b)
			if n < 0 {
				return -1
			}
			w.PublicKey = v
			return n
		case fieldWrapperSignature:
			if typ != protowire.BytesType {
				return -1
			}
			v, n := consumeBytes(b)
			if n < 0 {
				return -1
			}
			w.Signature = v
			return n
		case fieldWrapperScheme:
			if typ != protowire.VarintType {
				return -1
			}
			v, n := consumeVarint(b)
			if n < 0 {
				return -1
			}
			w.Scheme = Scheme(v)
			return n
		case fieldWrapperPayload:
			if typ != protowire.BytesType {
				return -1
			}
			v, n := consumeBytes(b)
			if n < 0 {
				return -1
			}
			w.Payload = v
			return n
		case fieldWrapperPayloadDigest:
			if typ != protowire.BytesType {
				return -1
			}
			v, n := consumeBytes(b)
			if n < 0 {
				return -1
			}
			w.PayloadDigest = v
			return n
		case fieldWrapperTransactions:
			if typ != protowire.BytesType {
				return -1
			}
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return -1
			}
			bo, berr := unmarshalBurnOutputs(raw)
			if berr != nil {
				return -1
			}
			w.Transactions = append(w.Transactions, *bo)
			return n
		default:
			return 0
		}
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

const (
	fieldWrapperSetItems protowire.Number = 1
)

// AuthWrapperSet is a repeated set of wrappers, used by the keyserver's
// topic-scoped GET /messages.
type AuthWrapperSet struct {
	Items []*AuthWrapper
}

func (s *AuthWrapperSet) Marshal() []byte {
	var b []byte
	for _, item := range s.Items {
		b = appendMessageField(b, fieldWrapperSetItems, item.Marshal())
	}
	return b
}

func UnmarshalAuthWrapperSet(data []byte) (*AuthWrapperSet, error) {
	s := &AuthWrapperSet{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != fieldWrapperSetItems || typ != protowire.BytesType {
			return 0
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return -1
		}
		item, err := UnmarshalAuthWrapper(raw)
		if err != nil {
			return -1
		}
		s.Items = append(s.Items, item)
		return n
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
