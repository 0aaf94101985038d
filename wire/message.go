package wire

import "google.golang.org/protobuf/encoding/protowire"

const (
	fieldOutpointStampTx protowire.Number = iota + 1
	fieldOutpointVouts
)

// StampOutpoint is one declared stamp transaction and the vout positions
// within it that the sender claims bind to the payload digest.
type StampOutpoint struct {
	StampTx []byte
	Vouts   []uint32
}

func (o *StampOutpoint) marshal() []byte {
	var b []byte
	b = appendBytesField(b, fieldOutpointStampTx, o.StampTx)
	if len(o.Vouts) > 0 {
		b = protowire.AppendTag(b, fieldOutpointVouts, protowire.BytesType)
		var packed []byte
		for _, v := range o.Vouts {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		b = protowire.AppendBytes(b, packed)
	}
	return b
}

func unmarshalOutpoint(data []byte) (*StampOutpoint, error) {
	o := &StampOutpoint{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fieldOutpointStampTx:
			if typ != protowire.BytesType {
				return -1
			}
			v, n := consumeBytes(b)
			if n < 0 {
				return -1
			}
			o.StampTx = v
			return n
		case fieldOutpointVouts:
			if typ != protowire.BytesType {
				return -1
			}
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return -1
			}
			rest := packed
			for len(rest) > 0 {
				v, m := protowire.ConsumeVarint(rest)
				if m < 0 {
					return -1
				}
				o.Vouts = append(o.Vouts, uint32(v))
				rest = rest[m:]
			}
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

const fieldStampOutpoints protowire.Number = 1

// Stamp is the set of outpoints a message declares to prove burned value
// (§3, §4.2).
type Stamp struct {
	StampOutpoints []*StampOutpoint
}

func (s *Stamp) marshal() []byte {
	var b []byte
	for _, o := range s.StampOutpoints {
		b = appendMessageField(b, fieldStampOutpoints, o.marshal())
	}
	return b
}

func unmarshalStamp(data []byte) (*Stamp, error) {
	s := &Stamp{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != fieldStampOutpoints || typ != protowire.BytesType {
			return 0
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return -1
		}
		o, err := unmarshalOutpoint(raw)
		if err != nil {
			return -1
		}
		s.StampOutpoints = append(s.StampOutpoints, o)
		return n
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

const (
	fieldMsgSourcePublicKey protowire.Number = iota + 1
	fieldMsgDestinationPublicKey
	fieldMsgSenderPubKeyHash
	fieldMsgReceivedTime
	fieldMsgPayload
	fieldMsgPayloadDigest
	fieldMsgStamp
	fieldMsgScheme
	fieldMsgSignature
)

// Message is the relay's wire record (§3): an encrypted payload addressed
// by pubkey hash, with the stamp proof and server-stamped receive time.
type Message struct {
	SourcePublicKey      []byte
	DestinationPublicKey []byte
	SenderPubKeyHash     []byte
	ReceivedTime         uint64
	Payload              []byte
	PayloadDigest        []byte
	Stamp                *Stamp
	Scheme               Scheme
	Signature            []byte
}

func (m *Message) Marshal() []byte {
	var b []byte
	b = appendBytesField(b, fieldMsgSourcePublicKey, m.SourcePublicKey)
	b = appendBytesField(b, fieldMsgDestinationPublicKey, m.DestinationPublicKey)
	b = appendBytesField(b, fieldMsgSenderPubKeyHash, m.SenderPubKeyHash)
	b = appendVarintField(b, fieldMsgReceivedTime, m.ReceivedTime)
	b = appendBytesField(b, fieldMsgPayload, m.Payload)
	b = appendBytesField(b, fieldMsgPayloadDigest, m.PayloadDigest)
	if m.Stamp != nil {
		b = appendMessageField(b, fieldMsgStamp, m.Stamp.marshal())
	}
	b = appendVarintField(b, fieldMsgScheme, uint64(m.Scheme))
	b = appendBytesField(b, fieldMsgSignature, m.Signature)
	return b
}

func UnmarshalMessage(data []byte) (*Message, error) {
	m := &Message{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fieldMsgSourcePublicKey:
			v, n := consumeBytes(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			m.SourcePublicKey = v
			return n
		case fieldMsgDestinationPublicKey:
			v, n := consumeBytes(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			m.DestinationPublicKey = v
			return n
		case fieldMsgSenderPubKeyHash:
			v, n := consumeBytes(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			m.SenderPubKeyHash = v
			return n
		case fieldMsgReceivedTime:
			v, n := consumeVarint(b)
			if typ != protowire.VarintType || n < 0 {
				return -1
			}
			m.ReceivedTime = v
			return n
		case fieldMsgPayload:
			v, n := consumeBytes(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			m.Payload = v
			return n
		case fieldMsgPayloadDigest:
			v, n := consumeBytes(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			m.PayloadDigest = v
			return n
		case fieldMsgStamp:
			if typ != protowire.BytesType {
				return -1
			}
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return -1
			}
			s, err := unmarshalStamp(raw)
			if err != nil {
				return -1
			}
			m.Stamp = s
			return n
		case fieldMsgScheme:
			v, n := consumeVarint(b)
			if typ != protowire.VarintType || n < 0 {
				return -1
			}
			m.Scheme = Scheme(v)
			return n
		case fieldMsgSignature:
			v, n := consumeBytes(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			m.Signature = v
			return n
		default:
			return 0
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

const fieldMessageSetItems protowire.Number = 1

// MessageSet is a repeated Message record: the PUT body for
// /messages/{addr} and /feeds/{addr}.
type MessageSet struct {
	Messages []*Message
}

func (s *MessageSet) Marshal() []byte {
	var b []byte
	for _, m := range s.Messages {
		b = appendMessageField(b, fieldMessageSetItems, m.Marshal())
	}
	return b
}

func UnmarshalMessageSet(data []byte) (*MessageSet, error) {
	s := &MessageSet{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != fieldMessageSetItems || typ != protowire.BytesType {
			return 0
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return -1
		}
		m, err := UnmarshalMessage(raw)
		if err != nil {
			return -1
		}
		s.Messages = append(s.Messages, m)
		return n
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

const (
	fieldPageItems protowire.Number = 1
)

// MessagePage is the GET response for ranges over /messages and /feeds:
// a page of raw encoded Message records in ascending store order.
type MessagePage struct {
	Messages [][]byte
}

func (p *MessagePage) Marshal() []byte {
	var b []byte
	for _, raw := range p.Messages {
		b = appendMessageField(b, fieldPageItems, raw)
	}
	return b
}

func UnmarshalMessagePage(data []byte) (*MessagePage, error) {
	p := &MessagePage{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != fieldPageItems || typ != protowire.BytesType {
			return 0
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return -1
		}
		cp := make([]byte, len(raw))
		copy(cp, raw)
		p.Messages = append(p.Messages, cp)
		return n
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

const (
	fieldTimedPayloadServerTime protowire.Number = iota + 1
	fieldTimedPayloadPayload
)

// TimedPayload strips message framing for /payloads/{addr}: just the
// server-assigned receive time and the opaque payload bytes.
type TimedPayload struct {
	ServerTime uint64
	Payload    []byte
}

func (t *TimedPayload) marshal() []byte {
	var b []byte
	b = appendVarintField(b, fieldTimedPayloadServerTime, t.ServerTime)
	b = appendBytesField(b, fieldTimedPayloadPayload, t.Payload)
	return b
}

func unmarshalTimedPayload(data []byte) (*TimedPayload, error) {
	t := &TimedPayload{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case fieldTimedPayloadServerTime:
			v, n := consumeVarint(b)
			if typ != protowire.VarintType || n < 0 {
				return -1
			}
			t.ServerTime = v
			return n
		case fieldTimedPayloadPayload:
			v, n := consumeBytes(b)
			if typ != protowire.BytesType || n < 0 {
				return -1
			}
			t.Payload = v
			return n
		default:
			return 0
		}
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

const fieldPayloadPageItems protowire.Number = 1

// PayloadPage is the GET response for /payloads/{addr}.
type PayloadPage struct {
	Items []*TimedPayload
}

func (p *PayloadPage) Marshal() []byte {
	var b []byte
	for _, item := range p.Items {
		b = appendMessageField(b, fieldPayloadPageItems, item.marshal())
	}
	return b
}

func UnmarshalPayloadPage(data []byte) (*PayloadPage, error) {
	p := &PayloadPage{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != fieldPayloadPageItems || typ != protowire.BytesType {
			return 0
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return -1
		}
		item, err := unmarshalTimedPayload(raw)
		if err != nil {
			return -1
		}
		p.Items = append(p.Items, item)
		return n
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
