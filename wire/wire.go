// Package wire implements the length-delimited, varint-tagged record codecs
// (C1) shared by the keyserver and relay: the auth-wrapper envelope, address
// metadata peer lists, messages, and BIP70-derived payment records. Every
// codec is hand-rolled over google.golang.org/protobuf/encoding/protowire's
// primitives rather than generated from a .proto file, the same primitives
// the teacher's bitcoin/indexer.go uses to frame UTXO export records.
package wire

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned whenever a record's tag/length framing cannot be
// parsed; it never wraps the underlying offset so callers can't infer
// internal buffer layout from error text.
var ErrMalformed = errors.New("wire: malformed record")

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendMessageField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// fieldVisitor is called for each top-level field with its number, wire type
// and raw remaining buffer (positioned just after the tag). It must return
// the number of bytes consumed for the field's value, or -1 on error.
type fieldVisitor func(num protowire.Number, typ protowire.Type, b []byte) int

// decodeFields walks b tag-by-tag, dispatching to visit for each field and
// skipping anything visit declines (returns 0 for) via protowire's own
// field-value skipper.
func decodeFields(b []byte, visit fieldVisitor) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ErrMalformed
		}
		b = b[n:]

		consumed := visit(num, typ, b)
		if consumed < 0 {
			return ErrMalformed
		}
		if consumed == 0 {
			skip := protowire.ConsumeFieldValue(num, typ, b)
			if skip < 0 {
				return ErrMalformed
			}
			consumed = skip
		}
		b = b[consumed:]
	}
	return nil
}

func consumeBytes(b []byte) ([]byte, int) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, -1
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, n
}

func consumeString(b []byte) (string, int) {
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return "", -1
	}
	return v, n
}

func consumeVarint(b []byte) (uint64, int) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, -1
	}
	return v, n
}
