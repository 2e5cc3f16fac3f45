package grpcserver

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"
)

// CodecName is the content-subtype clients must request.
const CodecName = "lobwire"

var errNotMessage = errors.New("grpcserver: value is not a wire message")

// message is implemented by every request and response in this package.
// The encoding is the protobuf wire format written with protowire, so
// the service needs no generated stubs.
type message interface {
	appendWire(b []byte) []byte
	readField(f field) error
}

type wireCodec struct{}

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(message)
	if !ok {
		return nil, errors.Wrapf(errNotMessage, "%T", v)
	}
	return m.appendWire(nil), nil
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(message)
	if !ok {
		return errors.Wrapf(errNotMessage, "%T", v)
	}
	return decode(data, m)
}

func (wireCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(wireCodec{})
}

// field is one decoded key/value. Only varint and length-delimited values
// are kept; other wire types are skipped.
type field struct {
	num   protowire.Number
	typ   protowire.Type
	v     uint64
	bytes []byte
}

func (f field) uint() uint64 { return f.v }
func (f field) sint() int64  { return protowire.DecodeZigZag(f.v) }
func (f field) str() string  { return string(f.bytes) }

func decode(b []byte, m message) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "grpcserver: tag")
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return errors.Wrapf(protowire.ParseError(n), "grpcserver: field %d", num)
		}
		b = b[n:]

		if typ != protowire.VarintType && typ != protowire.BytesType {
			continue
		}
		if err := m.readField(f); err != nil {
			return err
		}
	}
	return nil
}

// Zero scalars are omitted, as proto3 does.

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendSint(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	return appendSintPresent(b, num, v)
}

// appendSintPresent writes v even when zero, for optional fields.
func appendSintPresent(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendUint(b, num, 1)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, m message) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.appendWire(nil))
}
