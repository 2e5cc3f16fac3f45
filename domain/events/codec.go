package events

import (
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/encoding/protowire"

	"lob/domain/orderbook"
)

// Field numbers of the wire message. Signed values use zigzag (sint64);
// the notional is a decimal string.
const (
	fieldSeq        protowire.Number = 1
	fieldTime       protowire.Number = 2
	fieldType       protowire.Number = 3
	fieldOrderID    protowire.Number = 4
	fieldUserID     protowire.Number = 5
	fieldSide       protowire.Number = 6
	fieldPrice      protowire.Number = 7
	fieldQuantity   protowire.Number = 8
	fieldRemaining  protowire.Number = 9
	fieldRequested  protowire.Number = 10
	fieldFilled     protowire.Number = 11
	fieldNotional   protowire.Number = 12
	fieldInstrument protowire.Number = 13
)

var ErrMalformed = errors.New("events: malformed message")

// Marshal encodes e as a protobuf message. Zero fields are omitted.
func Marshal(e Event) []byte {
	b := make([]byte, 0, 64)
	b = appendUvarint(b, fieldSeq, e.Seq)
	b = appendUvarint(b, fieldTime, uint64(e.Time))
	b = appendUvarint(b, fieldType, uint64(e.Type))
	b = appendUvarint(b, fieldOrderID, e.OrderID)
	if e.UserID != "" {
		b = protowire.AppendTag(b, fieldUserID, protowire.BytesType)
		b = protowire.AppendString(b, e.UserID)
	}
	b = appendUvarint(b, fieldSide, uint64(e.Side))
	b = appendSint(b, fieldPrice, e.Price)
	b = appendSint(b, fieldQuantity, e.Quantity)
	b = appendSint(b, fieldRemaining, e.Remaining)
	b = appendSint(b, fieldRequested, e.Requested)
	b = appendSint(b, fieldFilled, e.Filled)
	if !e.Notional.IsZero() {
		b = protowire.AppendTag(b, fieldNotional, protowire.BytesType)
		b = protowire.AppendString(b, e.Notional.String())
	}
	if e.Instrument != "" {
		b = protowire.AppendTag(b, fieldInstrument, protowire.BytesType)
		b = protowire.AppendString(b, e.Instrument)
	}
	return b
}

func appendUvarint(b []byte, num protowire.Number, v uint64) []byte {
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
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

// Unmarshal decodes a message produced by Marshal. Unknown fields are
// skipped so newer producers stay readable.
func Unmarshal(b []byte) (Event, error) {
	var e Event
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Event{}, errors.Wrap(ErrMalformed, protowire.ParseError(n).Error())
		}
		b = b[n:]

		switch {
		case typ == protowire.BytesType &&
			(num == fieldUserID || num == fieldInstrument || num == fieldNotional):
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return Event{}, errors.Wrapf(ErrMalformed, "field %d: %v", num, protowire.ParseError(n))
			}
			switch num {
			case fieldUserID:
				e.UserID = s
			case fieldInstrument:
				e.Instrument = s
			case fieldNotional:
				d, err := decimal.NewFromString(s)
				if err != nil {
					return Event{}, errors.Wrapf(ErrMalformed, "notional %q", s)
				}
				e.Notional = d
			}
			b = b[n:]

		case typ == protowire.VarintType && num >= fieldSeq && num <= fieldFilled:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Event{}, errors.Wrapf(ErrMalformed, "field %d: %v", num, protowire.ParseError(n))
			}
			e.set(num, v)
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Event{}, errors.Wrapf(ErrMalformed, "field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return e, nil
}

func (e *Event) set(num protowire.Number, v uint64) {
	switch num {
	case fieldSeq:
		e.Seq = v
	case fieldTime:
		e.Time = int64(v)
	case fieldType:
		e.Type = Type(v)
	case fieldOrderID:
		e.OrderID = v
	case fieldSide:
		e.Side = orderbook.Side(v)
	case fieldPrice:
		e.Price = protowire.DecodeZigZag(v)
	case fieldQuantity:
		e.Quantity = protowire.DecodeZigZag(v)
	case fieldRemaining:
		e.Remaining = protowire.DecodeZigZag(v)
	case fieldRequested:
		e.Requested = protowire.DecodeZigZag(v)
	case fieldFilled:
		e.Filled = protowire.DecodeZigZag(v)
	}
}
