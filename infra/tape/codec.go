package tape

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"tickbook/domain/orderbook"
)

// Event payload fields. Signed values are zigzag encoded; zero fields are
// omitted.
const (
	fieldID    protowire.Number = 1
	fieldPrice protowire.Number = 2
	fieldQty   protowire.Number = 3
	fieldDelta protowire.Number = 4
	fieldSide  protowire.Number = 5
	fieldKind  protowire.Number = 6
)

var errBadField = errors.New("tape: unexpected field type")

// AppendEvent appends the protobuf wire encoding of ev to b.
func AppendEvent(b []byte, ev orderbook.Event) []byte {
	b = appendVarint(b, fieldKind, uint64(ev.Kind))
	b = appendVarint(b, fieldID, ev.ID)
	b = appendVarint(b, fieldPrice, protowire.EncodeZigZag(ev.Price))
	b = appendVarint(b, fieldQty, ev.Qty)
	b = appendVarint(b, fieldDelta, protowire.EncodeZigZag(ev.Delta))
	b = appendVarint(b, fieldSide, uint64(ev.Side))
	return b
}

// MarshalEvent encodes ev into a fresh buffer.
func MarshalEvent(ev orderbook.Event) []byte {
	return AppendEvent(make([]byte, 0, 32), ev)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// UnmarshalEvent decodes a payload written by AppendEvent. Unknown fields
// are skipped.
func UnmarshalEvent(b []byte) (orderbook.Event, error) {
	var ev orderbook.Event
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ev, fmt.Errorf("tape: decode tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return ev, fmt.Errorf("tape: skip field %d: %w", num, protowire.ParseError(n))
			}
			if num <= fieldKind {
				return ev, fmt.Errorf("%w: field %d has type %d", errBadField, num, typ)
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return ev, fmt.Errorf("tape: decode field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldID:
			ev.ID = v
		case fieldPrice:
			ev.Price = protowire.DecodeZigZag(v)
		case fieldQty:
			ev.Qty = v
		case fieldDelta:
			ev.Delta = protowire.DecodeZigZag(v)
		case fieldSide:
			ev.Side = orderbook.Side(v)
		case fieldKind:
			ev.Kind = orderbook.Kind(v)
		}
	}
	return ev, nil
}
