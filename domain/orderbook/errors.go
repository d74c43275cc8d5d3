package orderbook

import "errors"

// Status is the outcome of applying one event. Only Accepted changes state.
type Status uint8

const (
	Accepted Status = iota
	RejectDuplicateOrder
	RejectUnknownOrder
	RejectInvalidQuantity
	RejectPriceOutOfRange
	RejectInvalidSide
	RejectUnknownKind

	numStatus
)

var statusNames = [numStatus]string{
	Accepted:              "accepted",
	RejectDuplicateOrder:  "duplicate_order",
	RejectUnknownOrder:    "unknown_order",
	RejectInvalidQuantity: "invalid_quantity",
	RejectPriceOutOfRange: "price_out_of_range",
	RejectInvalidSide:     "invalid_side",
	RejectUnknownKind:     "unknown_kind",
}

func (s Status) String() string {
	if s < numStatus {
		return statusNames[s]
	}
	return "unknown"
}

// OK reports whether the event was applied.
func (s Status) OK() bool { return s == Accepted }

// Statuses lists every status value, for pre-registering metric labels.
func Statuses() []Status {
	out := make([]Status, 0, numStatus)
	for s := Status(0); s < numStatus; s++ {
		out = append(out, s)
	}
	return out
}

// ErrInternalInconsistency means the identity map and the level index
// disagree. It is raised with panic, never returned.
var ErrInternalInconsistency = errors.New("orderbook: internal inconsistency")

// ErrInvalidTickRange is returned for a flat index whose range is inverted
// or wider than MaxFlatTicks.
var ErrInvalidTickRange = errors.New("orderbook: invalid tick range")

// ErrUnknownIndex is returned for an unrecognised IndexKind.
var ErrUnknownIndex = errors.New("orderbook: unknown index kind")
