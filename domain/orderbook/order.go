package orderbook

import "math"

type Side uint8
type Kind uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

const (
	KindSubmit Kind = iota + 1
	KindAmend
	KindCancel
	// KindClear empties the whole book. It carries no order fields and is
	// recorded so a replayed tape sees the reset where it happened.
	KindClear
)

func (k Kind) String() string {
	switch k {
	case KindSubmit:
		return "submit"
	case KindAmend:
		return "amend"
	case KindCancel:
		return "cancel"
	case KindClear:
		return "clear"
	default:
		return "unknown"
	}
}

// NoAsk is the best ask reported for an empty sell side.
const NoAsk int64 = math.MaxInt64

// Event is one order lifecycle instruction. Price, Qty and Side are read
// for submits, Delta for amends; cancels only need the ID.
type Event struct {
	Kind  Kind
	ID    uint64
	Price int64
	Qty   uint64
	Delta int64
	Side  Side
}

// Meta is the book's record of a live order.
type Meta struct {
	Price int64
	Qty   uint64
	Side  Side
	slot  uint32
}

// Level is a copy of one aggregated price level.
type Level struct {
	Price  int64
	Qty    uint64
	Orders uint32
}

// Top is the best level of one side. An empty side reports zero quantity
// and the side's sentinel price (0 for buys, NoAsk for sells).
type Top struct {
	Price  int64
	Qty    uint64
	Orders uint32
}

// Empty reports whether the side had no liquidity.
func (t Top) Empty() bool { return t.Orders == 0 }

// L1 is the joint best bid/offer.
type L1 struct {
	BestBid int64
	BestAsk int64
	BidQty  uint64
	AskQty  uint64
}

func emptyTop(s Side) Top {
	if s == Buy {
		return Top{}
	}
	return Top{Price: NoAsk}
}

// L1Update is an L1 snapshot stamped by the goroutine that applied the
// mutation behind it.
type L1Update struct {
	Seq  uint64
	Time int64 // unix nanos
	L1
}
