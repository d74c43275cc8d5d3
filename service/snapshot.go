package service

import (
	"time"

	"tickbook/domain/orderbook"
)

// Snapshot is the book state published after each owner batch. It is never
// mutated once published.
type Snapshot struct {
	Seq       uint64
	Time      time.Time
	Bid       orderbook.Top
	Ask       orderbook.Top
	Orders    int
	BidLevels int
	AskLevels int
}

func (s *Snapshot) L1() orderbook.L1 {
	return orderbook.L1{
		BestBid: s.Bid.Price,
		BestAsk: s.Ask.Price,
		BidQty:  s.Bid.Qty,
		AskQty:  s.Ask.Qty,
	}
}

func (s *Snapshot) Top(side orderbook.Side) orderbook.Top {
	switch side {
	case orderbook.Buy:
		return s.Bid
	case orderbook.Sell:
		return s.Ask
	}
	return orderbook.Top{}
}
