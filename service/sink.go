package service

import (
	"github.com/rs/zerolog"

	"tickbook/domain/orderbook"
)

// Sink receives top-of-book updates in sequence order on the notifier
// goroutine. A slow sink delays later updates; once the notify ring fills
// further updates are dropped.
type Sink interface {
	Publish(orderbook.L1Update) error
}

type SinkFunc func(orderbook.L1Update) error

func (f SinkFunc) Publish(u orderbook.L1Update) error { return f(u) }

// LogSink writes every update at debug level.
type LogSink struct {
	Log zerolog.Logger
}

func (s LogSink) Publish(u orderbook.L1Update) error {
	s.Log.Debug().
		Uint64("seq", u.Seq).
		Int64("best_bid", u.BestBid).
		Uint64("bid_qty", u.BidQty).
		Int64("best_ask", u.BestAsk).
		Uint64("ask_qty", u.AskQty).
		Msg("l1")
	return nil
}
