package feed

import (
	"context"
	"math/rand"

	"tickbook/domain/orderbook"
)

type SyntheticConfig struct {
	Seed   int64
	Mid    int64  // starting mid price in ticks
	Spread int64  // ticks between the inner bid and ask
	Depth  int64  // levels quoted on each side of the spread
	MaxQty uint64 // submit quantities are drawn from [1, MaxQty]
	// Live caps the resting orders the generator tracks; above it cancels
	// are favoured.
	Live int
}

func (c *SyntheticConfig) defaults() {
	if c.Mid == 0 {
		c.Mid = 10_000
	}
	if c.Spread <= 0 {
		c.Spread = 2
	}
	if c.Depth <= 0 {
		c.Depth = 20
	}
	if c.MaxQty == 0 {
		c.MaxQty = 100
	}
	if c.Live <= 0 {
		c.Live = 1000
	}
}

// Synthetic is a deterministic market generator: submits around a drifting
// mid, amends and cancels of orders it has submitted, and occasional sweeps
// that cancel the whole inner level of one side. The same seed yields the
// same stream. Submitted orders never cross the opposite side.
type Synthetic struct {
	cfg   SyntheticConfig
	rng   *rand.Rand
	mid   int64
	next  uint64
	live  []synthOrder
	queue []orderbook.Event
}

type synthOrder struct {
	id    uint64
	price int64
	qty   uint64
	side  orderbook.Side
}

func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	cfg.defaults()
	return &Synthetic{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
		mid: cfg.Mid,
	}
}

// Next never ends on its own; bound it with Limit or ctx.
func (s *Synthetic) Next(ctx context.Context) (orderbook.Event, error) {
	if err := ctx.Err(); err != nil {
		return orderbook.Event{}, err
	}
	if len(s.queue) > 0 {
		ev := s.queue[0]
		s.queue = s.queue[1:]
		return ev, nil
	}

	r := s.rng.Intn(100)
	switch {
	case len(s.live) == 0 || (len(s.live) < s.cfg.Live && r < 50):
		return s.submit(), nil
	case r < 70:
		return s.amend(), nil
	case r < 97 || len(s.live) >= s.cfg.Live:
		return s.cancel(s.rng.Intn(len(s.live))), nil
	default:
		s.sweep()
		return s.Next(ctx)
	}
}

func (s *Synthetic) submit() orderbook.Event {
	if s.rng.Intn(10) == 0 {
		s.mid += int64(s.rng.Intn(3) - 1)
	}
	side := orderbook.Side(s.rng.Intn(2))
	off := s.cfg.Spread/2 + s.rng.Int63n(s.cfg.Depth)
	price := s.mid - off - 1
	if side == orderbook.Sell {
		price = s.mid + off + 1
	}
	price = s.noCross(side, price)

	s.next++
	o := synthOrder{
		id:    s.next,
		price: price,
		qty:   1 + uint64(s.rng.Int63n(int64(s.cfg.MaxQty))),
		side:  side,
	}
	s.live = append(s.live, o)
	return orderbook.Event{Kind: orderbook.KindSubmit, ID: o.id, Price: o.price, Qty: o.qty, Side: o.side}
}

// noCross pulls price back behind the opposite side's best resting order.
func (s *Synthetic) noCross(side orderbook.Side, price int64) int64 {
	for _, o := range s.live {
		if o.side == side {
			continue
		}
		if side == orderbook.Buy && price >= o.price {
			price = o.price - 1
		}
		if side == orderbook.Sell && price <= o.price {
			price = o.price + 1
		}
	}
	return price
}

func (s *Synthetic) amend() orderbook.Event {
	i := s.rng.Intn(len(s.live))
	o := &s.live[i]
	delta := s.rng.Int63n(int64(s.cfg.MaxQty)) - int64(s.cfg.MaxQty)/2
	if delta == 0 {
		delta = 1
	}
	ev := orderbook.Event{Kind: orderbook.KindAmend, ID: o.id, Delta: delta}
	if delta < 0 && uint64(-delta) >= o.qty {
		s.remove(i)
		return ev
	}
	o.qty = uint64(int64(o.qty) + delta)
	return ev
}

func (s *Synthetic) cancel(i int) orderbook.Event {
	id := s.live[i].id
	s.remove(i)
	return orderbook.Event{Kind: orderbook.KindCancel, ID: id}
}

// sweep queues cancels for every order at the best price of a random side.
func (s *Synthetic) sweep() {
	side := orderbook.Side(s.rng.Intn(2))
	best, found := int64(0), false
	for _, o := range s.live {
		if o.side != side {
			continue
		}
		if !found || (side == orderbook.Buy && o.price > best) || (side == orderbook.Sell && o.price < best) {
			best, found = o.price, true
		}
	}
	if !found {
		s.queue = append(s.queue, s.submit())
		return
	}
	for i := 0; i < len(s.live); {
		o := s.live[i]
		if o.side == side && o.price == best {
			s.queue = append(s.queue, s.cancel(i))
			continue
		}
		i++
	}
}

// remove swaps the last live order into slot i.
func (s *Synthetic) remove(i int) {
	last := len(s.live) - 1
	if i != last {
		s.live[i] = s.live[last]
	}
	s.live = s.live[:last]
}

// Live returns the number of orders the generator believes are resting.
func (s *Synthetic) Live() int { return len(s.live) }
