package orderbook

import "fmt"

// TopOfBookFunc receives the post-mutation L1 when a mutation touched the
// best level of the side it changed.
type TopOfBookFunc func(L1)

// Config selects the level storage of a book.
type Config struct {
	Index          IndexKind
	MinTick        int64 // IndexFlat only
	MaxTick        int64 // IndexFlat only
	ExpectedOrders int   // presizes the id map
}

// OrderBook is single-writer and deterministic. It keeps the id -> order
// map and the per-side level index in step and never hands out pointers
// into either.
type OrderBook struct {
	levels *LevelIndex
	orders map[uint64]Meta
	onTop  TopOfBookFunc
}

// NewOrderBook creates an empty red-black tree backed book.
func NewOrderBook() *OrderBook {
	b, _ := New(Config{Index: IndexRBTree})
	return b
}

func New(cfg Config) (*OrderBook, error) {
	levels, err := NewLevelIndex(cfg.Index, cfg.MinTick, cfg.MaxTick)
	if err != nil {
		return nil, err
	}
	return &OrderBook{
		levels: levels,
		orders: make(map[uint64]Meta, max(cfg.ExpectedOrders, 0)),
	}, nil
}

// OnTopOfBookChange registers fn, replacing any previous callback. fn runs
// on the caller's goroutine before the mutating call returns and must not
// call back into the book. A nil fn disables notification.
func (b *OrderBook) OnTopOfBookChange(fn TopOfBookFunc) {
	b.onTop = fn
}

// Apply dispatches ev and reports why it was rejected, if it was.
func (b *OrderBook) Apply(ev Event) Status {
	switch ev.Kind {
	case KindSubmit:
		return b.submit(ev.ID, ev.Price, ev.Qty, ev.Side)
	case KindAmend:
		return b.amend(ev.ID, ev.Delta)
	case KindCancel:
		return b.cancel(ev.ID)
	case KindClear:
		b.Clear()
		return Accepted
	default:
		return RejectUnknownKind
	}
}

// Submit rests a new order. It fails without side effects for a zero
// quantity, an id that is already live, or a price the index cannot hold.
func (b *OrderBook) Submit(id uint64, price int64, qty uint64, side Side) bool {
	return b.submit(id, price, qty, side) == Accepted
}

// Amend changes the quantity of a live order by a signed delta. A result
// of zero or less cancels the order.
func (b *OrderBook) Amend(id uint64, delta int64) bool {
	return b.amend(id, delta) == Accepted
}

// Cancel removes a live order.
func (b *OrderBook) Cancel(id uint64) bool {
	return b.cancel(id) == Accepted
}

func (b *OrderBook) submit(id uint64, price int64, qty uint64, side Side) Status {
	if qty == 0 {
		return RejectInvalidQuantity
	}
	if side > Sell {
		return RejectInvalidSide
	}
	if _, live := b.orders[id]; live {
		return RejectDuplicateOrder
	}
	if !b.levels.Accepts(price) {
		return RejectPriceOutOfRange
	}
	if qty > b.levels.Headroom(price, side) {
		return RejectInvalidQuantity
	}

	before, had := b.levels.bestPrice(side)
	slot := b.levels.AddQuantity(price, side, qty)
	b.orders[id] = Meta{Price: price, Qty: qty, Side: side, slot: slot}
	b.maybeNotify(side, price, before, had)
	return Accepted
}

func (b *OrderBook) amend(id uint64, delta int64) Status {
	m, ok := b.orders[id]
	if !ok {
		return RejectUnknownOrder
	}
	if delta == 0 {
		return Accepted
	}

	var qty uint64
	if delta < 0 {
		// -(delta+1)+1 keeps math.MinInt64 representable.
		d := uint64(-(delta + 1)) + 1
		if d >= m.Qty {
			return b.cancel(id)
		}
		qty = m.Qty - d
	} else {
		qty = m.Qty + uint64(delta)
		if qty < m.Qty || uint64(delta) > b.levels.Headroom(m.Price, m.Side) {
			return RejectInvalidQuantity
		}
	}

	before, had := b.levels.bestPrice(m.Side)
	b.levels.AdjustQuantity(m.Price, m.Side, m.slot, delta)
	m.Qty = qty
	b.orders[id] = m
	b.maybeNotify(m.Side, m.Price, before, had)
	return Accepted
}

func (b *OrderBook) cancel(id uint64) Status {
	m, ok := b.orders[id]
	if !ok {
		return RejectUnknownOrder
	}

	before, had := b.levels.bestPrice(m.Side)
	b.levels.RemoveQuantity(m.Price, m.Side, m.slot, m.Qty)
	delete(b.orders, id)
	b.maybeNotify(m.Side, m.Price, before, had)
	return Accepted
}

// maybeNotify fires once when the changed price was the side's best level
// before the mutation or is the best level after it. Deeper changes are
// invisible at L1 and stay silent. The opposite side is never consulted:
// a mutation cannot move its best.
func (b *OrderBook) maybeNotify(side Side, price int64, before int64, had bool) {
	if b.onTop == nil {
		return
	}
	if had && before == price {
		b.onTop(b.SnapshotL1())
		return
	}
	if after, ok := b.levels.bestPrice(side); ok && after == price {
		b.onTop(b.SnapshotL1())
	}
}

// TopOfBook returns the best level of side, or the side's empty sentinel.
func (b *OrderBook) TopOfBook(side Side) Top {
	if side > Sell {
		return Top{}
	}
	lvl, ok := b.levels.Best(side)
	if !ok {
		return emptyTop(side)
	}
	return Top{Price: lvl.Price, Qty: lvl.Qty, Orders: lvl.Orders}
}

// SnapshotL1 combines both sides' TopOfBook.
func (b *OrderBook) SnapshotL1() L1 {
	bid := b.TopOfBook(Buy)
	ask := b.TopOfBook(Sell)
	return L1{
		BestBid: bid.Price,
		BestAsk: ask.Price,
		BidQty:  bid.Qty,
		AskQty:  ask.Qty,
	}
}

// PriceLevel returns the aggregate resting at (price, side).
func (b *OrderBook) PriceLevel(price int64, side Side) (Level, bool) {
	if side > Sell {
		return Level{}, false
	}
	return b.levels.LevelAt(price, side)
}

// Depth returns up to n levels of side, best first. n <= 0 returns all.
func (b *OrderBook) Depth(side Side, n int) []Level {
	if side > Sell {
		return nil
	}
	return b.levels.Depth(side, n)
}

// Levels returns the number of active price levels on side.
func (b *OrderBook) Levels(side Side) int {
	if side > Sell {
		return 0
	}
	return b.levels.Levels(side)
}

// Order returns a copy of a live order's metadata.
func (b *OrderBook) Order(id uint64) (Meta, bool) {
	m, ok := b.orders[id]
	return m, ok
}

// TotalOrders returns the number of live orders.
func (b *OrderBook) TotalOrders() int { return len(b.orders) }

// IndexKind reports the level storage in use.
func (b *OrderBook) IndexKind() IndexKind { return b.levels.Kind() }

// Clear drops every order and level. It is a reset, not a market event, so
// no callback fires.
func (b *OrderBook) Clear() {
	b.levels.Clear()
	clear(b.orders)
}

type levelKey struct {
	side  Side
	price int64
}

// Verify recomputes every level from the live orders and compares it with
// the index, including the cached best levels. It walks the whole book and
// is meant for tests and offline checks.
func (b *OrderBook) Verify() error {
	want := make(map[levelKey]Level, len(b.orders))
	for id, m := range b.orders {
		k := levelKey{m.Side, m.Price}
		lvl := want[k]
		lvl.Price = m.Price
		lvl.Qty += m.Qty
		lvl.Orders++
		want[k] = lvl

		q, ok := b.slotQty(m)
		if !ok || q != m.Qty {
			return fmt.Errorf("%w: order %d slot %d holds %d, meta %d", ErrInternalInconsistency, id, m.slot, q, m.Qty)
		}
	}

	seen := 0
	for _, side := range [...]Side{Buy, Sell} {
		depth := b.levels.Depth(side, 0)
		for i, got := range depth {
			if i > 0 && !b.levels.sides[side].better(depth[i-1].Price, got.Price) {
				return fmt.Errorf("%w: %s levels out of order at %d", ErrInternalInconsistency, side, got.Price)
			}
			exp, ok := want[levelKey{side, got.Price}]
			if !ok || exp != got {
				return fmt.Errorf("%w: %s level %d is %+v, orders say %+v", ErrInternalInconsistency, side, got.Price, got, exp)
			}
			seen++
		}
		best, ok := b.levels.Best(side)
		switch {
		case len(depth) == 0 && ok:
			return fmt.Errorf("%w: %s best %d on empty side", ErrInternalInconsistency, side, best.Price)
		case len(depth) > 0 && (!ok || best != depth[0]):
			return fmt.Errorf("%w: %s cached best %+v, walk says %+v", ErrInternalInconsistency, side, best, depth[0])
		}
	}
	if seen != len(want) {
		return fmt.Errorf("%w: index has %d levels, orders imply %d", ErrInternalInconsistency, seen, len(want))
	}
	return nil
}

func (b *OrderBook) slotQty(m Meta) (uint64, bool) {
	lvl := b.levels.sides[m.Side].tree.find(m.Price)
	if lvl == nil {
		return 0, false
	}
	q, ok := lvl.slots.At(m.slot)
	if !ok {
		return 0, false
	}
	return *q, true
}
