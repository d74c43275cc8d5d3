package orderbook

import "tickbook/infra/memory"

// PriceLevel aggregates the live orders resting at one price on one side.
// Every order owns a slot in the level's arena holding its current
// quantity, so the identity map stores a slot index rather than a pointer.
type PriceLevel struct {
	Price    int64
	TotalQty uint64
	slots    memory.Arena[uint64]
}

// OrderCount is the number of live orders at this level.
func (p *PriceLevel) OrderCount() uint32 { return uint32(p.slots.Len()) }

// Empty reports whether no live order rests here.
func (p *PriceLevel) Empty() bool { return p.slots.Len() == 0 }

func (p *PriceLevel) add(qty uint64) uint32 {
	p.TotalQty += qty
	return p.slots.Alloc(qty)
}

// remove frees slot and subtracts qty. It reports false when the slot is not
// live or holds a different quantity.
func (p *PriceLevel) remove(slot uint32, qty uint64) bool {
	q, ok := p.slots.At(slot)
	if !ok || *q != qty || p.TotalQty < qty {
		return false
	}
	p.slots.Free(slot)
	p.TotalQty -= qty
	return true
}

// adjust moves the quantity of one slot by delta. The resulting slot
// quantity must stay positive.
func (p *PriceLevel) adjust(slot uint32, delta int64) bool {
	q, ok := p.slots.At(slot)
	if !ok {
		return false
	}
	if delta < 0 {
		d := uint64(-delta)
		if d >= *q || d > p.TotalQty {
			return false
		}
		*q -= d
		p.TotalQty -= d
		return true
	}
	*q += uint64(delta)
	p.TotalQty += uint64(delta)
	return true
}

func (p *PriceLevel) reset(price int64) {
	p.Price = price
	p.TotalQty = 0
	p.slots.Reset()
}

func (p *PriceLevel) level() Level {
	return Level{Price: p.Price, Qty: p.TotalQty, Orders: p.OrderCount()}
}
