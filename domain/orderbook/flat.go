package orderbook

import "fmt"

// MaxFlatTicks caps the number of ticks a flat index preallocates.
const MaxFlatTicks = 1 << 22

// FlatWidth returns the number of ticks in [minTick, maxTick], or false when
// the range is inverted or wider than MaxFlatTicks.
func FlatWidth(minTick, maxTick int64) (int, bool) {
	if maxTick < minTick {
		return 0, false
	}
	w := uint64(maxTick) - uint64(minTick)
	if w >= MaxFlatTicks {
		return 0, false
	}
	return int(w) + 1, true
}

// FlatLevels stores one level per tick over a fixed [MinTick, MaxTick]
// range. Emptied levels stay in place; lo and hi bound the active ones and
// are advanced past empty ticks when the edge level drains.
type FlatLevels struct {
	minTick int64
	maxTick int64
	levels  []PriceLevel
	active  int
	lo, hi  int
}

func NewFlatLevels(minTick, maxTick int64) (*FlatLevels, error) {
	width, ok := FlatWidth(minTick, maxTick)
	if !ok {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidTickRange, minTick, maxTick)
	}
	f := &FlatLevels{
		minTick: minTick,
		maxTick: maxTick,
		levels:  make([]PriceLevel, width),
	}
	for i := range f.levels {
		f.levels[i].Price = minTick + int64(i)
	}
	return f, nil
}

func (f *FlatLevels) contains(price int64) bool {
	return price >= f.minTick && price <= f.maxTick
}

func (f *FlatLevels) idx(price int64) int { return int(price - f.minTick) }

func (f *FlatLevels) find(price int64) *PriceLevel {
	if !f.contains(price) {
		return nil
	}
	lvl := &f.levels[f.idx(price)]
	if lvl.Empty() {
		return nil
	}
	return lvl
}

func (f *FlatLevels) upsert(price int64) *PriceLevel {
	if !f.contains(price) {
		return nil
	}
	i := f.idx(price)
	lvl := &f.levels[i]
	if lvl.Empty() {
		if f.active == 0 {
			f.lo, f.hi = i, i
		} else {
			f.lo = min(f.lo, i)
			f.hi = max(f.hi, i)
		}
		f.active++
	}
	return lvl
}

func (f *FlatLevels) remove(lvl *PriceLevel) {
	i := f.idx(lvl.Price)
	lvl.reset(lvl.Price)
	f.active--
	if f.active == 0 {
		f.lo, f.hi = 0, 0
		return
	}
	if i == f.lo {
		for f.levels[f.lo].Empty() {
			f.lo++
		}
	}
	if i == f.hi {
		for f.levels[f.hi].Empty() {
			f.hi--
		}
	}
}

func (f *FlatLevels) min() *PriceLevel {
	if f.active == 0 {
		return nil
	}
	return &f.levels[f.lo]
}

func (f *FlatLevels) max() *PriceLevel {
	if f.active == 0 {
		return nil
	}
	return &f.levels[f.hi]
}

func (f *FlatLevels) ascend(fn func(*PriceLevel) bool) {
	if f.active == 0 {
		return
	}
	for i := f.lo; i <= f.hi; i++ {
		if f.levels[i].Empty() {
			continue
		}
		if !fn(&f.levels[i]) {
			return
		}
	}
}

func (f *FlatLevels) descend(fn func(*PriceLevel) bool) {
	if f.active == 0 {
		return
	}
	for i := f.hi; i >= f.lo; i-- {
		if f.levels[i].Empty() {
			continue
		}
		if !fn(&f.levels[i]) {
			return
		}
	}
}

func (f *FlatLevels) len() int { return f.active }

func (f *FlatLevels) clear() {
	if f.active > 0 {
		for i := f.lo; i <= f.hi; i++ {
			f.levels[i].reset(f.levels[i].Price)
		}
	}
	f.active, f.lo, f.hi = 0, 0, 0
}
