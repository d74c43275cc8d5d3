package orderbook

import (
	"fmt"
	"math"
	"strings"
)

// IndexKind selects the storage behind each side of a LevelIndex.
type IndexKind uint8

const (
	IndexRBTree IndexKind = iota
	IndexBTree
	IndexFlat
)

func (k IndexKind) String() string {
	switch k {
	case IndexRBTree:
		return "rbtree"
	case IndexBTree:
		return "btree"
	case IndexFlat:
		return "flat"
	default:
		return fmt.Sprintf("IndexKind(%d)", uint8(k))
	}
}

// ParseIndexKind maps a config name to an IndexKind.
func ParseIndexKind(s string) (IndexKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rbtree", "tree":
		return IndexRBTree, nil
	case "btree":
		return IndexBTree, nil
	case "flat", "array":
		return IndexFlat, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownIndex, s)
}

// levelTree is the ordered price -> level storage of one side. upsert
// returns nil for prices the storage cannot hold; remove is only called on
// levels that have just become empty.
type levelTree interface {
	contains(price int64) bool
	find(price int64) *PriceLevel
	upsert(price int64) *PriceLevel
	remove(lvl *PriceLevel)
	min() *PriceLevel
	max() *PriceLevel
	ascend(fn func(*PriceLevel) bool)
	descend(fn func(*PriceLevel) bool)
	len() int
	clear()
}

type sideIndex struct {
	side Side
	tree levelTree
	best *PriceLevel
}

func (s *sideIndex) better(a, b int64) bool {
	if s.side == Buy {
		return a > b
	}
	return a < b
}

func (s *sideIndex) pickBest() *PriceLevel {
	if s.side == Buy {
		return s.tree.max()
	}
	return s.tree.min()
}

func (s *sideIndex) walk(fn func(*PriceLevel) bool) {
	if s.side == Buy {
		s.tree.descend(fn)
	} else {
		s.tree.ascend(fn)
	}
}

// LevelIndex aggregates quantity and order count per (price, side) and
// keeps the best level of each side cached, so Best is O(1).
//
// LevelIndex is not safe for concurrent use.
type LevelIndex struct {
	kind  IndexKind
	sides [2]sideIndex
}

// NewLevelIndex builds an index. The tick range is only used by IndexFlat.
func NewLevelIndex(kind IndexKind, minTick, maxTick int64) (*LevelIndex, error) {
	x := &LevelIndex{kind: kind}
	for _, side := range [...]Side{Buy, Sell} {
		var tree levelTree
		switch kind {
		case IndexRBTree:
			tree = NewRBTree()
		case IndexBTree:
			tree = NewBTree()
		case IndexFlat:
			f, err := NewFlatLevels(minTick, maxTick)
			if err != nil {
				return nil, err
			}
			tree = f
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnknownIndex, kind)
		}
		x.sides[side] = sideIndex{side: side, tree: tree}
	}
	return x, nil
}

func (x *LevelIndex) Kind() IndexKind { return x.kind }

// Accepts reports whether price can be stored on either side.
func (x *LevelIndex) Accepts(price int64) bool {
	return x.sides[Buy].tree.contains(price)
}

// AddQuantity rests one order of qty at (price, side), creating the level if
// needed, and returns the order's slot in that level.
func (x *LevelIndex) AddQuantity(price int64, side Side, qty uint64) uint32 {
	s := &x.sides[side]
	lvl := s.tree.upsert(price)
	if lvl == nil {
		panic(fmt.Errorf("%w: add %s %d: price outside index", ErrInternalInconsistency, side, price))
	}
	slot := lvl.add(qty)
	if s.best == nil || s.better(price, s.best.Price) {
		s.best = lvl
	}
	return slot
}

// RemoveQuantity takes the order in slot (holding qty) off (price, side) and
// erases the level once its last order is gone.
func (x *LevelIndex) RemoveQuantity(price int64, side Side, slot uint32, qty uint64) {
	s := &x.sides[side]
	lvl := s.tree.find(price)
	if lvl == nil {
		panic(fmt.Errorf("%w: remove %s %d: no level", ErrInternalInconsistency, side, price))
	}
	if !lvl.remove(slot, qty) {
		panic(fmt.Errorf("%w: remove %s %d: slot %d does not hold qty %d", ErrInternalInconsistency, side, price, slot, qty))
	}
	if !lvl.Empty() {
		return
	}
	wasBest := lvl == s.best
	s.tree.remove(lvl)
	if wasBest {
		s.best = s.pickBest()
	}
}

// AdjustQuantity moves the quantity of the order in slot by delta. The
// order count is unchanged; the caller guarantees the order stays positive.
func (x *LevelIndex) AdjustQuantity(price int64, side Side, slot uint32, delta int64) {
	lvl := x.sides[side].tree.find(price)
	if lvl == nil {
		panic(fmt.Errorf("%w: adjust %s %d: no level", ErrInternalInconsistency, side, price))
	}
	if !lvl.adjust(slot, delta) {
		panic(fmt.Errorf("%w: adjust %s %d: slot %d rejects delta %d", ErrInternalInconsistency, side, price, slot, delta))
	}
}

// Best returns the highest bid or lowest ask level.
func (x *LevelIndex) Best(side Side) (Level, bool) {
	b := x.sides[side].best
	if b == nil {
		return Level{}, false
	}
	return b.level(), true
}

func (x *LevelIndex) bestPrice(side Side) (int64, bool) {
	b := x.sides[side].best
	if b == nil {
		return 0, false
	}
	return b.Price, true
}

// Headroom is the quantity that can still be added at (price, side) before
// the level total overflows.
func (x *LevelIndex) Headroom(price int64, side Side) uint64 {
	lvl := x.sides[side].tree.find(price)
	if lvl == nil {
		return math.MaxUint64
	}
	return math.MaxUint64 - lvl.TotalQty
}

// LevelAt returns the aggregate at (price, side) if any order rests there.
func (x *LevelIndex) LevelAt(price int64, side Side) (Level, bool) {
	lvl := x.sides[side].tree.find(price)
	if lvl == nil || lvl.Empty() {
		return Level{}, false
	}
	return lvl.level(), true
}

// Depth returns up to n levels of side, best first. n <= 0 returns all.
func (x *LevelIndex) Depth(side Side, n int) []Level {
	s := &x.sides[side]
	size := s.tree.len()
	if n > 0 && n < size {
		size = n
	}
	out := make([]Level, 0, size)
	s.walk(func(lvl *PriceLevel) bool {
		if lvl.Empty() {
			return true
		}
		out = append(out, lvl.level())
		return n <= 0 || len(out) < n
	})
	return out
}

// Levels returns the number of active levels on side.
func (x *LevelIndex) Levels(side Side) int { return x.sides[side].tree.len() }

// Clear drops every level on both sides.
func (x *LevelIndex) Clear() {
	for i := range x.sides {
		x.sides[i].tree.clear()
		x.sides[i].best = nil
	}
}
