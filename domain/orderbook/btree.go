package orderbook

import (
	"github.com/google/btree"

	"tickbook/infra/memory"
)

const btreeDegree = 32

// BTree keeps price levels in a google/btree ordered by price.
type BTree struct {
	tree   *btree.BTreeG[*PriceLevel]
	probe  PriceLevel
	levels *memory.Pool[PriceLevel]
}

func lessLevel(a, b *PriceLevel) bool { return a.Price < b.Price }

func NewBTree() *BTree {
	return &BTree{
		tree:   btree.NewG(btreeDegree, lessLevel),
		levels: memory.NewPool(func() *PriceLevel { return &PriceLevel{} }, nil),
	}
}

func (t *BTree) contains(int64) bool { return true }

func (t *BTree) find(price int64) *PriceLevel {
	t.probe.Price = price
	lvl, ok := t.tree.Get(&t.probe)
	if !ok {
		return nil
	}
	return lvl
}

func (t *BTree) upsert(price int64) *PriceLevel {
	if lvl := t.find(price); lvl != nil {
		return lvl
	}
	lvl := t.levels.Get()
	lvl.reset(price)
	t.tree.ReplaceOrInsert(lvl)
	return lvl
}

func (t *BTree) remove(lvl *PriceLevel) {
	if _, ok := t.tree.Delete(lvl); ok {
		t.levels.Put(lvl)
	}
}

func (t *BTree) min() *PriceLevel {
	lvl, _ := t.tree.Min()
	return lvl
}

func (t *BTree) max() *PriceLevel {
	lvl, _ := t.tree.Max()
	return lvl
}

func (t *BTree) ascend(fn func(*PriceLevel) bool)  { t.tree.Ascend(fn) }
func (t *BTree) descend(fn func(*PriceLevel) bool) { t.tree.Descend(fn) }
func (t *BTree) len() int                          { return t.tree.Len() }
func (t *BTree) clear()                            { t.tree.Clear(false) }
