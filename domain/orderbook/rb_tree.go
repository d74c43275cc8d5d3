package orderbook

import "tickbook/infra/memory"

type color uint8

const (
	red color = iota
	black
)

// Child directions. Every fixup case is written once for dir and mirrored
// through 1-dir.
const (
	left  = 0
	right = 1
)

type node struct {
	key    int64
	level  PriceLevel
	color  color
	child  [2]*node
	parent *node
}

// RBTree is a red-black tree of price levels keyed by price. Levels live
// inside their nodes and a node keeps its identity for as long as its price
// is in the tree, so *PriceLevel handles stay valid across rebalancing.
// Deleted nodes go back to a pool together with their slot arenas.
type RBTree struct {
	root  *node
	nil   *node // black sentinel shared by every leaf
	size  int
	nodes *memory.Pool[node]
}

// resetNode unlinks n but keeps its level, whose slot arena is reused by
// the next upsert.
func resetNode(n *node) {
	n.child = [2]*node{}
	n.parent = nil
}

func NewRBTree() *RBTree {
	sentinel := &node{color: black}
	return &RBTree{
		root:  sentinel,
		nil:   sentinel,
		nodes: memory.NewPool(func() *node { return &node{} }, resetNode),
	}
}

func (t *RBTree) Size() int { return t.size }

func (t *RBTree) FindLevel(price int64) *PriceLevel {
	if n := t.search(price); n != t.nil {
		return &n.level
	}
	return nil
}

// UpsertLevel returns the level at price, creating an empty one if absent.
func (t *RBTree) UpsertLevel(price int64) *PriceLevel {
	parent, dir := t.nil, left
	for n := t.root; n != t.nil; {
		if price == n.key {
			return &n.level
		}
		parent = n
		dir = left
		if price > n.key {
			dir = right
		}
		n = n.child[dir]
	}

	z := t.nodes.Get()
	z.key = price
	z.level.reset(price)
	z.color = red
	z.child = [2]*node{t.nil, t.nil}
	z.parent = parent
	if parent == t.nil {
		t.root = z
	} else {
		parent.child[dir] = z
	}
	t.insertFixup(z)
	t.size++
	return &z.level
}

func (t *RBTree) DeleteLevel(price int64) bool {
	z := t.search(price)
	if z == t.nil {
		return false
	}
	t.delete(z)
	t.size--
	t.nodes.Put(z)
	return true
}

func (t *RBTree) MinLevel() *PriceLevel { return t.edgeLevel(left) }
func (t *RBTree) MaxLevel() *PriceLevel { return t.edgeLevel(right) }

func (t *RBTree) ForEachAscending(fn func(*PriceLevel) bool)  { t.walk(left, fn) }
func (t *RBTree) ForEachDescending(fn func(*PriceLevel) bool) { t.walk(right, fn) }

// Clear drops every level. Nodes are left to the garbage collector.
func (t *RBTree) Clear() {
	t.root = t.nil
	t.size = 0
}

// levelTree adapter.

func (t *RBTree) contains(int64) bool               { return true }
func (t *RBTree) find(price int64) *PriceLevel      { return t.FindLevel(price) }
func (t *RBTree) upsert(price int64) *PriceLevel    { return t.UpsertLevel(price) }
func (t *RBTree) remove(lvl *PriceLevel)            { t.DeleteLevel(lvl.Price) }
func (t *RBTree) min() *PriceLevel                  { return t.MinLevel() }
func (t *RBTree) max() *PriceLevel                  { return t.MaxLevel() }
func (t *RBTree) ascend(fn func(*PriceLevel) bool)  { t.ForEachAscending(fn) }
func (t *RBTree) descend(fn func(*PriceLevel) bool) { t.ForEachDescending(fn) }
func (t *RBTree) len() int                          { return t.size }
func (t *RBTree) clear()                            { t.Clear() }

/******************** Navigation ********************/

func (t *RBTree) search(price int64) *node {
	n := t.root
	for n != t.nil && n.key != price {
		if price < n.key {
			n = n.child[left]
		} else {
			n = n.child[right]
		}
	}
	return n
}

// extreme follows dir from n to the end of the subtree.
func (t *RBTree) extreme(n *node, dir int) *node {
	if n == t.nil {
		return t.nil
	}
	for n.child[dir] != t.nil {
		n = n.child[dir]
	}
	return n
}

func (t *RBTree) edgeLevel(dir int) *PriceLevel {
	if n := t.extreme(t.root, dir); n != t.nil {
		return &n.level
	}
	return nil
}

// step returns the in-order neighbour of n: the successor when from is
// left, the predecessor when from is right.
func (t *RBTree) step(n *node, from int) *node {
	to := 1 - from
	if n.child[to] != t.nil {
		return t.extreme(n.child[to], from)
	}
	p := n.parent
	for p != t.nil && n == p.child[to] {
		n, p = p, p.parent
	}
	return p
}

func (t *RBTree) walk(from int, fn func(*PriceLevel) bool) {
	for n := t.extreme(t.root, from); n != t.nil; n = t.step(n, from) {
		if !fn(&n.level) {
			return
		}
	}
}

/******************** Rebalancing ********************/

// dirOf reports which child of its parent n is.
func dirOf(n *node) int {
	if n == n.parent.child[left] {
		return left
	}
	return right
}

// replace hangs v where u hung under u's parent.
func (t *RBTree) replace(u, v *node) {
	if u.parent == t.nil {
		t.root = v
	} else {
		u.parent.child[dirOf(u)] = v
	}
	v.parent = u.parent
}

// rotate lowers x towards dir; its child on the other side takes its place.
func (t *RBTree) rotate(x *node, dir int) {
	y := x.child[1-dir]
	x.child[1-dir] = y.child[dir]
	if y.child[dir] != t.nil {
		y.child[dir].parent = x
	}
	t.replace(x, y)
	y.child[dir] = x
	x.parent = y
}

func (t *RBTree) insertFixup(z *node) {
	for z.parent.color == red {
		g := z.parent.parent
		dir := dirOf(z.parent)
		uncle := g.child[1-dir]
		if uncle.color == red {
			z.parent.color = black
			uncle.color = black
			g.color = red
			z = g
			continue
		}
		if z == z.parent.child[1-dir] {
			z = z.parent
			t.rotate(z, dir)
		}
		z.parent.color = black
		g.color = red
		t.rotate(g, 1-dir)
	}
	t.root.color = black
}

func (t *RBTree) delete(z *node) {
	removed := z.color
	var x *node

	switch {
	case z.child[left] == t.nil:
		x = z.child[right]
		t.replace(z, x)
	case z.child[right] == t.nil:
		x = z.child[left]
		t.replace(z, x)
	default:
		// Move the successor node itself into z's place; copying its key
		// and level into z would invalidate the successor's level handle.
		y := t.extreme(z.child[right], left)
		removed = y.color
		x = y.child[right]
		if y.parent == z {
			x.parent = y
		} else {
			t.replace(y, x)
			y.child[right] = z.child[right]
			y.child[right].parent = y
		}
		t.replace(z, y)
		y.child[left] = z.child[left]
		y.child[left].parent = y
		y.color = z.color
	}

	if removed == black {
		t.deleteFixup(x)
	}
	t.nil.parent = nil
}

func (t *RBTree) deleteFixup(x *node) {
	for x != t.root && x.color == black {
		dir := dirOf(x)
		w := x.parent.child[1-dir]
		if w.color == red {
			w.color = black
			x.parent.color = red
			t.rotate(x.parent, dir)
			w = x.parent.child[1-dir]
		}
		if w.child[left].color == black && w.child[right].color == black {
			w.color = red
			x = x.parent
			continue
		}
		if w.child[1-dir].color == black {
			w.child[dir].color = black
			w.color = red
			t.rotate(w, 1-dir)
			w = x.parent.child[1-dir]
		}
		w.color = x.parent.color
		x.parent.color = black
		w.child[1-dir].color = black
		t.rotate(x.parent, dir)
		x = t.root
	}
	x.color = black
}
