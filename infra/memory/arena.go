package memory

// Arena is a free-list backed slot store. Slots are addressed by index,
// so holders keep a uint32 instead of a pointer and freed slots are reused
// before the backing slice grows. The zero value is ready to use.
//
// Arena is not safe for concurrent use.
type Arena[T any] struct {
	items []T
	live  []bool
	free  []uint32
	n     int
}

// Alloc stores v in a free slot and returns its index.
func (a *Arena[T]) Alloc(v T) uint32 {
	var i uint32
	if k := len(a.free); k > 0 {
		i = a.free[k-1]
		a.free = a.free[:k-1]
		a.items[i] = v
		a.live[i] = true
	} else {
		i = uint32(len(a.items))
		a.items = append(a.items, v)
		a.live = append(a.live, true)
	}
	a.n++
	return i
}

// Free releases slot i. It reports false if i is not a live slot.
func (a *Arena[T]) Free(i uint32) bool {
	if int(i) >= len(a.items) || !a.live[i] {
		return false
	}
	var zero T
	a.items[i] = zero
	a.live[i] = false
	a.free = append(a.free, i)
	a.n--
	return true
}

// At returns a pointer to live slot i. The pointer is only valid until the
// next Alloc.
func (a *Arena[T]) At(i uint32) (*T, bool) {
	if int(i) >= len(a.items) || !a.live[i] {
		return nil, false
	}
	return &a.items[i], true
}

// Len returns the number of live slots.
func (a *Arena[T]) Len() int { return a.n }

// Cap returns the number of slots allocated so far, live or free.
func (a *Arena[T]) Cap() int { return len(a.items) }

// Reset frees every slot but keeps the backing storage.
func (a *Arena[T]) Reset() {
	clear(a.items)
	a.items = a.items[:0]
	a.live = a.live[:0]
	a.free = a.free[:0]
	a.n = 0
}
