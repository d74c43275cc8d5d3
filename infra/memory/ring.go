package memory

import "sync/atomic"

// Ring is a lock-free single-producer/single-consumer ring buffer.
// Exactly one goroutine may call Enqueue and exactly one may call Dequeue.
type Ring[T any] struct {
	head  atomic.Uint64
	_pad1 [56]byte
	tail  atomic.Uint64
	_pad2 [56]byte
	buf   []T
	mask  uint64
}

// NewRing allocates a ring; size must be a power of two.
func NewRing[T any](size uint64) *Ring[T] {
	if size == 0 || size&(size-1) != 0 {
		panic("memory.Ring: size must be a power of two")
	}
	return &Ring[T]{
		buf:  make([]T, size),
		mask: size - 1,
	}
}

// Enqueue adds v; returns false if the ring is full.
func (r *Ring[T]) Enqueue(v T) bool {
	h := r.head.Load()
	t := r.tail.Load()
	if h-t == uint64(len(r.buf)) {
		return false
	}
	r.buf[h&r.mask] = v
	r.head.Store(h + 1)
	return true
}

// Dequeue removes the oldest element; ok is false if the ring is empty.
func (r *Ring[T]) Dequeue() (v T, ok bool) {
	t := r.tail.Load()
	h := r.head.Load()
	if t == h {
		return v, false
	}
	var zero T
	v = r.buf[t&r.mask]
	r.buf[t&r.mask] = zero
	r.tail.Store(t + 1)
	return v, true
}

func (r *Ring[T]) Len() int { return int(r.head.Load() - r.tail.Load()) }
func (r *Ring[T]) Cap() int { return len(r.buf) }
