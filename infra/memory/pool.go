package memory

import "sync"

// Pool is a typed object pool over sync.Pool. When reset is set it runs on
// every Put, so Get never sees state left by the previous user.
type Pool[T any] struct {
	p     *sync.Pool
	reset func(*T)
}

// NewPool builds a pool that allocates with ctor. reset may be nil.
func NewPool[T any](ctor func() *T, reset func(*T)) *Pool[T] {
	return &Pool[T]{
		p:     &sync.Pool{New: func() any { return ctor() }},
		reset: reset,
	}
}

func (p *Pool[T]) Get() *T { return p.p.Get().(*T) }

// Put returns v to the pool. Nil values are ignored.
func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}
