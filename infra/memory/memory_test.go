package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaReusesFreedSlots(t *testing.T) {
	var a Arena[uint64]

	i0 := a.Alloc(10)
	i1 := a.Alloc(20)
	require.Equal(t, 2, a.Len())

	require.True(t, a.Free(i0))
	assert.False(t, a.Free(i0), "double free must be rejected")

	i2 := a.Alloc(30)
	assert.Equal(t, i0, i2, "freed slot should be reused first")
	assert.Equal(t, 2, a.Cap())

	v, ok := a.At(i1)
	require.True(t, ok)
	assert.Equal(t, uint64(20), *v)

	_, ok = a.At(99)
	assert.False(t, ok)
}

func TestArenaReset(t *testing.T) {
	var a Arena[int]
	for i := 0; i < 8; i++ {
		a.Alloc(i)
	}
	a.Reset()
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 0, a.Cap())
	_, ok := a.At(0)
	assert.False(t, ok)
	assert.Equal(t, uint32(0), a.Alloc(5))
}

func TestRingBasic(t *testing.T) {
	r := NewRing[int](4)
	for i := 1; i <= 4; i++ {
		require.True(t, r.Enqueue(i))
	}
	assert.False(t, r.Enqueue(5), "ring should be full")
	assert.Equal(t, 4, r.Len())

	for i := 1; i <= 4; i++ {
		v, ok := r.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok := r.Dequeue()
	assert.False(t, ok)
}

func TestRingRejectsBadSize(t *testing.T) {
	assert.Panics(t, func() { NewRing[int](3) })
	assert.Panics(t, func() { NewRing[int](0) })
}

func TestRingSPSC(t *testing.T) {
	const n = 100000
	r := NewRing[int](64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; {
			if r.Enqueue(i) {
				i++
			}
		}
	}()

	next := 0
	for next < n {
		if v, ok := r.Dequeue(); ok {
			require.Equal(t, next, v)
			next++
		}
	}
	wg.Wait()
}

func TestPoolRoundTrip(t *testing.T) {
	type obj struct{ n int }
	p := NewPool(func() *obj { return &obj{} }, nil)
	o := p.Get()
	require.NotNil(t, o)
	o.n = 7
	p.Put(o)
	p.Put(nil)
	assert.NotNil(t, p.Get())
}

func TestPoolResetsOnPut(t *testing.T) {
	type obj struct{ n int }
	resets := 0
	p := NewPool(func() *obj { return &obj{} }, func(o *obj) {
		o.n = 0
		resets++
	})
	o := p.Get()
	o.n = 7
	p.Put(o)
	assert.Equal(t, 1, resets)
	assert.Zero(t, o.n)
}
