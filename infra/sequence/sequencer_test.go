package sequence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencerNext(t *testing.T) {
	s := New(0)
	assert.Equal(t, uint64(1), s.Next())
	assert.Equal(t, uint64(2), s.Next())
	assert.Equal(t, uint64(2), s.Current())

	assert.Equal(t, uint64(11), New(10).Next())
}

func TestSequencerObserve(t *testing.T) {
	s := New(5)
	s.Observe(3)
	assert.Equal(t, uint64(5), s.Current())
	s.Observe(40)
	assert.Equal(t, uint64(41), s.Next())
}

func TestSequencerConcurrentUnique(t *testing.T) {
	s := New(0)
	const workers, per = 8, 1000
	out := make(chan uint64, workers*per)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				out <- s.Next()
			}
		}()
	}
	wg.Wait()
	close(out)

	seen := make(map[uint64]bool, workers*per)
	for v := range out {
		require.False(t, seen[v], "duplicate %d", v)
		seen[v] = true
	}
	assert.Equal(t, uint64(workers*per), s.Current())
}
