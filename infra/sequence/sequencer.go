package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers. The book owner
// stamps every applied event and every L1 update with one, and the same
// numbers key the tape and the outbox.
type Sequencer struct {
	last atomic.Uint64
}

// New starts after last; the first Next returns last+1.
func New(last uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(last)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued number.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Observe advances past v if v is ahead. Replay feeds it the sequence of
// every record it reads so live numbering resumes after the tape.
func (s *Sequencer) Observe(v uint64) {
	for {
		cur := s.last.Load()
		if v <= cur || s.last.CompareAndSwap(cur, v) {
			return
		}
	}
}
