package service

import (
	"context"
	"fmt"

	"tickbook/domain/orderbook"
	"tickbook/feed"
	"tickbook/infra/tape"
)

/*
Replay rebuilds the book from a source before the owner starts.

IMPORTANT:
- It MUST run before Run; it applies events on the calling goroutine
- Replayed events are not recorded and publish no L1 updates; one final
  snapshot is published when it completes
*/
func (s *BookService) Replay(ctx context.Context, src feed.Source) (int, error) {
	if s.running.Load() {
		return 0, ErrRunning
	}
	s.book.OnTopOfBookChange(nil)
	defer s.book.OnTopOfBookChange(s.onTop)
	defer s.publishSnapshot()

	n, err := feed.Drain(ctx, src, func(ev orderbook.Event) error {
		s.cur = s.seq.Next()
		s.metrics.ObserveEvent(ev.Kind, s.book.Apply(ev))
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("service: replay: %w", err)
	}
	s.log.Info().Int("events", n).Uint64("seq", s.seq.Current()).Msg("replay completed")
	return n, nil
}

// ReplayTape replays a recorded tape, resuming sequencing after the last
// record so new events extend the same tape without reusing numbers.
func (s *BookService) ReplayTape(ctx context.Context, dir string) (int, error) {
	if s.running.Load() {
		return 0, ErrRunning
	}
	s.book.OnTopOfBookChange(nil)
	defer s.book.OnTopOfBookChange(s.onTop)
	defer s.publishSnapshot()

	n := 0
	last, err := tape.Replay(dir, func(rec tape.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.cur = rec.Seq
		s.metrics.ObserveEvent(rec.Event.Kind, s.book.Apply(rec.Event))
		n++
		return nil
	})
	s.seq.Observe(last)
	if err != nil {
		return n, fmt.Errorf("service: replay tape %s: %w", dir, err)
	}
	s.log.Info().Int("events", n).Uint64("seq", last).Str("dir", dir).Msg("tape replay completed")
	return n, nil
}

// Ingest pumps a live source into the owner until the source ends, ctx
// ends, or the service stops. Rejected events are counted, not fatal.
func (s *BookService) Ingest(ctx context.Context, src feed.Source) (int, error) {
	return feed.Drain(ctx, src, func(ev orderbook.Event) error {
		_, err := s.Apply(ctx, ev)
		return err
	})
}
