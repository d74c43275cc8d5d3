// Package feed defines where order events come from.
package feed

import (
	"context"
	"errors"
	"io"

	"tickbook/domain/orderbook"
)

// Source yields order events until it returns io.EOF or an error. Next
// blocks for network sources and must return when ctx ends.
type Source interface {
	Next(ctx context.Context) (orderbook.Event, error)
}

// Drain pulls every event from src into fn. io.EOF ends it cleanly; any
// other error, including one from fn, is returned with the count so far.
func Drain(ctx context.Context, src Source, fn func(orderbook.Event) error) (int, error) {
	n := 0
	for {
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := fn(ev); err != nil {
			return n, err
		}
		n++
	}
}

// Slice is a Source over a fixed list of events.
type Slice struct {
	events []orderbook.Event
	pos    int
}

func NewSlice(evs ...orderbook.Event) *Slice {
	return &Slice{events: evs}
}

func (s *Slice) Next(ctx context.Context) (orderbook.Event, error) {
	if err := ctx.Err(); err != nil {
		return orderbook.Event{}, err
	}
	if s.pos == len(s.events) {
		return orderbook.Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

// Limit stops src after n events.
func Limit(src Source, n int) Source {
	return &limited{src: src, left: n}
}

type limited struct {
	src  Source
	left int
}

func (l *limited) Next(ctx context.Context) (orderbook.Event, error) {
	if l.left <= 0 {
		return orderbook.Event{}, io.EOF
	}
	l.left--
	return l.src.Next(ctx)
}
