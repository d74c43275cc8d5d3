// Package runner supervises the long-running workers of a process.
package runner

import (
	"context"
	"sync"
)

// Group runs workers under one context. The first worker to fail cancels
// the rest; Err reports that failure once it happens.
type Group struct {
	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
	errc   chan error
}

// New returns a Group and the context its workers share.
func New(ctx context.Context) (*Group, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &Group{cancel: cancel, errc: make(chan error, 1)}, ctx
}

// Go starts fn. A non-nil error from fn stops the group.
func (g *Group) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			g.once.Do(func() {
				g.errc <- &WorkerError{Name: name, Err: err}
				g.cancel()
			})
		}
	}()
}

// Err delivers the first worker failure.
func (g *Group) Err() <-chan error { return g.errc }

// Stop cancels every worker and waits for them to return.
func (g *Group) Stop() {
	g.cancel()
	g.wg.Wait()
}

// WorkerError names the worker that failed.
type WorkerError struct {
	Name string
	Err  error
}

func (e *WorkerError) Error() string { return e.Name + ": " + e.Err.Error() }
func (e *WorkerError) Unwrap() error { return e.Err }
