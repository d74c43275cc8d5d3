package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tickbook/domain/orderbook"
	"tickbook/infra/memory"
	"tickbook/infra/metrics"
	"tickbook/infra/sequence"
	"tickbook/infra/tape"
)

var (
	ErrStopped = errors.New("service: stopped")
	ErrRunning = errors.New("service: already running")
)

type Config struct {
	Book       orderbook.Config
	QueueDepth int
	BatchSize  int
	NotifyRing int // power of two

	// Recorder, when set, receives every event before it is applied.
	Recorder *tape.Writer
	Sinks    []Sink
	Seq      *sequence.Sequencer
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
}

func (c *Config) defaults() {
	if c.QueueDepth <= 0 {
		c.QueueDepth = 4096
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 256
	}
	if c.NotifyRing <= 0 {
		c.NotifyRing = 1 << 14
	}
	if c.Seq == nil {
		c.Seq = sequence.New(0)
	}
}

/*
BookService is the only write entry point into a book.

Every mutation and every query that needs more than the published
snapshot runs on the goroutine inside Run. Nothing else touches the book
while Run is active.
*/
type BookService struct {
	book  *orderbook.OrderBook
	cmds  chan *command
	pool  *memory.Pool[command]
	batch int

	ring    *memory.Ring[orderbook.L1Update]
	wake    chan struct{}
	sinks   []Sink
	dropped atomic.Uint64

	snap    atomic.Pointer[Snapshot]
	seq     *sequence.Sequencer
	cur     uint64 // seq of the event being applied; owner only
	rec     *tape.Writer
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time

	running atomic.Bool
	done    chan struct{}
}

func New(cfg Config) (*BookService, error) {
	cfg.defaults()
	book, err := orderbook.New(cfg.Book)
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if n := cfg.NotifyRing; n&(n-1) != 0 {
		return nil, fmt.Errorf("service: notify ring %d is not a power of two", n)
	}

	s := &BookService{
		book:    book,
		cmds:    make(chan *command, cfg.QueueDepth),
		pool:    memory.NewPool(newCommand, resetCommand),
		batch:   cfg.BatchSize,
		ring:    memory.NewRing[orderbook.L1Update](uint64(cfg.NotifyRing)),
		wake:    make(chan struct{}, 1),
		sinks:   cfg.Sinks,
		seq:     cfg.Seq,
		rec:     cfg.Recorder,
		metrics: cfg.Metrics,
		log:     cfg.Logger.With().Str("component", "book").Logger(),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	book.OnTopOfBookChange(s.onTop)
	s.publishSnapshot()
	return s, nil
}

// onTop runs inside book mutations on the owner goroutine. It never blocks.
func (s *BookService) onTop(l1 orderbook.L1) {
	s.metrics.Notified()
	u := orderbook.L1Update{Seq: s.cur, Time: s.now().UnixNano(), L1: l1}
	if !s.ring.Enqueue(u) {
		s.dropped.Add(1)
		s.metrics.DroppedUpdate()
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

//
// ──────────────────────────────────────────────────────────
// Owner loop
// ──────────────────────────────────────────────────────────
//

// Run owns the book until ctx ends. Queued commands that were not applied
// fail with ErrStopped, and the notifier flushes the ring before Run
// returns.
func (s *BookService) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	stopNotify := make(chan struct{})
	notifyDone := make(chan struct{})
	go s.notifyLoop(stopNotify, notifyDone)

	s.log.Info().Str("index", s.book.IndexKind().String()).Msg("book owner started")
	batch := make([]*command, 0, s.batch)
	for {
		select {
		case <-ctx.Done():
			close(s.done)
			close(stopNotify)
			<-notifyDone
			s.log.Info().Uint64("seq", s.seq.Current()).Msg("book owner stopped")
			return nil
		case c := <-s.cmds:
			batch = append(batch[:0], c)
		fill:
			for len(batch) < s.batch {
				select {
				case c := <-s.cmds:
					batch = append(batch, c)
				default:
					break fill
				}
			}
			s.applyBatch(batch)
			clear(batch)
		}
	}
}

// applyBatch publishes the new snapshot before replying, so a caller that
// has its reply always reads a snapshot that includes its command.
func (s *BookService) applyBatch(batch []*command) {
	start := time.Now()
	for _, c := range batch {
		c.out = reply{}
		switch c.op {
		case opApply:
			c.out.status = s.apply(c.ev)
		case opClear:
			c.out.status = s.apply(orderbook.Event{Kind: orderbook.KindClear})
			s.log.Info().Uint64("seq", s.cur).Msg("book cleared")
		case opLevel:
			c.out.level, c.out.found = s.book.PriceLevel(c.price, c.side)
		case opDepth:
			c.out.levels = s.book.Depth(c.side, c.n)
		}
	}
	s.metrics.ObserveBatch(len(batch), time.Since(start))
	s.publishSnapshot()
	for _, c := range batch {
		c.reply <- c.out
	}
}

func (s *BookService) apply(ev orderbook.Event) orderbook.Status {
	s.cur = s.seq.Next()
	if s.rec != nil {
		if err := s.rec.Append(s.cur, ev); err != nil {
			s.log.Error().Err(err).Uint64("seq", s.cur).Msg("tape append failed")
		}
	}
	st := s.book.Apply(ev)
	s.metrics.ObserveEvent(ev.Kind, st)
	if !st.OK() {
		s.log.Debug().
			Uint64("seq", s.cur).
			Str("kind", ev.Kind.String()).
			Uint64("id", ev.ID).
			Str("status", st.String()).
			Msg("event rejected")
	}
	return st
}

func (s *BookService) publishSnapshot() {
	bidLevels, askLevels := s.book.Levels(orderbook.Buy), s.book.Levels(orderbook.Sell)
	s.snap.Store(&Snapshot{
		Seq:       s.seq.Current(),
		Time:      s.now(),
		Bid:       s.book.TopOfBook(orderbook.Buy),
		Ask:       s.book.TopOfBook(orderbook.Sell),
		Orders:    s.book.TotalOrders(),
		BidLevels: bidLevels,
		AskLevels: askLevels,
	})
	s.metrics.SetBook(s.book.TotalOrders(), bidLevels, askLevels)
}

func (s *BookService) notifyLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-s.wake:
			s.flushRing()
		case <-stop:
			s.flushRing()
			return
		}
	}
}

func (s *BookService) flushRing() {
	for {
		u, ok := s.ring.Dequeue()
		if !ok {
			return
		}
		for _, sink := range s.sinks {
			if err := sink.Publish(u); err != nil {
				s.log.Warn().Err(err).Uint64("seq", u.Seq).Msg("l1 sink failed")
			}
		}
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

func (s *BookService) do(ctx context.Context, c *command) (reply, error) {
	select {
	case <-s.done:
		s.pool.Put(c)
		return reply{}, ErrStopped
	default:
	}
	select {
	case s.cmds <- c:
	case <-ctx.Done():
		s.pool.Put(c)
		return reply{}, ctx.Err()
	case <-s.done:
		s.pool.Put(c)
		return reply{}, ErrStopped
	}
	select {
	case r := <-c.reply:
		s.pool.Put(c)
		return r, nil
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-s.done:
		select {
		case r := <-c.reply:
			s.pool.Put(c)
			return r, nil
		default:
			return reply{}, ErrStopped
		}
	}
}

// Apply queues ev and waits for its outcome.
func (s *BookService) Apply(ctx context.Context, ev orderbook.Event) (orderbook.Status, error) {
	c := s.pool.Get()
	c.op, c.ev = opApply, ev
	r, err := s.do(ctx, c)
	return r.status, err
}

func (s *BookService) Submit(ctx context.Context, id uint64, price int64, qty uint64, side orderbook.Side) (orderbook.Status, error) {
	return s.Apply(ctx, orderbook.Event{Kind: orderbook.KindSubmit, ID: id, Price: price, Qty: qty, Side: side})
}

func (s *BookService) Amend(ctx context.Context, id uint64, delta int64) (orderbook.Status, error) {
	return s.Apply(ctx, orderbook.Event{Kind: orderbook.KindAmend, ID: id, Delta: delta})
}

func (s *BookService) Cancel(ctx context.Context, id uint64) (orderbook.Status, error) {
	return s.Apply(ctx, orderbook.Event{Kind: orderbook.KindCancel, ID: id})
}

// Clear empties the book. It takes a sequence number and is recorded like
// any event, but like the book itself it publishes no L1 update.
func (s *BookService) Clear(ctx context.Context) error {
	c := s.pool.Get()
	c.op = opClear
	_, err := s.do(ctx, c)
	return err
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// Snapshot returns the state published after the last applied batch.
func (s *BookService) Snapshot() *Snapshot { return s.snap.Load() }

func (s *BookService) TopOfBook(side orderbook.Side) orderbook.Top {
	return s.Snapshot().Top(side)
}

func (s *BookService) SnapshotL1() orderbook.L1 {
	return s.Snapshot().L1()
}

// PriceLevel reads one level on the owner goroutine.
func (s *BookService) PriceLevel(ctx context.Context, price int64, side orderbook.Side) (orderbook.Level, bool, error) {
	c := s.pool.Get()
	c.op, c.price, c.side = opLevel, price, side
	r, err := s.do(ctx, c)
	return r.level, r.found, err
}

// Depth reads up to n levels of side on the owner goroutine.
func (s *BookService) Depth(ctx context.Context, side orderbook.Side, n int) ([]orderbook.Level, error) {
	c := s.pool.Get()
	c.op, c.side, c.n = opDepth, side, n
	r, err := s.do(ctx, c)
	return r.levels, err
}

// Dropped counts L1 updates lost to a full notify ring.
func (s *BookService) Dropped() uint64 { return s.dropped.Load() }

// Done is closed once Run has stopped.
func (s *BookService) Done() <-chan struct{} { return s.done }
