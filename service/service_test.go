package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbook/domain/orderbook"
	"tickbook/feed"
	"tickbook/infra/tape"
)

type collectSink struct {
	mu  sync.Mutex
	got []orderbook.L1Update
}

func (c *collectSink) Publish(u orderbook.L1Update) error {
	c.mu.Lock()
	c.got = append(c.got, u)
	c.mu.Unlock()
	return nil
}

func (c *collectSink) updates() []orderbook.L1Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]orderbook.L1Update(nil), c.got...)
}

// start runs svc until the test ends and waits for the owner to exit.
func start(t *testing.T, svc *BookService) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- svc.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errc)
	})
}

func newService(t *testing.T, cfg Config) *BookService {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	svc, err := New(cfg)
	require.NoError(t, err)
	return svc
}

func TestServiceScenario(t *testing.T) {
	sink := &collectSink{}
	svc := newService(t, Config{Sinks: []Sink{sink}})
	start(t, svc)
	ctx := context.Background()

	st, err := svc.Submit(ctx, 1, 100, 10, orderbook.Buy)
	require.NoError(t, err)
	assert.Equal(t, orderbook.Accepted, st)
	st, _ = svc.Submit(ctx, 2, 101, 5, orderbook.Buy)
	assert.Equal(t, orderbook.Accepted, st)
	st, _ = svc.Submit(ctx, 2, 101, 5, orderbook.Buy)
	assert.Equal(t, orderbook.RejectDuplicateOrder, st)
	st, _ = svc.Submit(ctx, 3, 99, 7, orderbook.Buy)
	assert.Equal(t, orderbook.Accepted, st)
	st, _ = svc.Cancel(ctx, 2)
	assert.Equal(t, orderbook.Accepted, st)
	st, _ = svc.Amend(ctx, 1, -10)
	assert.Equal(t, orderbook.Accepted, st)
	st, _ = svc.Cancel(ctx, 999)
	assert.Equal(t, orderbook.RejectUnknownOrder, st)

	assert.Equal(t, orderbook.Top{Price: 99, Qty: 7, Orders: 1}, svc.TopOfBook(orderbook.Buy))
	assert.Equal(t, orderbook.L1{BestBid: 99, BidQty: 7, BestAsk: orderbook.NoAsk}, svc.SnapshotL1())
	snap := svc.Snapshot()
	assert.Equal(t, 1, snap.Orders)
	assert.Equal(t, uint64(7), snap.Seq)

	lvl, ok, err := svc.PriceLevel(ctx, 99, orderbook.Buy)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, orderbook.Level{Price: 99, Qty: 7, Orders: 1}, lvl)

	depth, err := svc.Depth(ctx, orderbook.Buy, 0)
	require.NoError(t, err)
	assert.Len(t, depth, 1)

	require.Eventually(t, func() bool { return len(sink.updates()) == 4 }, time.Second, time.Millisecond)
	got := sink.updates()
	assert.Equal(t, []uint64{1, 2, 5, 6}, []uint64{got[0].Seq, got[1].Seq, got[2].Seq, got[3].Seq})
	assert.Equal(t, int64(99), got[3].BestBid)
	assert.NotZero(t, got[3].Time)

	require.NoError(t, svc.Clear(ctx))
	assert.Zero(t, svc.Snapshot().Orders)
	assert.Equal(t, orderbook.L1{BestAsk: orderbook.NoAsk}, svc.SnapshotL1())
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, sink.updates(), 4)
}

func TestServiceConcurrentProducers(t *testing.T) {
	svc := newService(t, Config{QueueDepth: 8, BatchSize: 4})
	start(t, svc)
	ctx := context.Background()

	const producers, per = 8, 200
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				id := uint64(p*per + i + 1)
				st, err := svc.Submit(ctx, id, int64(100+i%10), 1, orderbook.Side(p%2))
				assert.NoError(t, err)
				assert.Equal(t, orderbook.Accepted, st)
			}
		}(p)
	}
	wg.Wait()

	snap := svc.Snapshot()
	assert.Equal(t, producers*per, snap.Orders)
	assert.Equal(t, uint64(producers*per), snap.Seq)
	assert.Equal(t, 10, snap.BidLevels)
}

func TestServiceStopped(t *testing.T) {
	svc := newService(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- svc.Run(ctx) }()

	_, err := svc.Submit(context.Background(), 1, 1, 1, orderbook.Buy)
	require.NoError(t, err)
	cancel()
	require.NoError(t, <-errc)
	<-svc.Done()

	_, err = svc.Submit(context.Background(), 2, 1, 1, orderbook.Buy)
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, svc.Run(context.Background()), ErrRunning)
}

func TestServiceCallerContext(t *testing.T) {
	svc := newService(t, Config{QueueDepth: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Nothing drains the queue: the first call waits for a reply, the second
	// cannot even enqueue.
	_, err := svc.Submit(ctx, 1, 1, 1, orderbook.Buy)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, err = svc.Submit(ctx, 2, 1, 1, orderbook.Buy)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotifyRingDrops(t *testing.T) {
	block := make(chan struct{})
	var once sync.Once
	sink := SinkFunc(func(orderbook.L1Update) error {
		once.Do(func() { <-block })
		return nil
	})
	svc := newService(t, Config{NotifyRing: 2, Sinks: []Sink{sink}})
	start(t, svc)
	defer close(block)

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		_, err := svc.Submit(ctx, uint64(i+1), int64(100+i), 1, orderbook.Buy)
		require.NoError(t, err)
	}
	assert.Positive(t, svc.Dropped())
}

func TestBadRingSize(t *testing.T) {
	_, err := New(Config{NotifyRing: 3})
	assert.Error(t, err)
	_, err = New(Config{Book: orderbook.Config{Index: orderbook.IndexFlat, MinTick: 5, MaxTick: 1}})
	assert.ErrorIs(t, err, orderbook.ErrInvalidTickRange)
}

func TestRecordAndReplayTape(t *testing.T) {
	dir := t.TempDir()
	w, err := tape.Create(tape.Config{Dir: dir})
	require.NoError(t, err)

	svc := newService(t, Config{Recorder: w})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- svc.Run(ctx) }()

	n, err := svc.Ingest(context.Background(), feed.Limit(feed.NewSynthetic(feed.SyntheticConfig{Seed: 5, Live: 100}), 3000))
	require.NoError(t, err)
	assert.Equal(t, 3000, n)
	want := svc.SnapshotL1()
	wantDepth, err := svc.Depth(context.Background(), orderbook.Sell, 0)
	require.NoError(t, err)
	cancel()
	require.NoError(t, <-errc)
	require.NoError(t, w.Close())

	sink := &collectSink{}
	replayed := newService(t, Config{Sinks: []Sink{sink}})
	n, err = replayed.ReplayTape(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3000, n)
	assert.Equal(t, want, replayed.SnapshotL1())
	assert.Equal(t, uint64(3000), replayed.Snapshot().Seq)
	assert.Empty(t, sink.updates())

	start(t, replayed)
	gotDepth, err := replayed.Depth(context.Background(), orderbook.Sell, 0)
	require.NoError(t, err)
	assert.Equal(t, wantDepth, gotDepth)

	st, err := replayed.Cancel(context.Background(), 1<<40)
	require.NoError(t, err)
	assert.Equal(t, orderbook.RejectUnknownOrder, st)
	assert.Equal(t, uint64(3001), replayed.Snapshot().Seq)
}

func TestReplayedTapeSeesClear(t *testing.T) {
	dir := t.TempDir()
	w, err := tape.Create(tape.Config{Dir: dir})
	require.NoError(t, err)

	svc := newService(t, Config{Recorder: w})
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- svc.Run(ctx) }()

	bg := context.Background()
	st, err := svc.Submit(bg, 1, 100, 5, orderbook.Buy)
	require.NoError(t, err)
	require.Equal(t, orderbook.Accepted, st)
	require.NoError(t, svc.Clear(bg))
	st, err = svc.Submit(bg, 1, 90, 3, orderbook.Buy)
	require.NoError(t, err)
	require.Equal(t, orderbook.Accepted, st)
	want := svc.TopOfBook(orderbook.Buy)
	assert.Equal(t, orderbook.Top{Price: 90, Qty: 3, Orders: 1}, want)
	assert.Equal(t, uint64(3), svc.Snapshot().Seq)

	cancel()
	require.NoError(t, <-errc)
	require.NoError(t, w.Close())

	replayed := newService(t, Config{})
	n, err := replayed.ReplayTape(bg, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, want, replayed.TopOfBook(orderbook.Buy))
	assert.Equal(t, 1, replayed.Snapshot().Orders)
	assert.Equal(t, uint64(3), replayed.Snapshot().Seq)
}

func TestReplaySourceBeforeRun(t *testing.T) {
	svc := newService(t, Config{})
	n, err := svc.Replay(context.Background(), feed.NewSlice(
		orderbook.Event{Kind: orderbook.KindSubmit, ID: 1, Price: 10, Qty: 2, Side: orderbook.Sell},
		orderbook.Event{Kind: orderbook.KindSubmit, ID: 2, Price: 9, Qty: 1, Side: orderbook.Sell},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, orderbook.Top{Price: 9, Qty: 1, Orders: 1}, svc.TopOfBook(orderbook.Sell))

	start(t, svc)
	require.Eventually(t, svc.running.Load, time.Second, time.Millisecond)
	_, err = svc.Replay(context.Background(), feed.NewSlice())
	assert.ErrorIs(t, err, ErrRunning)
}
