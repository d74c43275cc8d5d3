package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbook/domain/orderbook"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TICKBOOK_CONFIG", "")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, orderbook.IndexRBTree, c.IndexKind())
	assert.Equal(t, 250*time.Millisecond, c.Outbox.Interval)
	assert.Equal(t, 100_000, c.Outbox.MaxPending)
	assert.Equal(t, "1.00", c.Ticks().Format(100))
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickbook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
book:
  index: flat
  min_tick: 100
  max_tick: 200
  tick_size: "0.5"
engine:
  queue_depth: 16
kafka:
  brokers: [a:1, b:2]
  publish: true
outbox:
  interval: 2s
`), 0o644))

	t.Setenv("TICKBOOK_CONFIG", path)
	t.Setenv("TICKBOOK_LOG_LEVEL", "warn")
	t.Setenv("TICKBOOK_MAX_TICK", "300")
	t.Setenv("TICKBOOK_OUTBOX_MAX_PENDING", "50")
	t.Setenv("TICKBOOK_KAFKA_BROKERS", "x:1, y:2,")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", c.Log.Level)
	assert.Equal(t, 16, c.Engine.QueueDepth)
	assert.Equal(t, 256, c.Engine.BatchSize)
	assert.Equal(t, []string{"x:1", "y:2"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Publish)
	assert.Equal(t, 2*time.Second, c.Outbox.Interval)
	assert.Equal(t, 50, c.Outbox.MaxPending)
	assert.Equal(t, orderbook.Config{
		Index:          orderbook.IndexFlat,
		MinTick:        100,
		MaxTick:        300,
		ExpectedOrders: 1 << 16,
	}, c.BookConfig())
	assert.Equal(t, "50.5", c.Ticks().Format(101))
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("TICKBOOK_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("TICKBOOK_CONFIG", "")
	t.Setenv("TICKBOOK_QUEUE_DEPTH", "lots")
	_, err = Load()
	assert.ErrorContains(t, err, "TICKBOOK_QUEUE_DEPTH")
}

func TestValidate(t *testing.T) {
	c := defaultConfig()
	require.NoError(t, c.Validate())

	c.Book.Index = "flat"
	c.Book.MinTick, c.Book.MaxTick = 10, 5
	c.Engine.NotifyRing = 1000
	c.Engine.QueueDepth = 0
	c.Book.TickSize = "0"
	err := c.Validate()
	require.Error(t, err)
	for _, want := range []string{"max_tick", "notify_ring", "queue_depth", "tick_size"} {
		assert.ErrorContains(t, err, want)
	}

	for _, r := range [][2]int64{{math.MinInt64, math.MaxInt64}, {math.MinInt64, 0}} {
		c = defaultConfig()
		c.Book.Index = "flat"
		c.Book.MinTick, c.Book.MaxTick = r[0], r[1]
		assert.ErrorContains(t, c.Validate(), "too wide", "%d..%d", r[0], r[1])
	}

	c = defaultConfig()
	c.Book.Index = "skiplist"
	assert.ErrorIs(t, c.Validate(), orderbook.ErrUnknownIndex)
}
