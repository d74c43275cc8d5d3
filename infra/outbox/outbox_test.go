package outbox

import (
	"errors"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbook/domain/orderbook"
)

func update(seq uint64, bid int64) orderbook.L1Update {
	return orderbook.L1Update{
		Seq:  seq,
		Time: int64(seq) * 1000,
		L1:   orderbook.L1{BestBid: bid, BestAsk: orderbook.NoAsk, BidQty: seq},
	}
}

func openTest(t *testing.T, dir string) *Outbox {
	t.Helper()
	o, err := Open(Config{Dir: dir})
	require.NoError(t, err)
	return o
}

func TestPublishScanAck(t *testing.T) {
	o := openTest(t, t.TempDir())
	defer o.Close()

	for _, seq := range []uint64{1, 3, 12} {
		require.NoError(t, o.Publish(update(seq, int64(seq)*10)))
	}

	var seqs []uint64
	require.NoError(t, o.ScanPending(0, func(e Entry) error {
		seqs = append(seqs, e.Seq)
		assert.Equal(t, StateNew, e.State)
		assert.Equal(t, update(e.Seq, int64(e.Seq)*10), e.L1Update)
		return nil
	}))
	assert.Equal(t, []uint64{1, 3, 12}, seqs)

	require.NoError(t, o.MarkAcked(3))
	n, err := o.Pending()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = o.Get(3)
	assert.ErrorIs(t, err, pebble.ErrNotFound)
}

func TestScanLimitAndStop(t *testing.T) {
	o := openTest(t, t.TempDir())
	defer o.Close()
	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, o.Publish(update(seq, 1)))
	}

	n := 0
	require.NoError(t, o.ScanPending(2, func(Entry) error { n++; return nil }))
	assert.Equal(t, 2, n)

	stop := errors.New("stop")
	err := o.ScanPending(0, func(e Entry) error {
		if e.Seq == 3 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
}

func TestMarkFailedKeepsEntry(t *testing.T) {
	o := openTest(t, t.TempDir())
	defer o.Close()
	require.NoError(t, o.Publish(update(7, 99)))

	e, err := o.Get(7)
	require.NoError(t, err)
	require.NoError(t, o.MarkFailed(e))
	require.NoError(t, o.MarkFailed(e))

	got, err := o.Get(7)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, got.State)
	assert.Equal(t, uint32(1), got.Retries)
	assert.NotZero(t, got.LastAttempt)
	assert.Equal(t, int64(99), got.BestBid)
}

func TestSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	o, err := Open(Config{Dir: dir, Sync: true})
	require.NoError(t, err)
	require.NoError(t, o.Publish(update(1, 5)))
	require.NoError(t, o.Close())

	o = openTest(t, dir)
	defer o.Close()
	n, err := o.Pending()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDecodeRejectsShortValue(t *testing.T) {
	_, err := decodeEntry(1, []byte{1, 2, 3})
	assert.ErrorIs(t, err, errEntryLength)
}

func TestLastSeqSurvivesAckAndReopen(t *testing.T) {
	dir := t.TempDir()
	o, err := Open(Config{Dir: dir, Sync: true})
	require.NoError(t, err)
	assert.Zero(t, o.LastSeq())
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, o.Publish(update(seq, int64(seq))))
	}
	require.NoError(t, o.MarkAcked(3))
	assert.Equal(t, uint64(3), o.LastSeq())
	require.NoError(t, o.Close())

	o = openTest(t, dir)
	defer o.Close()
	assert.Equal(t, uint64(3), o.LastSeq())

	// A restarted writer that numbers from zero again must not clobber the
	// unpublished entries.
	assert.ErrorIs(t, o.Publish(update(1, 100)), ErrStaleSeq)
	require.NoError(t, o.Publish(update(o.LastSeq()+1, 40)))

	var got []Entry
	require.NoError(t, o.ScanPending(0, func(e Entry) error {
		got = append(got, e)
		return nil
	}))
	require.Len(t, got, 3)
	assert.Equal(t, []uint64{1, 2, 4}, []uint64{got[0].Seq, got[1].Seq, got[2].Seq})
	assert.Equal(t, int64(1), got[0].BestBid)
	assert.Equal(t, int64(40), got[2].BestBid)
}

func TestCheckBacklog(t *testing.T) {
	o := openTest(t, t.TempDir())
	defer o.Close()
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, o.Publish(update(seq, 1)))
	}
	assert.NoError(t, o.CheckBacklog(3))
	assert.NoError(t, o.CheckBacklog(0))
	assert.ErrorIs(t, o.CheckBacklog(2), ErrBacklog)

	require.NoError(t, o.MarkAcked(1))
	assert.NoError(t, o.CheckBacklog(2))
}
