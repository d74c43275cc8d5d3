package outbox

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"tickbook/domain/orderbook"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Entry --------------------

// Entry is one L1 update waiting to be published.
type Entry struct {
	orderbook.L1Update
	State       State
	Retries     uint32
	LastAttempt int64
}

// binary encoding:
// [state:1][retries:4][lastAttempt:8][time:8][bid:8][ask:8][bidQty:8][askQty:8]
const entrySize = 1 + 4 + 8 + 8*5

var (
	errEntryLength = errors.New("outbox: invalid entry length")
	// ErrStaleSeq is returned by Publish for a sequence already covered.
	ErrStaleSeq = errors.New("outbox: stale sequence")
	ErrBacklog  = errors.New("outbox: backlog over limit")
)

func encodeEntry(e Entry) []byte {
	buf := make([]byte, entrySize)
	buf[0] = byte(e.State)
	binary.BigEndian.PutUint32(buf[1:5], e.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(e.LastAttempt))
	binary.BigEndian.PutUint64(buf[13:21], uint64(e.Time))
	binary.BigEndian.PutUint64(buf[21:29], uint64(e.BestBid))
	binary.BigEndian.PutUint64(buf[29:37], uint64(e.BestAsk))
	binary.BigEndian.PutUint64(buf[37:45], e.BidQty)
	binary.BigEndian.PutUint64(buf[45:53], e.AskQty)
	return buf
}

func decodeEntry(seq uint64, b []byte) (Entry, error) {
	if len(b) != entrySize {
		return Entry{}, fmt.Errorf("%w: seq %d has %d bytes", errEntryLength, seq, len(b))
	}
	return Entry{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		L1Update: orderbook.L1Update{
			Seq:  seq,
			Time: int64(binary.BigEndian.Uint64(b[13:21])),
			L1: orderbook.L1{
				BestBid: int64(binary.BigEndian.Uint64(b[21:29])),
				BestAsk: int64(binary.BigEndian.Uint64(b[29:37])),
				BidQty:  binary.BigEndian.Uint64(b[37:45]),
				AskQty:  binary.BigEndian.Uint64(b[45:53]),
			},
		},
	}, nil
}

// -------------------- Outbox --------------------

type Config struct {
	Dir string
	// Sync makes every Put durable before it returns.
	Sync bool
}

// Outbox is a pebble-backed queue of L1 updates keyed by sequence. Entries
// stay until the publisher acks them, so a restart resumes where the last
// successful publish left off. The highest sequence ever published is kept
// under its own key and survives acks, so a restarted writer can continue
// numbering above it.
type Outbox struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	last      uint64 // publisher goroutine only
}

func Open(cfg Config) (*Outbox, error) {
	db, err := pebble.Open(cfg.Dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("outbox: open %s: %w", cfg.Dir, err)
	}
	opts := pebble.NoSync
	if cfg.Sync {
		opts = pebble.Sync
	}
	o := &Outbox{db: db, writeOpts: opts}
	if o.last, err = o.readLast(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return o, nil
}

func (o *Outbox) readLast() (uint64, error) {
	val, closer, err := o.db.Get([]byte(lastKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("outbox: read last seq: %w", err)
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, fmt.Errorf("%w: last seq has %d bytes", errEntryLength, len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// LastSeq is the highest sequence ever published, acked or not.
func (o *Outbox) LastSeq() uint64 { return o.last }

func (o *Outbox) Close() error {
	return o.db.Close()
}

// -------------------- API --------------------

// Publish stores u as a new entry. It lets an Outbox serve as a book sink.
// An update at or below LastSeq would overwrite or reorder earlier entries
// and is refused.
func (o *Outbox) Publish(u orderbook.L1Update) error {
	if u.Seq <= o.last {
		return fmt.Errorf("%w: %d after %d", ErrStaleSeq, u.Seq, o.last)
	}
	b := o.db.NewBatch()
	defer b.Close()
	if err := b.Set(keyFor(u.Seq), encodeEntry(Entry{L1Update: u, State: StateNew}), nil); err != nil {
		return err
	}
	if err := b.Set([]byte(lastKey), binary.BigEndian.AppendUint64(nil, u.Seq), nil); err != nil {
		return err
	}
	if err := b.Commit(o.writeOpts); err != nil {
		return err
	}
	o.last = u.Seq
	return nil
}

func (o *Outbox) Put(e Entry) error {
	return o.db.Set(keyFor(e.Seq), encodeEntry(e), o.writeOpts)
}

// MarkFailed records a failed publish attempt; the entry stays pending.
func (o *Outbox) MarkFailed(e Entry) error {
	e.State = StateFailed
	e.Retries++
	e.LastAttempt = time.Now().UnixNano()
	return o.Put(e)
}

// MarkAcked removes a published entry.
func (o *Outbox) MarkAcked(seq uint64) error {
	return o.db.Delete(keyFor(seq), o.writeOpts)
}

// Get returns the stored entry for seq.
func (o *Outbox) Get(seq uint64) (Entry, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if err != nil {
		return Entry{}, err
	}
	defer closer.Close()
	return decodeEntry(seq, val)
}

// -------------------- Scan --------------------

// ScanPending calls fn for up to limit entries in sequence order (limit <= 0
// means all). Returning an error from fn stops the scan.
func (o *Outbox) ScanPending(limit int, fn func(Entry) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		e, err := decodeEntry(seq, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
		n++
		if limit > 0 && n >= limit {
			break
		}
	}
	return iter.Error()
}

// Pending counts stored entries.
func (o *Outbox) Pending() (int, error) {
	n := 0
	err := o.ScanPending(0, func(Entry) error {
		n++
		return nil
	})
	return n, err
}

// CheckBacklog fails when more than limit entries wait to be published.
// A limit <= 0 disables the bound.
func (o *Outbox) CheckBacklog(limit int) error {
	n, err := o.Pending()
	if err != nil {
		return err
	}
	if limit > 0 && n > limit {
		return fmt.Errorf("%w: %d pending, limit %d", ErrBacklog, n, limit)
	}
	return nil
}

// -------------------- Helpers --------------------

const (
	keyPrefix = "l1/"
	keyUpper  = "l1/~"
	lastKey   = "meta/last_seq"
)

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf(keyPrefix+"%020d", seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d", &seq)
	return seq, err
}
