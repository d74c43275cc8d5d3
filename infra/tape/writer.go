package tape

import (
	"errors"
	"fmt"
	"os"
	"time"

	"tickbook/domain/orderbook"
)

const defaultSegmentSize = 64 << 20

// ErrOutOfOrder is returned by Append for a sequence that does not follow
// the last one on the tape.
var ErrOutOfOrder = errors.New("tape: sequence out of order")

type Config struct {
	Dir         string
	SegmentSize int64
	// SyncEvery fsyncs after this many appends; 0 leaves syncing to Sync
	// and Close.
	SyncEvery int
}

// Writer appends framed events to size-rotated segment files. It is owned
// by a single goroutine.
type Writer struct {
	dir      string
	segSize  int64
	every    int
	unsynced int

	current  *segment
	segIndex int
	last     uint64
	buf      []byte
	now      func() time.Time
}

// Create opens a tape directory for appending and continues in a new
// segment. A torn record at the end of the last segment, left by a crash
// mid-append, is cut off first so the older segment reads cleanly.
func Create(cfg Config) (*Writer, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("tape: create dir: %w", err)
	}
	files, err := segments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	next := 0
	var lastSeq uint64
	if len(files) > 0 {
		last, err := segmentIndex(files[len(files)-1])
		if err != nil {
			return nil, fmt.Errorf("tape: %s: %w", files[len(files)-1], err)
		}
		next = last + 1
		if lastSeq, err = recoverTail(files); err != nil {
			return nil, err
		}
	}

	seg, err := openSegment(cfg.Dir, next)
	if err != nil {
		return nil, fmt.Errorf("tape: open segment: %w", err)
	}
	size := cfg.SegmentSize
	if size <= 0 {
		size = defaultSegmentSize
	}
	return &Writer{
		dir:      cfg.Dir,
		segSize:  size,
		every:    cfg.SyncEvery,
		current:  seg,
		segIndex: next,
		last:     lastSeq,
		buf:      make([]byte, 0, 64),
		now:      time.Now,
	}, nil
}

// Append writes ev under seq, which must be above every sequence already
// on the tape.
func (w *Writer) Append(seq uint64, ev orderbook.Event) error {
	if seq <= w.last {
		return fmt.Errorf("%w: %d after %d", ErrOutOfOrder, seq, w.last)
	}
	w.buf = appendFrame(w.buf[:0], Record{Seq: seq, Time: w.now().UnixNano(), Event: ev})
	if err := w.current.append(w.buf); err != nil {
		return fmt.Errorf("tape: append seq %d: %w", seq, err)
	}
	w.last = seq
	if w.every > 0 {
		w.unsynced++
		if w.unsynced >= w.every {
			if err := w.Sync(); err != nil {
				return err
			}
		}
	}
	if w.current.offset >= w.segSize {
		return w.rotate()
	}
	return nil
}

// LastSeq is the highest sequence on the tape, including records written
// before this Writer was created.
func (w *Writer) LastSeq() uint64 { return w.last }

func (w *Writer) Sync() error {
	w.unsynced = 0
	if err := w.current.file.Sync(); err != nil {
		return fmt.Errorf("tape: sync: %w", err)
	}
	return nil
}

func (w *Writer) rotate() error {
	if err := w.Sync(); err != nil {
		return err
	}
	if err := w.current.close(); err != nil {
		return fmt.Errorf("tape: close segment: %w", err)
	}
	w.segIndex++
	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return fmt.Errorf("tape: open segment: %w", err)
	}
	w.current = seg
	return nil
}

func (w *Writer) Close() error {
	if err := w.Sync(); err != nil {
		_ = w.current.close()
		return err
	}
	return w.current.close()
}

// recoverTail truncates a torn record off the last segment and returns the
// last sequence found, walking back past segments that hold no records.
func recoverTail(files []string) (uint64, error) {
	for i := len(files) - 1; i >= 0; i-- {
		valid, seq, torn, err := scanSegment(files[i])
		if err != nil {
			return 0, fmt.Errorf("tape: scan %s: %w", files[i], err)
		}
		if torn && i == len(files)-1 {
			if err := truncateSegment(files[i], valid); err != nil {
				return 0, fmt.Errorf("tape: repair %s: %w", files[i], err)
			}
		}
		if seq > 0 {
			return seq, nil
		}
	}
	return 0, nil
}
