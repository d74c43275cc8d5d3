package tape

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"tickbook/domain/orderbook"
)

// Reader walks every segment of a tape in order. A torn record at the end
// of the final segment ends the tape cleanly; anywhere else it is
// ErrCorrupt.
type Reader struct {
	files   []string
	next    int
	file    *os.File
	br      *bufio.Reader
	scratch []byte
	lastSeq uint64
}

// Open prepares a Reader over dir. A missing or empty directory reads as an
// empty tape.
func Open(dir string) (*Reader, error) {
	files, err := segments(dir)
	if err != nil {
		return nil, fmt.Errorf("tape: list segments: %w", err)
	}
	return &Reader{files: files}, nil
}

// ReadRecord returns the next record, or io.EOF once every segment is read.
func (r *Reader) ReadRecord() (Record, error) {
	for {
		if r.file == nil {
			if r.next == len(r.files) {
				return Record{}, io.EOF
			}
			f, err := os.Open(r.files[r.next])
			if err != nil {
				return Record{}, fmt.Errorf("tape: open segment: %w", err)
			}
			r.next++
			r.file = f
			r.br = bufio.NewReaderSize(f, 64<<10)
		}

		rec, scratch, err := readFrame(r.br, r.scratch)
		r.scratch = scratch
		switch {
		case err == nil:
			if rec.Seq <= r.lastSeq {
				return Record{}, fmt.Errorf("%w: non-monotonic seq %d after %d", ErrCorrupt, rec.Seq, r.lastSeq)
			}
			r.lastSeq = rec.Seq
			return rec, nil
		case errors.Is(err, io.EOF):
			r.closeSegment()
		case errors.Is(err, io.ErrUnexpectedEOF):
			name := r.files[r.next-1]
			r.closeSegment()
			if r.next < len(r.files) {
				return Record{}, fmt.Errorf("%w: torn record in %s", ErrCorrupt, name)
			}
			return Record{}, io.EOF
		default:
			return Record{}, fmt.Errorf("%s: %w", r.files[r.next-1], err)
		}
	}
}

// Next makes a Reader usable as an event source.
func (r *Reader) Next(ctx context.Context) (orderbook.Event, error) {
	if err := ctx.Err(); err != nil {
		return orderbook.Event{}, err
	}
	rec, err := r.ReadRecord()
	return rec.Event, err
}

// LastSeq is the sequence of the last record returned.
func (r *Reader) LastSeq() uint64 { return r.lastSeq }

func (r *Reader) closeSegment() {
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
		r.br = nil
	}
}

func (r *Reader) Close() error {
	r.closeSegment()
	r.next = len(r.files)
	return nil
}

// Replay feeds every record of the tape in dir to fn and returns the last
// sequence read.
func Replay(dir string, fn func(Record) error) (uint64, error) {
	r, err := Open(dir)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	for {
		rec, err := r.ReadRecord()
		if errors.Is(err, io.EOF) {
			return r.LastSeq(), nil
		}
		if err != nil {
			return r.LastSeq(), err
		}
		if err := fn(rec); err != nil {
			return r.LastSeq(), err
		}
	}
}
