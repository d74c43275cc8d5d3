package tape

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

const segmentGlob = "segment-*.tape"

func segmentPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("segment-%06d.tape", index))
}

// segments lists the tape files in dir in write order.
func segments(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, segmentGlob))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func segmentIndex(path string) (int, error) {
	var idx int
	_, err := fmt.Sscanf(filepath.Base(path), "segment-%06d.tape", &idx)
	return idx, err
}

type segment struct {
	file   *os.File
	offset int64
}

func openSegment(dir string, index int) (*segment, error) {
	f, err := os.OpenFile(segmentPath(dir, index), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{file: f, offset: st.Size()}, nil
}

func (s *segment) append(b []byte) error {
	n, err := s.file.Write(b)
	s.offset += int64(n)
	return err
}

func (s *segment) close() error {
	return s.file.Close()
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// scanSegment reads every whole record in path. valid is the offset just
// past the last whole record and torn reports a partial record after it.
func scanSegment(path string) (valid int64, last uint64, torn bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false, err
	}
	defer f.Close()

	cr := &countingReader{r: bufio.NewReaderSize(f, 64<<10)}
	var scratch []byte
	for {
		var rec Record
		rec, scratch, err = readFrame(cr, scratch)
		switch {
		case err == nil:
			valid, last = cr.n, rec.Seq
		case errors.Is(err, io.EOF):
			return valid, last, false, nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			return valid, last, true, nil
		default:
			return valid, last, false, err
		}
	}
}

func truncateSegment(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
