package tape

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"

	"tickbook/domain/orderbook"
)

// Frame:
// [kind:1][seq:8][time:8][len:4][payload][crc:4]
const (
	headerSize = 1 + 8 + 8 + 4
	crcSize    = 4

	// maxPayload bounds a single record; anything larger is a corrupt length.
	maxPayload = 1 << 16
)

// ErrCorrupt is returned for a record whose checksum or length is invalid.
var ErrCorrupt = errors.New("tape: corrupt record")

// Record is one framed input event.
type Record struct {
	Seq   uint64
	Time  int64 // unix nanos
	Event orderbook.Event
}

func appendFrame(buf []byte, r Record) []byte {
	start := len(buf)
	buf = append(buf, make([]byte, headerSize)...)
	buf = AppendEvent(buf, r.Event)
	payloadLen := len(buf) - start - headerSize

	h := buf[start:]
	h[0] = byte(r.Event.Kind)
	binary.BigEndian.PutUint64(h[1:9], r.Seq)
	binary.BigEndian.PutUint64(h[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(h[17:21], uint32(payloadLen))

	return binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf[start:]))
}

// readFrame reads one record. A clean end of input is io.EOF; a record cut
// short is io.ErrUnexpectedEOF.
func readFrame(r io.Reader, scratch []byte) (Record, []byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Record{}, scratch, err
	}

	l := binary.BigEndian.Uint32(header[17:21])
	if l > maxPayload {
		return Record{}, scratch, ErrCorrupt
	}
	need := int(l) + crcSize
	if cap(scratch) < need {
		scratch = make([]byte, need)
	}
	data := scratch[:need]
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Record{}, scratch, err
	}

	payload := data[:l]
	sum := crc32.NewIEEE()
	sum.Write(header[:])
	sum.Write(payload)
	if sum.Sum32() != binary.BigEndian.Uint32(data[l:]) {
		return Record{}, scratch, ErrCorrupt
	}

	ev, err := UnmarshalEvent(payload)
	if err != nil {
		return Record{}, scratch, errors.Join(ErrCorrupt, err)
	}
	if ev.Kind == 0 {
		ev.Kind = orderbook.Kind(header[0])
	}
	return Record{
		Seq:   binary.BigEndian.Uint64(header[1:9]),
		Time:  int64(binary.BigEndian.Uint64(header[9:17])),
		Event: ev,
	}, scratch, nil
}
