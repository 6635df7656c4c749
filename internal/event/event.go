// Package event encodes and decodes the fixed size sensor records of an
// event stream: a little-endian u32 event count followed by that many
// 12 byte records (u64 timestamp, u16 x, u16 y). There is no framing, so a
// misaligned read decodes garbage; alignment is kept by offset bookkeeping.
package event

import (
	"encoding/binary"
	"fmt"
	"io"

	"evbin/internal/errs"
)

const (
	// Size is the encoded size of one event.
	Size = 12
	// HeaderSize is the size of the leading event count.
	HeaderSize = 4
)

// Event is one sensor reading. Timestamp is in microseconds.
type Event struct {
	Timestamp uint64
	X         uint16
	Y         uint16
}

// Decode reads one event from the first Size bytes of b.
func Decode(b []byte) (Event, error) {
	if len(b) < Size {
		return Event{}, fmt.Errorf("%w: need %d bytes, have %d", errs.ErrTruncatedStream, Size, len(b))
	}
	return decode(b), nil
}

// decode assumes len(b) >= Size.
func decode(b []byte) Event {
	_ = b[Size-1] // bounds check hint
	return Event{
		Timestamp: binary.LittleEndian.Uint64(b[0:8]),
		X:         binary.LittleEndian.Uint16(b[8:10]),
		Y:         binary.LittleEndian.Uint16(b[10:12]),
	}
}

// DecodeUnchecked decodes an event from b without a length check.
// Callers must guarantee len(b) >= Size.
func DecodeUnchecked(b []byte) Event {
	return decode(b)
}

// Encode writes ev into the first Size bytes of dst.
func Encode(dst []byte, ev Event) {
	_ = dst[Size-1]
	binary.LittleEndian.PutUint64(dst[0:8], ev.Timestamp)
	binary.LittleEndian.PutUint16(dst[8:10], ev.X)
	binary.LittleEndian.PutUint16(dst[10:12], ev.Y)
}

// Append appends the encoding of ev to dst.
func Append(dst []byte, ev Event) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, ev.Timestamp)
	dst = binary.LittleEndian.AppendUint16(dst, ev.X)
	return binary.LittleEndian.AppendUint16(dst, ev.Y)
}

// StreamSize returns the byte size of a well formed stream holding count events.
func StreamSize(count uint64) int64 {
	return HeaderSize + int64(count)*Size
}

// ReadHeader returns the declared event count of the stream.
func ReadHeader(r io.ReaderAt) (uint32, error) {
	var b [HeaderSize]byte
	if _, err := r.ReadAt(b[:], 0); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, fmt.Errorf("%w: missing header", errs.ErrTruncatedStream)
		}
		return 0, fmt.Errorf("%w: read header: %w", errs.ErrIO, err)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// FirstTimestamp returns the timestamp of the first event of the stream, the
// base every histogram bucket is computed from. It returns 0 for an empty stream.
func FirstTimestamp(r io.ReaderAt, count uint32) (uint64, error) {
	if count == 0 {
		return 0, nil
	}
	var b [Size]byte
	if _, err := r.ReadAt(b[:], HeaderSize); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, fmt.Errorf("%w: missing first event", errs.ErrTruncatedStream)
		}
		return 0, fmt.Errorf("%w: read first event: %w", errs.ErrIO, err)
	}
	return decode(b[:]).Timestamp, nil
}

// WriteStream writes a complete stream (header and records) for evs.
func WriteStream(w io.Writer, evs []Event) error {
	return WriteStreamDeclared(w, uint32(len(evs)), evs)
}

// WriteStreamDeclared writes evs behind a header declaring count events.
// A count larger than len(evs) produces a truncated stream.
func WriteStreamDeclared(w io.Writer, count uint32, evs []Event) error {
	buf := make([]byte, 0, HeaderSize+len(evs)*Size)
	buf = binary.LittleEndian.AppendUint32(buf, count)
	for _, ev := range evs {
		buf = Append(buf, ev)
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: write stream: %w", errs.ErrIO, err)
	}
	return nil
}
