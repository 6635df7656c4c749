package event

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"evbin/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	evs := make([]Event, 1000)
	for i := range evs {
		evs[i] = Event{Timestamp: r.Uint64(), X: uint16(r.Uint32()), Y: uint16(r.Uint32())}
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStream(&buf, evs))
	b := buf.Bytes()
	require.Len(t, b, int(StreamSize(uint64(len(evs)))))

	count, err := ReadHeader(bytes.NewReader(b))
	require.NoError(t, err)
	require.Equal(t, uint32(len(evs)), count)

	for i := range evs {
		off := HeaderSize + i*Size
		got, err := Decode(b[off : off+Size])
		require.NoError(t, err)
		assert.Equal(t, evs[i], got)
	}
}

func TestEncodeLayout(t *testing.T) {
	b := make([]byte, Size)
	Encode(b, Event{Timestamp: 0x0102030405060708, X: 0x0a0b, Y: 0x0c0d})
	assert.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1, 0x0b, 0x0a, 0x0d, 0x0c}, b)
	assert.Equal(t, b, Append(nil, Event{Timestamp: 0x0102030405060708, X: 0x0a0b, Y: 0x0c0d}))
}

func TestDecodeShort(t *testing.T) {
	_, err := Decode(make([]byte, Size-1))
	assert.ErrorIs(t, err, errs.ErrTruncatedStream)
}

func TestReadHeaderShort(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader([]byte{1, 0}))
	assert.ErrorIs(t, err, errs.ErrTruncatedStream)
}

func TestFirstTimestamp(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStream(&buf, []Event{{1000, 10, 20}, {1500, 10, 20}}))

	ts, err := FirstTimestamp(bytes.NewReader(buf.Bytes()), 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), ts)

	ts, err = FirstTimestamp(bytes.NewReader(buf.Bytes()), 0)
	require.NoError(t, err)
	assert.Zero(t, ts)

	buf.Reset()
	require.NoError(t, WriteStreamDeclared(&buf, 5, nil))
	_, err = FirstTimestamp(bytes.NewReader(buf.Bytes()), 5)
	assert.ErrorIs(t, err, errs.ErrTruncatedStream)
}

func BenchmarkDecode(b *testing.B) {
	b.ReportAllocs()
	buf := Append(nil, Event{Timestamp: 123456789, X: 320, Y: 240})
	var ev Event
	for i := 0; i < b.N; i++ {
		ev = DecodeUnchecked(buf)
	}
	_ = ev
}
