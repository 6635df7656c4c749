package binning

import (
	"testing"

	"evbin/internal/errs"
	"evbin/internal/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tcs := []struct {
		s           string
		expected    Mode
		expectedErr bool
	}{
		{"histogram", ModeHistogram, false},
		{"Heatmap", ModeHeatmap, false},
		{"both", ModeBoth, false},
		{" hg ", ModeHistogram, false},
		{"patate", 0, true},
		{"", 0, true},
	}
	for _, tc := range tcs {
		t.Run(tc.s, func(t *testing.T) {
			m, err := ParseMode(tc.s)
			if tc.expectedErr {
				assert.ErrorIs(t, err, errs.ErrInvalidArgument)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, m)
		})
	}
}

func TestModeText(t *testing.T) {
	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("both")))
	assert.True(t, m.Has(ModeHistogram))
	assert.True(t, m.Has(ModeHeatmap))
	b, err := m.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "both", string(b))
	assert.False(t, ModeHeatmap.Has(ModeHistogram))
}

func TestBinners(t *testing.T) {
	bs, err := Binners(ModeBoth, 10)
	require.NoError(t, err)
	require.Len(t, bs, 2)
	assert.Equal(t, "histogram", bs[0].Name())
	assert.Equal(t, 10, bs[0].Cells())
	assert.Equal(t, "heatmap", bs[1].Name())
	assert.Equal(t, Cells, bs[1].Cells())

	_, err = Binners(ModeHistogram, 0)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	bs, err = Binners(ModeHeatmap, 0)
	require.NoError(t, err)
	assert.Len(t, bs, 1)
}

func TestHistogramDropPolicy(t *testing.T) {
	h := Histogram{Buckets: 10}
	counts := make([]uint32, h.Cells())
	base := uint64(5000)

	evs := []event.Event{
		{Timestamp: 5000},  // bucket 0
		{Timestamp: 5999},  // bucket 0
		{Timestamp: 6000},  // bucket 1
		{Timestamp: 14999}, // bucket 9
		{Timestamp: 15000}, // bucket 10, dropped
		{Timestamp: 4999},  // before base, dropped
		{Timestamp: ^uint64(0)},
	}
	var counted, dropped int
	for _, ev := range evs {
		if h.Observe(ev, base, counts) {
			counted++
		} else {
			dropped++
		}
	}

	assert.Equal(t, []uint32{2, 1, 0, 0, 0, 0, 0, 0, 0, 1}, counts)
	assert.Equal(t, 4, counted)
	assert.Equal(t, 3, dropped)

	var sum int
	for _, c := range counts {
		sum += int(c)
	}
	assert.Equal(t, len(evs), sum+dropped)
}

func TestHeatmapBoundsPolicy(t *testing.T) {
	var h Heatmap
	// two adjacent guard counters around the grid
	backing := make([]uint32, Cells+2)
	counts := backing[1 : Cells+1 : Cells+1]

	assert.True(t, h.Observe(event.Event{X: 0, Y: 0}, 0, counts))
	assert.True(t, h.Observe(event.Event{X: Width - 1, Y: Height - 1}, 0, counts))
	assert.False(t, h.Observe(event.Event{X: Width, Y: 0}, 0, counts))
	assert.False(t, h.Observe(event.Event{X: 0, Y: Height}, 0, counts))
	assert.False(t, h.Observe(event.Event{X: 65535, Y: 65535}, 0, counts))

	assert.Equal(t, uint32(1), counts[HeatIndex(0, 0)])
	assert.Equal(t, uint32(1), counts[HeatIndex(Width-1, Height-1)])
	assert.Zero(t, backing[0])
	assert.Zero(t, backing[Cells+1])

	var total uint32
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, uint32(2), total)
}

func TestHeatIndexLayout(t *testing.T) {
	assert.Equal(t, 0, HeatIndex(0, 0))
	assert.Equal(t, 1, HeatIndex(0, 1))
	assert.Equal(t, Height, HeatIndex(1, 0))
	assert.Equal(t, Cells-1, HeatIndex(Width-1, Height-1))
}

func TestArena(t *testing.T) {
	a, err := NewArena(3, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Workers())
	assert.Equal(t, 4, a.Cells())
	require.Len(t, a.Data(), 12)

	for w := range 3 {
		s := a.Slot(w)
		require.Len(t, s, 4)
		assert.Equal(t, 4, cap(s))
		s[w] = uint32(w + 1)
	}

	assert.Equal(t, uint32(1), a.At(0, 0))
	assert.Equal(t, uint32(2), a.At(1, 1))
	assert.Equal(t, uint32(3), a.At(2, 2))
	assert.Equal(t, 2*4+2, a.Index(2, 2))
	assert.Equal(t, uint32(3), a.Data()[a.Index(2, 2)])

	// appending to a slot must not spill into the neighbour
	s := append(a.Slot(0), 99)
	assert.Len(t, s, 5)
	assert.Zero(t, a.At(1, 0))

	_, err = NewArena(0, 4)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestChunkPoolAligned(t *testing.T) {
	for _, size := range []int{0, 1, 12, 13, 4096, DefaultChunkSize} {
		p := NewChunkPool(size)
		assert.Zero(t, p.Size()%event.Size)
		assert.GreaterOrEqual(t, p.Size(), event.Size)
		b := p.Get()
		assert.Empty(t, *b)
		assert.Equal(t, p.Size(), cap(*b))
		p.Put(b)
	}
}
