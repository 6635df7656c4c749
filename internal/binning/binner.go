// Package binning accumulates events of one byte range into a worker owned
// partial buffer. Workers never share buffers: each one writes to its own
// slot of an Arena and the slots are only combined by the reduce package.
package binning

import "evbin/internal/event"

const (
	// Width and Height are the sensor grid dimensions.
	Width  = 640
	Height = 480
	// Cells is the number of heatmap counters.
	Cells = Width * Height

	// BucketWidth is the histogram bucket width in timestamp ticks (1ms of 1µs ticks).
	BucketWidth = 1000
)

// HeatIndex maps a pixel to its heatmap counter. The layout is x major,
// so column x occupies Height consecutive counters.
func HeatIndex(x, y int) int {
	return x*Height + y
}

// Binner is one aggregation strategy. Observe increments the counter ev
// falls into and reports whether ev was counted; out of bounds events are
// dropped. counts must hold Cells() counters.
type Binner interface {
	Name() string
	Prefix() string
	Cells() int
	Observe(ev event.Event, base uint64, counts []uint32) bool
}

// Histogram counts events per millisecond since base. Events at or past
// Buckets milliseconds are dropped.
type Histogram struct {
	Buckets int
}

var _ Binner = Histogram{}

func (h Histogram) Name() string   { return "histogram" }
func (h Histogram) Prefix() string { return "occ" }
func (h Histogram) Cells() int     { return h.Buckets }

func (h Histogram) Observe(ev event.Event, base uint64, counts []uint32) bool {
	if ev.Timestamp < base {
		return false
	}
	idx := (ev.Timestamp - base) / BucketWidth
	if idx >= uint64(len(counts)) {
		return false
	}
	counts[idx]++
	return true
}

// Heatmap counts events per pixel. Pixels outside the grid are dropped.
type Heatmap struct{}

var _ Binner = Heatmap{}

func (Heatmap) Name() string   { return "heatmap" }
func (Heatmap) Prefix() string { return "map" }
func (Heatmap) Cells() int     { return Cells }

func (Heatmap) Observe(ev event.Event, _ uint64, counts []uint32) bool {
	if ev.X >= Width || ev.Y >= Height {
		return false
	}
	counts[HeatIndex(int(ev.X), int(ev.Y))]++
	return true
}
