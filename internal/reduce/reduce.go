// Package reduce folds the per worker partial buffers of an arena into one
// final buffer. Counters are exact integers, so the order in which lanes
// and workers are summed never changes the result.
package reduce

import (
	"context"
	"runtime"

	"evbin/internal/binning"

	"golang.org/x/sync/errgroup"
)

// Reducer sums the worker slots of an arena cell by cell.
type Reducer interface {
	Reduce(ctx context.Context, arena *binning.Arena) ([]uint32, error)
}

// New returns the lane parallel reducer when accelerate is set and the
// serial one otherwise.
func New(accelerate bool, lanes int) Reducer {
	if accelerate {
		return Lanes{N: lanes}
	}
	return Serial{}
}

// Accelerated reports whether r runs as a data parallel kernel.
func Accelerated(r Reducer) bool {
	_, ok := r.(Lanes)
	return ok
}

// Serial folds the arena on the calling goroutine.
type Serial struct{}

func (Serial) Reduce(ctx context.Context, arena *binning.Arena) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]uint32, arena.Cells())
	for w := range arena.Workers() {
		slot := arena.Slot(w)
		for c, v := range slot {
			out[c] += v
		}
	}
	return out, nil
}

// Lanes splits the cell range into N contiguous lanes and folds every lane
// on its own goroutine. Each lane owns a disjoint part of the output, so lanes
// need no synchronization beyond the final wait. The arena must be complete
// before Reduce is called; the output is only valid once Reduce returns.
type Lanes struct {
	N int
}

func (l Lanes) lanes(cells int) int {
	n := l.N
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return max(min(n, cells), 1)
}

func (l Lanes) Reduce(ctx context.Context, arena *binning.Arena) ([]uint32, error) {
	cells := arena.Cells()
	out := make([]uint32, cells)
	data := arena.Data()
	workers := arena.Workers()

	n := l.lanes(cells)
	perLane := (cells + n - 1) / n

	g, ctx := errgroup.WithContext(ctx)
	for lo := 0; lo < cells; lo += perLane {
		hi := min(lo+perLane, cells)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for c := lo; c < hi; c++ {
				var sum uint32
				for w := range workers {
					sum += data[arena.Index(w, c)]
				}
				out[c] = sum
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
