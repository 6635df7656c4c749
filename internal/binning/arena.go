package binning

import (
	"fmt"

	"evbin/internal/errs"
)

// Arena is one contiguous allocation holding a partial buffer per worker.
// Counter c of worker w lives at Index(w, c); Slot(w) is the only view a
// worker gets, so no worker can reach another worker's counters.
type Arena struct {
	workers int
	cells   int
	data    []uint32
}

// NewArena allocates zeroed partial buffers of cells counters for workers workers.
func NewArena(workers, cells int) (*Arena, error) {
	if workers <= 0 || cells <= 0 {
		return nil, fmt.Errorf("%w: arena %d workers x %d cells", errs.ErrInvalidArgument, workers, cells)
	}
	return &Arena{
		workers: workers,
		cells:   cells,
		data:    make([]uint32, workers*cells),
	}, nil
}

func (a *Arena) Workers() int { return a.workers }
func (a *Arena) Cells() int   { return a.cells }

// Index returns the linear position of counter cell of worker.
func (a *Arena) Index(worker, cell int) int {
	return worker*a.cells + cell
}

// At returns counter cell of worker.
func (a *Arena) At(worker, cell int) uint32 {
	return a.data[a.Index(worker, cell)]
}

// Slot returns the partial buffer of worker. Its capacity is capped so
// appends cannot spill into the next worker's slot.
func (a *Arena) Slot(worker int) []uint32 {
	lo := worker * a.cells
	hi := lo + a.cells
	return a.data[lo:hi:hi]
}

// Data exposes the whole backing array to the reduction step.
func (a *Arena) Data() []uint32 {
	return a.data
}
