// Package partition splits work across workers: byte ranges of one event
// stream across worker goroutines, and files of a catalog across ranks.
package partition

import (
	"fmt"

	"evbin/internal/errs"
	"evbin/internal/event"
)

// Range is a record aligned byte range [Start, End) of an event stream.
type Range struct {
	Start int64
	End   int64
}

// Len returns the size of the range in bytes.
func (r Range) Len() int64 {
	return r.End - r.Start
}

// Events returns the number of records the range covers.
func (r Range) Events() int64 {
	return r.Len() / event.Size
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Offsets returns workers+1 byte offsets splitting a stream of total events
// into contiguous record aligned ranges. Every worker gets ceil(total/workers)
// events except the trailing ones, which are clamped to the end of the stream
// and may be short or empty.
func Offsets(total uint64, workers int) ([]int64, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("%w: worker count must be positive, got %d", errs.ErrInvalidArgument, workers)
	}

	perWorker := total / uint64(workers)
	if total%uint64(workers) != 0 {
		perWorker++
	}

	end := event.StreamSize(total)
	step := int64(perWorker) * event.Size

	offsets := make([]int64, workers+1)
	offsets[0] = event.HeaderSize
	for i := 1; i <= workers; i++ {
		offsets[i] = min(offsets[i-1]+step, end)
	}
	return offsets, nil
}

// Ranges is Offsets expressed as one Range per worker.
func Ranges(total uint64, workers int) ([]Range, error) {
	offsets, err := Offsets(total, workers)
	if err != nil {
		return nil, err
	}
	ranges := make([]Range, workers)
	for i := range ranges {
		ranges[i] = Range{Start: offsets[i], End: offsets[i+1]}
	}
	return ranges, nil
}

// ForRank returns the indices in [0, n) assigned round robin to rank out of
// size ranks.
func ForRank(n, size, rank int) ([]int, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: process count must be positive, got %d", errs.ErrInvalidArgument, size)
	}
	if rank < 0 || rank >= size {
		return nil, fmt.Errorf("%w: rank %d out of [0,%d)", errs.ErrInvalidArgument, rank, size)
	}

	idxs := make([]int, 0, n/size+1)
	for i := rank; i < n; i += size {
		idxs = append(idxs, i)
	}
	return idxs, nil
}
