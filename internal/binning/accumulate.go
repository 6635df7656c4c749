package binning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"evbin/internal/errs"
	"evbin/internal/event"
	"evbin/internal/partition"
)

// Stats describes what one worker did with its range.
type Stats struct {
	Worker  int
	Range   partition.Range
	Bytes   int64 // bytes consumed from the range
	Events  int64 // events decoded
	Counted []int64
	Dropped []int64
	Elapsed time.Duration
}

// Worker scans one byte range into its own slots, one slot per binner.
type Worker struct {
	ID      int
	Source  Source
	Binners []Binner
	Slots   [][]uint32
	Pool    *ChunkPool
}

// Accumulate decodes every event of rng and feeds it to the worker's binners,
// using base as the histogram origin. It reads until the position reaches
// rng.End rather than counting events, so a short final range is fine.
//
// When the stream ends early the counts gathered so far stay in the slots
// and the returned error wraps errs.ErrTruncatedStream.
func (w *Worker) Accumulate(ctx context.Context, rng partition.Range, base uint64) (st Stats, err error) {
	start := time.Now()
	st = Stats{
		Worker:  w.ID,
		Range:   rng,
		Counted: make([]int64, len(w.Binners)),
		Dropped: make([]int64, len(w.Binners)),
	}
	defer func() { st.Elapsed = time.Since(start) }()

	if len(w.Slots) != len(w.Binners) {
		return st, fmt.Errorf("%w: worker %d has %d slots for %d binners", errs.ErrInvalidArgument, w.ID, len(w.Slots), len(w.Binners))
	}
	if rng.Len() == 0 {
		return st, nil
	}

	r, err := w.Source.Section(rng.Start, rng.End)
	if err != nil {
		return st, fmt.Errorf("worker %d: %w", w.ID, err)
	}
	defer r.Close()

	chunk := w.Pool.Get()
	defer w.Pool.Put(chunk)

	pos := rng.Start
	for pos < rng.End {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		want := min(int64(cap(*chunk)), rng.End-pos)
		buf := (*chunk)[:want]
		n, rerr := io.ReadFull(r, buf)

		whole := n - n%event.Size
		for off := 0; off < whole; off += event.Size {
			ev := event.DecodeUnchecked(buf[off : off+event.Size])
			for i, b := range w.Binners {
				if b.Observe(ev, base, w.Slots[i]) {
					st.Counted[i]++
				} else {
					st.Dropped[i]++
				}
			}
		}
		st.Events += int64(whole / event.Size)
		pos += int64(n)
		st.Bytes += int64(n)

		if rerr != nil {
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				return st, fmt.Errorf("%w: worker %d reached end of file at offset %d, range %s", errs.ErrTruncatedStream, w.ID, pos, rng)
			}
			return st, fmt.Errorf("%w: worker %d read at offset %d: %w", errs.ErrIO, w.ID, pos, rerr)
		}
	}
	return st, nil
}
