// Package engine runs the per file pipeline: read the header, split the
// stream across workers, accumulate into per worker buffers, reduce and
// write one output file per aggregate.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"evbin/internal/binning"
	"evbin/internal/config"
	"evbin/internal/errs"
	"evbin/internal/event"
	"evbin/internal/metrics"
	"evbin/internal/output"
	"evbin/internal/partition"
	"evbin/internal/reduce"
	"evbin/internal/scan"

	"golang.org/x/sync/errgroup"
)

// Output describes one written aggregate.
type Output struct {
	Binner  string
	Path    string
	Digest  uint64
	Counted int64
	Dropped int64
}

// Result is what ProcessFile did with one input.
type Result struct {
	Input   string
	Outputs []Output
	Events  int64 // events decoded by all workers
	Workers int
	Elapsed time.Duration
	// Degraded is set when at least one worker stopped before the end of
	// its range; the outputs then hold partial counts.
	Degraded bool
}

type Engine struct {
	cfg     config.Config
	binners []binning.Binner
	codec   output.Codec
	reducer reduce.Reducer
	pool    *binning.ChunkPool
	workers int
	metrics *metrics.Recorder
}

type Option func(*Engine)

// WithMetrics records per file and per worker counters into r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = r }
}

func New(cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	binners, err := binning.Binners(cfg.Mode, cfg.Buckets)
	if err != nil {
		return nil, err
	}
	codec, err := output.CreateCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}
	chunk := cfg.ChunkSize
	if chunk == 0 {
		chunk = binning.DefaultChunkSize
	}

	e := &Engine{
		cfg:     cfg,
		binners: binners,
		codec:   codec,
		reducer: reduce.New(cfg.Accelerate, cfg.Lanes),
		pool:    binning.NewChunkPool(chunk),
		workers: cfg.EffectiveWorkers(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Config() config.Config     { return e.cfg }
func (e *Engine) Workers() int              { return e.workers }
func (e *Engine) Binners() []binning.Binner { return e.binners }
func (e *Engine) Accelerated() bool         { return reduce.Accelerated(e.reducer) }

// OutputPath is where the aggregate of b for input is written, without the
// codec extension.
func (e *Engine) OutputPath(b binning.Binner, input string) string {
	return scan.OutputPath(e.cfg.BinnerDir(b.Name()), b.Prefix(), input)
}

// header reads the declared count and the base timestamp of path.
func header(path string) (count uint32, base uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", errs.ErrIO, err)
	}
	defer f.Close()

	count, err = event.ReadHeader(f)
	if err != nil {
		return 0, 0, err
	}
	if fi, err := f.Stat(); err == nil && fi.Size() < event.StreamSize(uint64(count)) {
		slog.Warn("stream shorter than its declared count",
			"file", path, "declared", count, "size", fi.Size(), "expected", event.StreamSize(uint64(count)))
	}
	base, err = event.FirstTimestamp(f, count)
	if err != nil {
		return 0, 0, err
	}
	return count, base, nil
}

// ProcessFile bins one event stream and writes its outputs.
//
// Workers that fail keep the counts they gathered; the outputs are written
// anyway and the returned error joins the worker errors (wrapping
// errs.ErrTruncatedStream for a short file). Cancellation of ctx aborts
// without writing anything.
func (e *Engine) ProcessFile(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	res := Result{Input: path, Workers: e.workers}

	count, base, err := header(path)
	if err != nil {
		e.metrics.ObserveFile("failed", e.workers, time.Since(start))
		return res, fmt.Errorf("%s: %w", path, err)
	}

	ranges, err := partition.Ranges(uint64(count), e.workers)
	if err != nil {
		return res, err
	}

	src, err := binning.OpenSource(e.cfg.IO, path)
	if err != nil {
		e.metrics.ObserveFile("failed", e.workers, time.Since(start))
		return res, fmt.Errorf("%s: %w", path, err)
	}
	defer src.Close()

	arenas := make([]*binning.Arena, len(e.binners))
	for i, b := range e.binners {
		if arenas[i], err = binning.NewArena(e.workers, b.Cells()); err != nil {
			return res, err
		}
	}

	stats := make([]binning.Stats, e.workers)
	failures := make([]error, e.workers)
	g, gctx := errgroup.WithContext(ctx)
	for i := range e.workers {
		w := &binning.Worker{
			ID:      i,
			Source:  src,
			Binners: e.binners,
			Slots:   make([][]uint32, len(arenas)),
			Pool:    e.pool,
		}
		for j, a := range arenas {
			w.Slots[j] = a.Slot(i)
		}
		g.Go(func() error {
			st, err := w.Accumulate(gctx, ranges[i], base)
			stats[i] = st
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				failures[i] = err
			}
			slog.Debug("worker done", "file", path, "worker", i, "range", ranges[i], "events", st.Events, "elapsed", st.Elapsed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}

	counted := make([]int64, len(e.binners))
	dropped := make([]int64, len(e.binners))
	for i, st := range stats {
		res.Events += st.Events
		for j := range e.binners {
			counted[j] += st.Counted[j]
			dropped[j] += st.Dropped[j]
		}
		if failures[i] != nil {
			res.Degraded = true
			slog.Warn("worker stopped early, keeping its partial counts", "file", path, "worker", i, "err", failures[i])
		}
		e.metrics.ObserveWorker(st.Bytes, st.Events, failures[i] != nil)
	}

	for j, b := range e.binners {
		counts, err := e.reducer.Reduce(ctx, arenas[j])
		if err != nil {
			return res, fmt.Errorf("%s: reduce %s: %w", path, b.Name(), err)
		}
		written, err := output.WriteCounters(e.OutputPath(b, path), counts, e.codec)
		if err != nil {
			e.metrics.ObserveFile("failed", e.workers, time.Since(start))
			return res, fmt.Errorf("%s: %w", path, err)
		}
		out := Output{
			Binner:  b.Name(),
			Path:    written,
			Digest:  output.Digest(counts),
			Counted: counted[j],
			Dropped: dropped[j],
		}
		res.Outputs = append(res.Outputs, out)
		e.metrics.ObserveBinner(b.Name(), out.Counted, out.Dropped)
		slog.Info("output written", "file", path, "binner", out.Binner, "path", out.Path,
			"counted", out.Counted, "dropped", out.Dropped, "digest", fmt.Sprintf("%016x", out.Digest))
	}
	res.Elapsed = time.Since(start)

	if err := errors.Join(failures...); err != nil {
		outcome := "failed"
		if errors.Is(err, errs.ErrTruncatedStream) {
			outcome = "truncated"
		}
		e.metrics.ObserveFile(outcome, e.workers, res.Elapsed)
		return res, fmt.Errorf("%s: %w", path, err)
	}
	e.metrics.ObserveFile("ok", e.workers, res.Elapsed)
	return res, nil
}

// Run processes paths one after the other. A failed file does not stop the
// run; the returned error joins every failure. Cancellation stops the run
// before the next file.
func (e *Engine) Run(ctx context.Context, paths []string) ([]Result, error) {
	results := make([]Result, 0, len(paths))
	var failed []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			failed = append(failed, err)
			break
		}
		res, err := e.ProcessFile(ctx, path)
		if err != nil {
			slog.Error("processing failed", "file", path, "err", err)
			failed = append(failed, err)
		}
		results = append(results, res)
	}
	return results, errors.Join(failed...)
}
