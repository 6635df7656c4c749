package coord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"evbin/internal/engine"
	"evbin/internal/partition"
	"evbin/internal/scan"
	"evbin/internal/summary"

	"github.com/google/uuid"
)

// NewRunID returns a fresh identifier shared by the ranks of one run.
func NewRunID() string {
	return uuid.NewString()
}

// Summary is the outcome of one rank. MaxElapsed is only meaningful on
// rank 0; other ranks hold their own elapsed time there.
type Summary struct {
	Rank        int
	Processes   int
	Threads     int
	Accelerator bool
	MaxElapsed  float64 // seconds
	Files       int     // files processed by this rank
	Results     []engine.Result
}

func (s Summary) Row() summary.Row {
	return summary.Row{
		Processes:   s.Processes,
		Threads:     s.Threads,
		Accelerator: s.Accelerator,
		MaxElapsed:  s.MaxElapsed,
	}
}

// Coordinator runs one rank: rank 0 scans the folder and every rank
// processes its share of the catalog through Engine.
type Coordinator struct {
	Comm   Comm
	Engine *engine.Engine
	Scan   scan.Options
	// NoSummary disables the summary CSV append on rank 0.
	NoSummary bool
}

// Run processes the rank's share of folder. File failures do not stop the
// rank; they are joined into the returned error, which comes with a valid
// Summary.
func (c *Coordinator) Run(ctx context.Context, folder string) (*Summary, error) {
	start := time.Now()
	rank, size := c.Comm.Rank(), c.Comm.Size()

	var cat *scan.Catalog
	var scanErr error
	if rank == 0 {
		cat, scanErr = scan.Scan(folder, c.Scan)
		if scanErr != nil {
			// peers still need a catalog to stop waiting
			cat = &scan.Catalog{Folder: folder}
		}
		slog.Info("catalog ready", "folder", folder, "files", len(cat.Files), "ranks", size, "workers", c.Engine.Workers())
	}

	cat, err := c.Comm.BroadcastCatalog(ctx, cat)
	if err != nil {
		return nil, fmt.Errorf("rank %d: %w", rank, err)
	}
	if scanErr != nil {
		return nil, scanErr
	}

	idx, err := partition.ForRank(len(cat.Files), size, rank)
	if err != nil {
		return nil, err
	}
	all := cat.Paths()
	mine := make([]string, len(idx))
	for i, j := range idx {
		mine[i] = all[j]
	}
	slog.Debug("files assigned", "rank", rank, "files", len(mine))

	results, runErr := c.Engine.Run(ctx, mine)
	elapsed := time.Since(start).Seconds()
	slog.Info("rank done", "rank", rank, "files", len(mine), "elapsed", fmt.Sprintf("%.6f", elapsed))

	maxElapsed, err := c.Comm.ReduceMax(ctx, elapsed)
	if err != nil {
		return nil, errors.Join(runErr, fmt.Errorf("rank %d: %w", rank, err))
	}

	sum := &Summary{
		Rank:        rank,
		Processes:   size,
		Threads:     c.Engine.Workers(),
		Accelerator: c.Engine.Accelerated(),
		MaxElapsed:  maxElapsed,
		Files:       len(mine),
		Results:     results,
	}
	if rank == 0 {
		slog.Info("run done", "processes", size, "threads", sum.Threads, "max_elapsed", fmt.Sprintf("%.6f", maxElapsed))
		if !c.NoSummary {
			if err := c.appendSummary(sum.Row()); err != nil {
				runErr = errors.Join(runErr, err)
			}
		}
	}
	return sum, runErr
}

// appendSummary writes row once per distinct summary file of the binners.
func (c *Coordinator) appendSummary(row summary.Row) error {
	cfg := c.Engine.Config()
	seen := map[string]bool{}
	for _, b := range c.Engine.Binners() {
		path := cfg.SummaryPath(b.Name())
		if seen[path] {
			continue
		}
		seen[path] = true
		if err := summary.Append(path, row); err != nil {
			return err
		}
	}
	return nil
}
