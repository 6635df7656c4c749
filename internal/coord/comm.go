// Package coord distributes the files of a folder across ranks and gathers
// the slowest rank's elapsed time on rank 0.
//
// Ranks only exchange the catalog (rank 0 to all) and one float per run (all
// to rank 0). A rank that never answers blocks its peers until their
// context is done.
package coord

import (
	"context"
	"fmt"

	"evbin/internal/errs"
	"evbin/internal/scan"
)

// Comm connects the ranks of one run.
type Comm interface {
	Rank() int
	Size() int
	// BroadcastCatalog sends cat from rank 0 to every rank. Other ranks pass
	// nil and receive rank 0's catalog.
	BroadcastCatalog(ctx context.Context, cat *scan.Catalog) (*scan.Catalog, error)
	// ReduceMax returns the maximum of v across ranks on rank 0. Other ranks
	// get their own v back.
	ReduceMax(ctx context.Context, v float64) (float64, error)
	Close() error
}

// localGroup connects ranks living in one process through channels.
type localGroup struct {
	size   int
	bcast  []chan []byte
	reduce chan float64
}

type localComm struct {
	rank int
	g    *localGroup
}

// NewLocalGroup returns size in-process ranks, indexed by rank.
func NewLocalGroup(size int) ([]Comm, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: group size must be positive, got %d", errs.ErrInvalidArgument, size)
	}
	g := &localGroup{
		size:   size,
		bcast:  make([]chan []byte, size),
		reduce: make(chan float64, size),
	}
	comms := make([]Comm, size)
	for r := range size {
		g.bcast[r] = make(chan []byte, 1)
		comms[r] = &localComm{rank: r, g: g}
	}
	return comms, nil
}

func (c *localComm) Rank() int    { return c.rank }
func (c *localComm) Size() int    { return c.g.size }
func (c *localComm) Close() error { return nil }

func (c *localComm) BroadcastCatalog(ctx context.Context, cat *scan.Catalog) (*scan.Catalog, error) {
	if c.rank == 0 {
		if cat == nil {
			return nil, fmt.Errorf("%w: rank 0 must provide the catalog", errs.ErrInvalidArgument)
		}
		// ranks get their own copy, as they would over the wire
		payload, err := cat.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("encode catalog: %w", err)
		}
		for r := 1; r < c.g.size; r++ {
			select {
			case c.g.bcast[r] <- payload:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return cat, nil
	}

	select {
	case payload := <-c.g.bcast[c.rank]:
		var got scan.Catalog
		if err := got.UnmarshalBinary(payload); err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		return &got, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *localComm) ReduceMax(ctx context.Context, v float64) (float64, error) {
	if c.rank != 0 {
		select {
		case c.g.reduce <- v:
			return v, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	maxV := v
	for range c.g.size - 1 {
		select {
		case other := <-c.g.reduce:
			maxV = max(maxV, other)
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return maxV, nil
}
