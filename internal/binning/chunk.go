package binning

import (
	"sync"

	"evbin/internal/event"
)

// DefaultChunkSize is the read size of a worker, a multiple of event.Size.
const DefaultChunkSize = 256 * 1024 / event.Size * event.Size

// ChunkPool hands out record aligned read buffers. Buffers are reused
// across workers and files; a buffer is owned by one worker between Get and Put.
type ChunkPool struct {
	p    sync.Pool
	size int
}

// NewChunkPool returns a pool of buffers of size bytes rounded down to a
// whole number of records (at least one).
func NewChunkPool(size int) *ChunkPool {
	size = max(size/event.Size, 1) * event.Size
	return &ChunkPool{
		size: size,
		p: sync.Pool{
			New: func() any {
				b := make([]byte, 0, size)
				return &b
			},
		},
	}
}

func (cp *ChunkPool) Size() int {
	return cp.size
}

func (cp *ChunkPool) Get() *[]byte {
	b := cp.p.Get().(*[]byte)
	*b = (*b)[:0] // reset
	return b
}

func (cp *ChunkPool) Put(b *[]byte) {
	cp.p.Put(b)
}
