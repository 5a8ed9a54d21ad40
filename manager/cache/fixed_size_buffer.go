package cache

import (
	"fmt"
	"math"
)

// FixedSizeBufferPool hands out chunk buffers carved from one arena.
// Get blocks until a buffer is free, which also bounds how many writers can
// compress at the same time.
type FixedSizeBufferPool struct {
	buffers [][]byte
	free    chan uint16

	arena   []byte
	bufSize int
}

// MaxBuffers is the most buffers a pool can track with its uint16 ids.
const MaxBuffers = math.MaxUint16 + 1

// NewFixedSizeBufferPool carves n buffers of bufSize bytes out of a single
// arena. It panics when n is outside [1, MaxBuffers] or bufSize is not positive.
func NewFixedSizeBufferPool(n int, bufSize int) *FixedSizeBufferPool {
	if n < 1 || n > MaxBuffers {
		panic(fmt.Sprintf("buffer pool of %d buffers, want 1..%d", n, MaxBuffers))
	}
	if bufSize <= 0 {
		panic(fmt.Sprintf("buffer pool with buffer size %d", bufSize))
	}

	p := &FixedSizeBufferPool{
		arena:   make([]byte, n*bufSize),
		buffers: make([][]byte, n),
		free:    make(chan uint16, n),
		bufSize: bufSize,
	}

	for id := range p.buffers {
		off := id * bufSize
		// capacity ends with the buffer, appends reallocate instead of spilling
		p.buffers[id] = p.arena[off : off+bufSize : off+bufSize]
		p.free <- uint16(id)
	}
	return p
}

func (p *FixedSizeBufferPool) Get() ([]byte, uint16) {
	id := <-p.free
	return p.buffers[id], id
}

// TryGet is Get without blocking.
func (p *FixedSizeBufferPool) TryGet() ([]byte, uint16, bool) {
	select {
	case id := <-p.free:
		return p.buffers[id], id, true
	default:
		return nil, 0, false
	}
}

func (p *FixedSizeBufferPool) Return(id uint16) {
	p.free <- id
}

func (p *FixedSizeBufferPool) BufSize() int {
	return p.bufSize
}

// Available is the number of buffers not handed out.
func (p *FixedSizeBufferPool) Available() int {
	return len(p.free)
}
