// Package palloc manages the user pool of physical page frames.
package palloc

import (
	"fmt"
	"sync"

	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
)

// Pool is a fixed arena of page frames with a free list threaded through
// frame indices.
type Pool struct {
	mu        sync.Mutex
	mem       []byte
	nextFree  []int  // Free list for allocation
	freeHead  int    // Head of free list
	allocated []bool // Guards against double free
	inUse     int
	poolSize  int // Total frames
}

// New creates a pool of size frames, all free.
func New(size int) *Pool {
	if size <= 0 {
		panic(util.ErrInvalidPoolSize)
	}
	p := &Pool{
		mem:       make([]byte, size*util.PageSize),
		nextFree:  make([]int, size),
		freeHead:  0,
		allocated: make([]bool, size),
		poolSize:  size,
	}
	for i := 0; i < size; i++ {
		p.nextFree[i] = i + 1
	}
	p.nextFree[size-1] = -1
	return p
}

// Alloc takes a frame off the free list. It returns util.InvalidFrame when the
// pool is exhausted. Frames are handed out zeroed when zero is set.
func (p *Pool) Alloc(zero bool) util.FrameID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.freeHead == -1 {
		return util.InvalidFrame
	}
	idx := p.freeHead
	p.freeHead = p.nextFree[idx]
	p.nextFree[idx] = -1
	p.allocated[idx] = true
	p.inUse++

	if zero {
		clear(p.page(idx))
	}
	return util.FrameID(idx)
}

// Free returns a frame to the free list.
func (p *Pool) Free(id util.FrameID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := int(id)
	if idx < 0 || idx >= p.poolSize {
		panic(fmt.Sprintf("[palloc] [Free] %v: %d", util.ErrOutBoundOfFrame, idx))
	}
	if !p.allocated[idx] {
		panic(fmt.Sprintf("[palloc] [Free] %v: %d", util.ErrDoubleFree, idx))
	}
	p.allocated[idx] = false
	p.nextFree[idx] = p.freeHead
	p.freeHead = idx
	p.inUse--
}

// Bytes returns the kernel-visible contents of frame id.
func (p *Pool) Bytes(id util.FrameID) []byte {
	idx := int(id)
	if idx < 0 || idx >= p.poolSize {
		panic(fmt.Sprintf("[palloc] [Bytes] %v: %d", util.ErrOutBoundOfFrame, idx))
	}
	return p.page(idx)
}

func (p *Pool) page(idx int) []byte {
	off := idx * util.PageSize
	return p.mem[off : off+util.PageSize : off+util.PageSize]
}

// Size returns the number of frames in the pool.
func (p *Pool) Size() int {
	return p.poolSize
}

// InUse returns the number of frames handed out.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}
