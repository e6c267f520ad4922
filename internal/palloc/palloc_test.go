package palloc

import (
	"testing"

	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
	"github.com/stretchr/testify/assert"
)

func TestNewPool(t *testing.T) {
	t.Run("ValidSize", func(t *testing.T) {
		size := 100
		p := New(size)
		assert.Equal(t, size, p.Size(), "pool size")
		assert.Equal(t, size*util.PageSize, len(p.mem), "arena length")
		assert.Equal(t, 0, p.freeHead, "freeHead")

		// Free list: 0→1→...→size-1→-1
		idx := p.freeHead
		for i := 0; i < size; i++ {
			assert.Equal(t, i, idx, "free list at %d", i)
			idx = p.nextFree[idx]
		}
		assert.Equal(t, -1, idx, "free list end")
		assert.Equal(t, 0, p.InUse())
	})

	t.Run("ZeroSize", func(t *testing.T) {
		assert.Panics(t, func() { New(0) }, "expected panic for size=0")
	})
}

func TestAllocFree(t *testing.T) {
	p := New(4)

	t.Run("AllocateAll", func(t *testing.T) {
		for i := 0; i < 4; i++ {
			id := p.Alloc(false)
			assert.Equal(t, util.FrameID(i), id, "alloc index")
			nextIdx := i + 1
			if nextIdx == 4 {
				nextIdx = -1
			}
			assert.Equal(t, nextIdx, p.freeHead, "freeHead")
		}
		assert.Equal(t, util.InvalidFrame, p.Alloc(false), "empty free list")
		assert.Equal(t, 4, p.InUse())
	})

	t.Run("FreeIsLIFO", func(t *testing.T) {
		p.Free(2)
		p.Free(0)
		assert.Equal(t, 2, p.InUse())
		assert.Equal(t, util.FrameID(0), p.Alloc(false))
		assert.Equal(t, util.FrameID(2), p.Alloc(false))
	})

	t.Run("DoubleFree", func(t *testing.T) {
		p.Free(1)
		assert.Panics(t, func() { p.Free(1) })
		assert.Panics(t, func() { p.Free(17) })
	})

	t.Run("ZeroOnAlloc", func(t *testing.T) {
		id := p.Alloc(false)
		assert.Equal(t, util.FrameID(1), id)
		copy(p.Bytes(id), []byte("dirty"))
		p.Free(id)

		id = p.Alloc(true)
		assert.Equal(t, make([]byte, util.PageSize), p.Bytes(id), "frame must be zeroed")
	})

	t.Run("DistinctFrames", func(t *testing.T) {
		a, b := p.Bytes(0), p.Bytes(2)
		a[0] = 0xAA
		assert.NotEqual(t, a[0], b[0], "frames must not alias")
		assert.Len(t, a, util.PageSize)
		assert.Equal(t, util.PageSize, cap(a), "frame slice must not reach into the next frame")
	})
}
