package vm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bietkhonhungvandi212/pagevm/internal/palloc"
	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
	"github.com/sirupsen/logrus"
)

// Frame is a physical page handed out to a virtual page.
type Frame struct {
	id   util.FrameID
	kva  []byte
	page *Page
	// pinned frames are mid-claim and never chosen as victims.
	pinned bool
}

// ID returns the physical frame number.
func (f *Frame) ID() util.FrameID {
	return f.id
}

/**
* FrameTable is the registry of every frame in use, shared by all address
* spaces. Victims are picked with the clock (second chance) algorithm: the hand
* sweeps the table, clearing accessed bits, and stops at the first page that
* was not accessed since the last sweep.
**/
type FrameTable struct {
	mu      sync.Mutex
	pool    *palloc.Pool
	frames  []*Frame // indexed by frame id, nil when free in the pool
	hand    int
	maxLoop int
	stats   *counters
	log     *logrus.Logger
}

func newFrameTable(pool *palloc.Pool, maxLoop int, stats *counters, log *logrus.Logger) *FrameTable {
	return &FrameTable{
		pool:    pool,
		frames:  make([]*Frame, pool.Size()),
		maxLoop: maxLoop,
		stats:   stats,
		log:     log,
	}
}

// acquire returns a frame linked to p and pinned. It evicts when the pool is
// empty. The caller holds p.mu.
func (ft *FrameTable) acquire(p *Page) (*Frame, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	var f *Frame
	if id := ft.pool.Alloc(false); id.Valid() {
		f = &Frame{id: id, kva: ft.pool.Bytes(id)}
		ft.frames[id] = f
	} else {
		victim, err := ft.evictLocked()
		if err != nil {
			return nil, err
		}
		f = victim
	}
	f.page = p
	f.pinned = true
	return f, nil
}

// evictLocked runs the clock until it reclaims a frame. The returned frame is
// unlinked and still registered.
func (ft *FrameTable) evictLocked() (*Frame, error) {
	n := len(ft.frames)
	swapFull := false
	for range n * ft.maxLoop {
		f := ft.frames[ft.hand]
		ft.hand = (ft.hand + 1) % n
		if f == nil || f.pinned || f.page == nil {
			continue
		}
		victim := f.page
		// A locked page is being claimed, copied or destroyed.
		if !victim.mu.TryLock() {
			continue
		}
		pt := victim.as.pt
		if pt.IsAccessed(victim.va) {
			pt.SetAccessed(victim.va, false)
			victim.mu.Unlock()
			continue
		}
		if err := victim.ops.swapOut(victim); err != nil {
			victim.mu.Unlock()
			if errors.Is(err, util.ErrSwapFull) {
				swapFull = true
				continue
			}
			ft.log.WithError(err).WithField("va", victim.va).Warn("evict: swap out failed")
			continue
		}
		pt.Unmap(victim.va)
		victim.frame = nil
		f.page = nil
		kind := victim.ops.kind()
		victim.mu.Unlock()

		ft.stats.evictions.Add(1)
		ft.log.WithFields(logrus.Fields{"frame": f.id, "va": victim.va, "kind": kind}).Debug("evicted")
		return f, nil
	}
	if swapFull {
		return nil, fmt.Errorf("[frame] [evict] no victim after %d sweeps: %w", ft.maxLoop, util.ErrSwapFull)
	}
	return nil, fmt.Errorf("[frame] [evict] no victim after %d sweeps: %w", ft.maxLoop, util.ErrNoFreeFrame)
}

// unpin makes f a candidate for eviction again.
func (ft *FrameTable) unpin(f *Frame) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	f.pinned = false
}

// release unregisters f and returns it to the pool.
func (ft *FrameTable) release(f *Frame) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	f.page = nil
	f.pinned = false
	if ft.frames[f.id] == f {
		ft.frames[f.id] = nil
	}
	ft.pool.Free(f.id)
}

// Len returns the number of frames in use.
func (ft *FrameTable) Len() int {
	return ft.pool.InUse()
}
