// Package vm implements demand paged virtual memory for user address spaces:
// lazily loaded pages, anonymous memory backed by swap, memory mapped files,
// and a shared pool of physical frames reclaimed with the clock algorithm.
package vm

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bietkhonhungvandi212/pagevm/internal/mmu"
	"github.com/bietkhonhungvandi212/pagevm/internal/palloc"
	"github.com/bietkhonhungvandi212/pagevm/internal/storage/disk"
	"github.com/bietkhonhungvandi212/pagevm/internal/swap"
	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
	"github.com/sirupsen/logrus"
)

type counters struct {
	faults       atomic.Uint64
	claims       atomic.Uint64
	evictions    atomic.Uint64
	swapIns      atomic.Uint64
	swapOuts     atomic.Uint64
	writeBacks   atomic.Uint64
	stackGrowths atomic.Uint64
}

// Stats is a snapshot of the manager counters.
type Stats struct {
	Faults         uint64 `yaml:"faults"`
	Claims         uint64 `yaml:"claims"`
	Evictions      uint64 `yaml:"evictions"`
	SwapIns        uint64 `yaml:"swap_ins"`
	SwapOuts       uint64 `yaml:"swap_outs"`
	WriteBacks     uint64 `yaml:"write_backs"`
	StackGrowths   uint64 `yaml:"stack_growths"`
	FramesInUse    int    `yaml:"frames_in_use"`
	SwapSlotsInUse int    `yaml:"swap_slots_in_use"`
}

// Manager owns the state shared by every address space: the frame pool, the
// frame table and the swap store.
type Manager struct {
	opts   util.Options
	pool   *palloc.Pool
	frames *FrameTable
	swap   *swap.Store
	log    *logrus.Logger
	stats  counters
	nextID atomic.Int64
}

// NewManager builds a manager from opts. A nil swapDev gets an in-memory swap
// disk of opts.SwapSectors sectors.
func NewManager(opts util.Options, swapDev disk.Disk, log *logrus.Logger) (*Manager, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("[vm] [NewManager] %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if swapDev == nil {
		swapDev = disk.NewMemDisk(disk.Sector(opts.SwapSectors))
	}
	m := &Manager{
		opts: opts,
		pool: palloc.New(opts.FramePoolSize),
		swap: swap.New(swapDev, log),
		log:  log,
	}
	m.frames = newFrameTable(m.pool, opts.ClockMaxLoop, &m.stats, log)
	log.WithFields(logrus.Fields{
		"frames":     opts.FramePoolSize,
		"swap_slots": m.swap.Slots(),
	}).Info("vm manager started")
	return m, nil
}

// Stats returns the current counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Faults:         m.stats.faults.Load(),
		Claims:         m.stats.claims.Load(),
		Evictions:      m.stats.evictions.Load(),
		SwapIns:        m.stats.swapIns.Load(),
		SwapOuts:       m.stats.swapOuts.Load(),
		WriteBacks:     m.stats.writeBacks.Load(),
		StackGrowths:   m.stats.stackGrowths.Load(),
		FramesInUse:    m.pool.InUse(),
		SwapSlotsInUse: m.swap.InUse(),
	}
}

// FrameBytes returns the contents of a physical frame.
func (m *Manager) FrameBytes(id util.FrameID) []byte {
	return m.pool.Bytes(id)
}

/**
* AddressSpace is the virtual memory of one process: its page table, its
* supplemental page table and its mapped regions.
**/
type AddressSpace struct {
	id  int64
	m   *Manager
	pt  mmu.PageTable
	spt *SPT
	log *logrus.Entry

	mu      sync.Mutex
	regions map[util.Addr]*Region

	userSP atomic.Uint64
	closed atomic.Bool
}

// NewAddressSpace creates an empty address space translating through pt.
func (m *Manager) NewAddressSpace(pt mmu.PageTable) *AddressSpace {
	id := m.nextID.Add(1)
	as := &AddressSpace{
		id:      id,
		m:       m,
		pt:      pt,
		spt:     newSPT(),
		log:     m.log.WithField("as", id),
		regions: make(map[util.Addr]*Region),
	}
	as.userSP.Store(uint64(util.UserStack))
	return as
}

// ID returns the identifier of the address space.
func (as *AddressSpace) ID() int64 {
	return as.id
}

// SPT returns the supplemental page table.
func (as *AddressSpace) SPT() *SPT {
	return as.spt
}

// PageTable returns the hardware page table.
func (as *AddressSpace) PageTable() mmu.PageTable {
	return as.pt
}

// SetUserSP records the user stack pointer saved on entry to the kernel.
// Faults raised in kernel mode check stack growth against it.
func (as *AddressSpace) SetUserSP(sp util.Addr) {
	as.userSP.Store(uint64(sp))
}

// UserSP returns the last recorded user stack pointer.
func (as *AddressSpace) UserSP() util.Addr {
	return util.Addr(as.userSP.Load())
}

// AllocPage registers a lazily loaded page of kind at va. The page takes
// ownership of aux, which is released if registration fails.
func (as *AddressSpace) AllocPage(kind Kind, va util.Addr, writable bool, init Initializer, aux Aux) error {
	p, err := as.allocPage(kind, va, writable, init, aux)
	if err != nil {
		if aux != nil {
			if rerr := aux.Release(); rerr != nil {
				as.log.WithError(rerr).Warn("release aux of rejected page")
			}
		}
		return err
	}
	as.log.WithFields(logrus.Fields{"va": p.va, "kind": kind}).Trace("page registered")
	return nil
}

func (as *AddressSpace) allocPage(kind Kind, va util.Addr, writable bool, init Initializer, aux Aux) (*Page, error) {
	const op = "alloc"
	if as.closed.Load() {
		return nil, util.NewVMError(util.ErrTypeInvalidArgument, op, va, util.ErrAddressSpaceClosed)
	}
	if err := checkUserPage(va); err != nil {
		return nil, util.NewVMError(util.ErrTypeInvalidArgument, op, va, err)
	}
	seg, isSeg := aux.(*SegmentAux)
	if kind == KindFile && !isSeg {
		return nil, util.NewVMError(util.ErrTypeInvalidArgument, op, va, util.ErrInvalidAux)
	}
	if isSeg {
		if err := seg.validate(); err != nil {
			return nil, util.NewVMError(util.ErrTypeInvalidArgument, op, va, err)
		}
	}
	ops, err := newUninit(kind, init, aux)
	if err != nil {
		return nil, util.NewVMError(util.ErrTypeInvalidArgument, op, va, err)
	}
	p := newPage(as, va, writable, ops)
	if err := as.spt.Insert(p); err != nil {
		return nil, util.NewVMError(util.ErrTypeInvalidArgument, op, va, err)
	}
	return p, nil
}

func checkUserPage(va util.Addr) error {
	switch {
	case va == 0:
		return util.ErrNullAddress
	case !va.IsPageAligned():
		return util.ErrNotPageAligned
	case !va.IsUser():
		return util.ErrKernelAddress
	}
	return nil
}

// ClaimPage makes the page at va resident.
func (as *AddressSpace) ClaimPage(va util.Addr) error {
	p := as.spt.Find(va)
	if p == nil {
		return util.NewVMError(util.ErrTypeAccessViolation, "claim", va, util.ErrPageNotFound)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := as.claimLocked(p); err != nil {
		return claimError("claim", p.va, err)
	}
	return nil
}

// claimLocked gets a frame for p, fills it and maps it. On failure p is left
// non-resident. The caller holds p.mu.
func (as *AddressSpace) claimLocked(p *Page) error {
	if p.dead {
		return util.ErrPageNotFound
	}
	if p.frame != nil {
		return nil
	}
	frames := as.m.frames
	f, err := frames.acquire(p)
	if err != nil {
		return err
	}
	p.frame = f
	if err := p.ops.swapIn(p, f.kva); err != nil {
		p.frame = nil
		frames.release(f)
		return err
	}
	if err := as.pt.Map(p.va, f.id, p.writable); err != nil {
		// The contents are already loaded, keep them.
		if perr := p.ops.swapOut(p); perr != nil {
			as.log.WithError(perr).WithField("va", p.va).Error("lost page contents after failed map")
		}
		p.frame = nil
		frames.release(f)
		return err
	}
	frames.unpin(f)
	as.m.stats.claims.Add(1)
	return nil
}

func claimError(op string, va util.Addr, err error) error {
	var vmErr *util.VMError
	if errors.As(err, &vmErr) {
		return err
	}
	t, _ := util.TypeOf(err)
	return util.NewVMError(t, op, va, err)
}

// Destroy unmaps every region and frees every page. The address space cannot
// be used afterwards.
func (as *AddressSpace) Destroy() error {
	if as.closed.Swap(true) {
		return nil
	}
	var errs []error
	for _, r := range as.Regions() {
		if err := as.munmap(r.Base); err != nil {
			errs = append(errs, err)
		}
	}
	if err := as.spt.Clear(); err != nil {
		errs = append(errs, err)
	}
	as.log.Debug("address space destroyed")
	return errors.Join(errs...)
}
