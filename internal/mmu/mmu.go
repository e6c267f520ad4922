// Package mmu is a software model of the hardware page table: per address
// space virtual-to-frame mappings with accessed and dirty bits.
package mmu

//go:generate mockgen -source mmu.go -destination mmu_mocks.go -package mmu

import (
	"fmt"
	"sync"

	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
)

// PageTable maps the virtual pages of one address space to physical frames.
// All methods take page-aligned addresses.
type PageTable interface {
	// Map installs va -> frame. It fails if va is already mapped.
	Map(va util.Addr, frame util.FrameID, writable bool) error
	// Unmap removes the mapping for va, if any.
	Unmap(va util.Addr)
	// Lookup returns the entry for va.
	Lookup(va util.Addr) (Entry, bool)
	// IsAccessed reports the accessed bit of va. Unmapped pages report false.
	IsAccessed(va util.Addr) bool
	SetAccessed(va util.Addr, accessed bool)
	// IsDirty reports the dirty bit of va. Unmapped pages report false.
	IsDirty(va util.Addr) bool
	SetDirty(va util.Addr, dirty bool)
	// Access performs the translation a load or store would: it returns the
	// frame and sets the accessed bit, plus the dirty bit on writes. It fails
	// with util.ErrNotPresent or util.ErrWriteProtected.
	Access(va util.Addr, write bool) (util.FrameID, error)
}

// Table is the software PageTable.
type Table struct {
	mu      sync.RWMutex
	entries map[util.Addr]*Entry
}

// NewTable returns an empty page table.
func NewTable() *Table {
	return &Table{entries: make(map[util.Addr]*Entry)}
}

func (t *Table) Map(va util.Addr, frame util.FrameID, writable bool) error {
	if !va.IsPageAligned() {
		return fmt.Errorf("[mmu] [Map] %v: %w", va, util.ErrNotPageAligned)
	}
	if !frame.Valid() {
		return fmt.Errorf("[mmu] [Map] %v: %w", va, util.ErrOutBoundOfFrame)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exist := t.entries[va]; exist {
		return fmt.Errorf("[mmu] [Map] %v: %w", va, util.ErrAlreadyMapped)
	}
	e := &Entry{Frame: frame, Flags: FlagPresent}
	e.setFlag(FlagWritable, writable)
	t.entries[va] = e
	return nil
}

func (t *Table) Unmap(va util.Addr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, va)
}

func (t *Table) Lookup(va util.Addr) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[va]
	if !ok {
		return Entry{Frame: util.InvalidFrame}, false
	}
	return *e, true
}

func (t *Table) IsAccessed(va util.Addr) bool {
	return t.hasFlag(va, FlagAccessed)
}

func (t *Table) SetAccessed(va util.Addr, accessed bool) {
	t.updateFlag(va, FlagAccessed, accessed)
}

func (t *Table) IsDirty(va util.Addr) bool {
	return t.hasFlag(va, FlagDirty)
}

func (t *Table) SetDirty(va util.Addr, dirty bool) {
	t.updateFlag(va, FlagDirty, dirty)
}

func (t *Table) Access(va util.Addr, write bool) (util.FrameID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[va.RoundDown()]
	if !ok {
		return util.InvalidFrame, util.ErrNotPresent
	}
	if write && !e.HasFlags(FlagWritable) {
		return util.InvalidFrame, util.ErrWriteProtected
	}
	e.SetFlags(FlagAccessed)
	if write {
		e.SetFlags(FlagDirty)
	}
	return e.Frame, nil
}

// Len returns the number of installed mappings.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *Table) hasFlag(va util.Addr, flag Flags) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[va]
	return ok && e.HasFlags(flag)
}

func (t *Table) updateFlag(va util.Addr, flag Flags, on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[va]; ok {
		e.setFlag(flag, on)
	}
}
