package vm

import (
	"errors"
	"fmt"

	"github.com/bietkhonhungvandi212/pagevm/internal/mmu"
	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
)

// CopyFrom fills as, which must be empty, with a copy of src. Unloaded pages
// stay lazy with their own copy of the aux. Anonymous pages are copied byte for
// byte into new frames. File pages get a reopened handle and are re-read from
// the file on first access. On failure as is left empty.
func (as *AddressSpace) CopyFrom(src *AddressSpace) error {
	if as.spt.Len() != 0 {
		return util.NewVMError(util.ErrTypeInvalidArgument, "fork", 0, util.ErrPageExists)
	}
	for _, sp := range src.spt.Pages() {
		if err := as.copyPage(sp); err != nil {
			as.abortCopy()
			return claimError("fork", sp.va, err)
		}
	}
	for _, r := range src.Regions() {
		f, err := r.file.Reopen()
		if err != nil {
			as.abortCopy()
			return util.NewVMError(util.ErrTypeNoMemory, "fork", r.Base, err)
		}
		as.mu.Lock()
		as.regions[r.Base] = &Region{Base: r.Base, Pages: r.Pages, file: f}
		as.mu.Unlock()
	}
	as.SetUserSP(src.UserSP())
	as.log.WithField("parent", src.id).WithField("pages", as.spt.Len()).Debug("address space copied")
	return nil
}

// Fork returns a copy of as with its own page table.
func (as *AddressSpace) Fork() (*AddressSpace, error) {
	child := as.m.NewAddressSpace(mmu.NewTable())
	if err := child.CopyFrom(as); err != nil {
		_ = child.Destroy()
		return nil, err
	}
	return child, nil
}

func (as *AddressSpace) abortCopy() {
	as.mu.Lock()
	regions := as.regions
	as.regions = make(map[util.Addr]*Region)
	as.mu.Unlock()
	for _, r := range regions {
		_ = r.file.Close()
	}
	if err := as.spt.Clear(); err != nil {
		as.log.WithError(err).Warn("tear down partial copy")
	}
}

func (as *AddressSpace) copyPage(sp *Page) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.dead {
		return nil
	}
	switch ops := sp.ops.(type) {
	case *uninitPage:
		c, err := ops.clone()
		if err != nil {
			return err
		}
		if err := as.spt.Insert(newPage(as, sp.va, sp.writable, c)); err != nil {
			if c.aux != nil {
				err = errors.Join(err, c.aux.Release())
			}
			return err
		}
		return nil
	case *anonPage:
		return as.copyAnon(sp, ops)
	case *filePage:
		f, err := ops.file.Reopen()
		if err != nil {
			return err
		}
		aux := &SegmentAux{File: f, Offset: ops.offset, ReadBytes: ops.readBytes, ZeroBytes: ops.zeroBytes}
		c, err := newUninit(KindFile, LoadSegment, aux)
		if err == nil {
			err = as.spt.Insert(newPage(as, sp.va, sp.writable, c))
		}
		if err != nil {
			return errors.Join(err, aux.Release())
		}
		return nil
	default:
		return fmt.Errorf("[vm] [fork] %v: %w", sp.va, util.ErrInvalidKind)
	}
}

// copyAnon claims a fresh anonymous page and fills it from the source frame,
// or from the source swap slot if the source is swapped out. The caller holds
// sp.mu, so sp cannot be evicted meanwhile.
func (as *AddressSpace) copyAnon(sp *Page, src *anonPage) error {
	dp := newPage(as, sp.va, sp.writable, &anonPage{slot: util.InvalidSlot})
	if err := as.spt.Insert(dp); err != nil {
		return err
	}
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if err := as.claimLocked(dp); err != nil {
		return err
	}
	if sp.frame != nil {
		copy(dp.frame.kva, sp.frame.kva)
		return nil
	}
	if !src.slot.Valid() {
		return nil
	}
	return as.m.swap.Read(src.slot, dp.frame.kva)
}
