package vm

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/bietkhonhungvandi212/pagevm/internal/storage/file"
	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
)

// Region is a memory mapped file range. It holds its own handle on the file.
type Region struct {
	Base  util.Addr
	Pages int
	file  file.File
}

// End returns the first address past the region.
func (r *Region) End() util.Addr {
	return r.Base + util.Addr(r.Pages)*util.PageSize
}

// Mmap maps length bytes of f starting at offset to addr. Pages are loaded on
// first access; the tail of the last page past the end of the file reads as
// zeros. f is reopened, so the caller keeps ownership of its handle.
func (as *AddressSpace) Mmap(addr util.Addr, length uint64, writable bool, f file.File, offset int64) (util.Addr, error) {
	const op = "mmap"
	invalid := func(err error) (util.Addr, error) {
		return 0, util.NewVMError(util.ErrTypeInvalidArgument, op, addr, err)
	}
	if as.closed.Load() {
		return invalid(util.ErrAddressSpaceClosed)
	}
	if err := checkUserPage(addr); err != nil {
		return invalid(err)
	}
	if offset < 0 || offset%util.PageSize != 0 {
		return invalid(fmt.Errorf("offset %d: %w", offset, util.ErrNotPageAligned))
	}
	if length == 0 || f == nil {
		return invalid(util.ErrInvalidLength)
	}
	last := addr + util.Addr(length)
	end, ok := last.RoundUp()
	if last < addr || !ok || !(end - 1).IsUser() {
		return invalid(util.ErrKernelAddress)
	}
	flen := f.Length()
	if flen == 0 {
		return invalid(fmt.Errorf("empty file: %w", util.ErrInvalidLength))
	}

	rf, err := f.Reopen()
	if err != nil {
		return 0, util.NewVMError(util.ErrTypeNoMemory, op, addr, err)
	}
	readTotal := uint64(max(flen-offset, 0))
	readTotal = min(readTotal, length)

	npages := int((end - addr) / util.PageSize)
	created := make([]*Page, 0, npages)
	for i := range npages {
		va := addr + util.Addr(i)*util.PageSize
		readBytes := int(min(readTotal, util.PageSize))
		readTotal -= uint64(readBytes)
		aux := &SegmentAux{
			File:      rf.Retain(),
			Offset:    offset + int64(i)*util.PageSize,
			ReadBytes: readBytes,
			ZeroBytes: util.PageSize - readBytes,
		}
		p, err := as.allocPage(KindFile, va, writable, LoadSegment, aux)
		if err != nil {
			_ = aux.Release()
			as.rollback(created)
			_ = rf.Close()
			return 0, claimError(op, va, err)
		}
		created = append(created, p)
	}

	as.mu.Lock()
	as.regions[addr] = &Region{Base: addr, Pages: npages, file: rf}
	as.mu.Unlock()

	as.log.WithFields(logrus.Fields{"base": addr, "pages": npages, "offset": offset}).Debug("mmap")
	return addr, nil
}

func (as *AddressSpace) rollback(pages []*Page) {
	for _, p := range pages {
		if err := as.spt.Remove(p); err != nil {
			as.log.WithError(err).WithField("va", p.va).Warn("mmap rollback")
		}
	}
}

// Munmap removes the region based at addr, writing dirty pages back to the
// file. It does nothing if no region starts at addr.
func (as *AddressSpace) Munmap(addr util.Addr) error {
	return as.munmap(addr)
}

func (as *AddressSpace) munmap(addr util.Addr) error {
	as.mu.Lock()
	r, ok := as.regions[addr]
	if ok {
		delete(as.regions, addr)
	}
	as.mu.Unlock()
	if !ok {
		return nil
	}

	var errs []error
	for va := r.Base; va < r.End(); va += util.PageSize {
		p := as.spt.Find(va)
		if p == nil {
			continue
		}
		if err := as.spt.Remove(p); err != nil && !errors.Is(err, util.ErrPageNotFound) {
			errs = append(errs, err)
		}
	}
	if r.file.LastReference() {
		as.log.WithField("base", r.Base).Debug("munmap closes file")
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	as.log.WithFields(logrus.Fields{"base": r.Base, "pages": r.Pages}).Debug("munmap")
	if len(errs) > 0 {
		return util.NewVMError(util.ErrTypeIOShortfall, "munmap", addr, errors.Join(errs...))
	}
	return nil
}

// Regions returns the mapped regions ordered by base address.
func (as *AddressSpace) Regions() []*Region {
	as.mu.Lock()
	regions := maps.Values(as.regions)
	as.mu.Unlock()
	slices.SortFunc(regions, func(a, b *Region) int {
		return cmp.Compare(a.Base, b.Base)
	})
	return regions
}
