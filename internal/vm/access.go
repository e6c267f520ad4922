package vm

import (
	"errors"

	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
)

// ReadUser copies len(buf) bytes of user memory at va into buf, faulting pages
// in as a user mode load would.
func (as *AddressSpace) ReadUser(va util.Addr, buf []byte) error {
	return as.accessUser(va, buf, false)
}

// WriteUser copies data into user memory at va, faulting pages in as a user
// mode store would. Written pages are marked dirty.
func (as *AddressSpace) WriteUser(va util.Addr, data []byte) error {
	return as.accessUser(va, data, true)
}

func (as *AddressSpace) accessUser(va util.Addr, buf []byte, write bool) error {
	for done := 0; done < len(buf); {
		addr := va + util.Addr(done)
		n := min(util.PageSize-int(addr.PageOffset()), len(buf)-done)
		if err := as.touch(addr, buf[done:done+n], write); err != nil {
			return err
		}
		done += n
	}
	return nil
}

// touch performs one access that stays within a page. The copy happens under
// the page lock so the frame cannot be evicted in between.
func (as *AddressSpace) touch(addr util.Addr, chunk []byte, write bool) error {
	f := Fault{Addr: addr, User: true, Write: write, NotPresent: true, SP: as.UserSP()}
	for {
		p := as.spt.Find(addr)
		if p == nil {
			// Stack growth or a violation.
			if err := as.HandleFault(f); err != nil {
				return err
			}
			continue
		}
		done, err := as.touchPage(p, f, chunk)
		if done || err != nil {
			return err
		}
	}
}

func (as *AddressSpace) touchPage(p *Page, f Fault, chunk []byte) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead {
		// Removed under us, look it up again.
		return false, nil
	}
	if p.frame == nil {
		as.m.stats.faults.Add(1)
		if err := as.faultLocked(p, f); err != nil {
			return false, err
		}
	}
	id, err := as.pt.Access(f.Addr.RoundDown(), f.Write)
	if errors.Is(err, util.ErrWriteProtected) {
		as.m.stats.faults.Add(1)
		f.NotPresent = false
		return false, as.violation(f, err)
	}
	if err != nil {
		return false, util.NewVMError(util.ErrTypeAccessViolation, "access", f.Addr, err)
	}
	kva := as.m.pool.Bytes(id)[f.Addr.PageOffset():]
	if f.Write {
		copy(kva, chunk)
	} else {
		copy(chunk, kva)
	}
	return true, nil
}
