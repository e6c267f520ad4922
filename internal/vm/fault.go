package vm

import (
	"errors"

	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
	"github.com/sirupsen/logrus"
)

// Fault describes a page fault as the trap handler reports it.
type Fault struct {
	Addr util.Addr
	// User is set when the faulting access came from user mode.
	User  bool
	Write bool
	// NotPresent is set when no mapping exists. A fault on a present page is a
	// protection violation.
	NotPresent bool
	// SP is the user stack pointer at the time of a user mode fault. Kernel
	// mode faults use the pointer saved with SetUserSP.
	SP util.Addr
}

// HandleFault resolves f. A nil return means the access can be retried. Any
// error is a *util.VMError and terminates the faulting process.
func (as *AddressSpace) HandleFault(f Fault) error {
	as.m.stats.faults.Add(1)
	if err := as.checkFault(f); err != nil {
		return as.violation(f, err)
	}
	p := as.spt.Find(f.Addr)
	if p == nil {
		sp := f.SP
		if !f.User {
			sp = as.UserSP()
		}
		if !as.isStackAccess(f.Addr, sp) {
			return as.violation(f, util.ErrNoMapping)
		}
		return as.growStack(f.Addr)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return as.faultLocked(p, f)
}

func (as *AddressSpace) checkFault(f Fault) error {
	switch {
	case f.Addr == 0:
		return util.ErrNullAddress
	case f.User && !f.Addr.IsUser():
		return util.ErrKernelAddress
	case !f.NotPresent:
		return util.ErrWriteProtected
	}
	return nil
}

// faultLocked claims p for f. The caller holds p.mu.
func (as *AddressSpace) faultLocked(p *Page, f Fault) error {
	if f.Write && !p.writable {
		return as.violation(f, util.ErrReadOnlyPage)
	}
	if err := as.claimLocked(p); err != nil {
		as.log.WithError(err).WithField("va", f.Addr).Warn("claim failed")
		return claimError("fault", f.Addr, err)
	}
	return nil
}

func (as *AddressSpace) violation(f Fault, cause error) error {
	as.log.WithFields(logrus.Fields{
		"addr":  f.Addr,
		"user":  f.User,
		"write": f.Write,
	}).WithError(cause).Warn("access violation")
	return util.NewVMError(util.ErrTypeAccessViolation, "fault", f.Addr, cause)
}

// isStackAccess reports whether addr is a plausible stack access: inside the
// stack limit below UserStack and at most one word below sp, since a push
// faults before the stack pointer moves.
func (as *AddressSpace) isStackAccess(addr, sp util.Addr) bool {
	limit := util.UserStack - util.Addr(as.m.opts.MaxStackSize)
	return addr < util.UserStack &&
		addr.RoundDown() >= limit &&
		addr+util.WordSize >= sp
}

// growStack adds a writable anonymous page at addr and claims it.
func (as *AddressSpace) growStack(addr util.Addr) error {
	va := addr.RoundDown()
	p, err := as.allocPage(KindAnon, va, true, nil, nil)
	if errors.Is(err, util.ErrPageExists) {
		// Another thread grew the stack first.
		p = as.spt.Find(va)
	} else if err != nil {
		return claimError("grow stack", va, err)
	} else {
		as.m.stats.stackGrowths.Add(1)
		as.log.WithField("va", va).Debug("stack grown")
	}
	if p == nil {
		return util.NewVMError(util.ErrTypeAccessViolation, "grow stack", va, util.ErrPageNotFound)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := as.claimLocked(p); err != nil {
		return claimError("grow stack", va, err)
	}
	return nil
}
