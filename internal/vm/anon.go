package vm

import (
	"fmt"

	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
)

// anonPage is memory with no backing file. Evicted contents go to swap.
type anonPage struct {
	slot util.SlotID
}

func installAnon(p *Page, aux Aux) (operations, error) {
	return &anonPage{slot: util.InvalidSlot}, nil
}

func (a *anonPage) kind() Kind {
	return KindAnon
}

func (a *anonPage) swapIn(p *Page, kva []byte) error {
	if !a.slot.Valid() {
		clear(kva)
		return nil
	}
	sw := p.as.m.swap
	if err := sw.Read(a.slot, kva); err != nil {
		return fmt.Errorf("[vm] [anon swapIn] %v: %w", p.va, err)
	}
	if err := sw.Release(a.slot); err != nil {
		return fmt.Errorf("[vm] [anon swapIn] %v: %w", p.va, err)
	}
	a.slot = util.InvalidSlot
	p.as.m.stats.swapIns.Add(1)
	return nil
}

func (a *anonPage) swapOut(p *Page) error {
	sw := p.as.m.swap
	slot, err := sw.Allocate()
	if err != nil {
		return fmt.Errorf("[vm] [anon swapOut] %v: %w", p.va, err)
	}
	if err := sw.Write(slot, p.frame.kva); err != nil {
		_ = sw.Release(slot)
		return fmt.Errorf("[vm] [anon swapOut] %v: %w", p.va, err)
	}
	a.slot = slot
	p.as.m.stats.swapOuts.Add(1)
	return nil
}

func (a *anonPage) destroy(p *Page) error {
	p.detach()
	if !a.slot.Valid() {
		return nil
	}
	slot := a.slot
	a.slot = util.InvalidSlot
	return p.as.m.swap.Release(slot)
}
