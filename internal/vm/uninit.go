package vm

import (
	"fmt"

	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
)

// installer builds the variant an uninit page turns into.
type installer func(p *Page, aux Aux) (operations, error)

// uninitPage is a page that has never been faulted in. Once spent, its
// initializer and aux are gone and the page can no longer be materialized.
type uninitPage struct {
	target  Kind
	init    Initializer
	aux     Aux
	install installer
	spent   bool
}

func newUninit(target Kind, init Initializer, aux Aux) (*uninitPage, error) {
	var inst installer
	switch target {
	case KindAnon:
		inst = installAnon
	case KindFile:
		inst = installFile
	default:
		return nil, fmt.Errorf("target %v: %w", target, util.ErrInvalidKind)
	}
	return &uninitPage{target: target, init: init, aux: aux, install: inst}, nil
}

func (u *uninitPage) kind() Kind {
	return KindUninit
}

// swapIn materializes the page: the installer switches the variant, then the
// initializer fills the frame. The aux is released either way.
func (u *uninitPage) swapIn(p *Page, kva []byte) error {
	if u.spent {
		return fmt.Errorf("[vm] [materialize] %v: %w", p.va, util.ErrPageSpent)
	}
	init, aux := u.init, u.aux
	u.init, u.aux, u.spent = nil, nil, true
	defer func() {
		if aux == nil {
			return
		}
		if err := aux.Release(); err != nil {
			p.as.log.WithError(err).WithField("va", p.va).Warn("release page aux")
		}
	}()

	clear(kva)
	ops, err := u.install(p, aux)
	if err != nil {
		return fmt.Errorf("[vm] [materialize] %v: %w", p.va, err)
	}
	if init != nil {
		if err := init(p, kva, aux); err != nil {
			discard(ops)
			return fmt.Errorf("[vm] [materialize] %v: %w", p.va, err)
		}
	}
	p.ops = ops
	return nil
}

func (u *uninitPage) swapOut(p *Page) error {
	return fmt.Errorf("[vm] [swapOut] %v: uninit page is never resident: %w", p.va, util.ErrInvalidKind)
}

func (u *uninitPage) destroy(p *Page) error {
	p.detach()
	if u.aux == nil {
		return nil
	}
	aux := u.aux
	u.aux, u.init = nil, nil
	return aux.Release()
}

// clone copies u for another address space.
func (u *uninitPage) clone() (*uninitPage, error) {
	c := &uninitPage{target: u.target, init: u.init, install: u.install, spent: u.spent}
	if u.aux != nil {
		aux, err := u.aux.Clone()
		if err != nil {
			return nil, err
		}
		c.aux = aux
	}
	return c, nil
}

// discard drops a variant that was installed but never took effect.
func discard(ops operations) {
	if fp, ok := ops.(*filePage); ok {
		_ = fp.file.Close()
	}
}
