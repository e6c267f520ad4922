package vm

import (
	"errors"
	"fmt"

	"github.com/bietkhonhungvandi212/pagevm/internal/storage/file"
	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
)

// filePage is backed by a range of a file. Clean pages are dropped on
// eviction and re-read; dirty pages are written back first.
type filePage struct {
	file      file.File
	offset    int64
	readBytes int
	zeroBytes int
}

func installFile(p *Page, aux Aux) (operations, error) {
	seg, ok := aux.(*SegmentAux)
	if !ok {
		return nil, util.ErrInvalidAux
	}
	if err := seg.validate(); err != nil {
		return nil, err
	}
	return &filePage{
		file:      seg.File.Retain(),
		offset:    seg.Offset,
		readBytes: seg.ReadBytes,
		zeroBytes: seg.ZeroBytes,
	}, nil
}

func (f *filePage) kind() Kind {
	return KindFile
}

func (f *filePage) swapIn(p *Page, kva []byte) error {
	if err := file.ReadFull(f.file, kva[:f.readBytes], f.offset); err != nil {
		return fmt.Errorf("[vm] [file swapIn] %v: %w", p.va, err)
	}
	clear(kva[f.readBytes:])
	return nil
}

func (f *filePage) swapOut(p *Page) error {
	return f.writeBack(p)
}

// writeBack writes the page to its file if it is dirty and clears the bit.
func (f *filePage) writeBack(p *Page) error {
	pt := p.as.pt
	if p.frame == nil || !pt.IsDirty(p.va) {
		return nil
	}
	if f.readBytes == 0 {
		// Nothing of the file lives in this page.
		pt.SetDirty(p.va, false)
		return nil
	}
	if err := file.WriteFull(f.file, p.frame.kva[:f.readBytes], f.offset); err != nil {
		return fmt.Errorf("[vm] [file writeBack] %v: %w", p.va, err)
	}
	pt.SetDirty(p.va, false)
	p.as.m.stats.writeBacks.Add(1)
	return nil
}

func (f *filePage) destroy(p *Page) error {
	err := f.writeBack(p)
	p.detach()
	return errors.Join(err, f.file.Close())
}
