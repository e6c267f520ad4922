package vm

import (
	"fmt"
	"sync"

	"github.com/bietkhonhungvandi212/pagevm/internal/storage/file"
	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
)

// Kind is the variant a page currently is.
type Kind int

const (
	KindUninit Kind = iota
	KindAnon
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindUninit:
		return "uninit"
	case KindAnon:
		return "anon"
	case KindFile:
		return "file"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// operations is the behavior of one page variant. All methods run with the
// page lock held.
type operations interface {
	kind() Kind
	// swapIn fills kva with the page contents. p.frame is already set.
	swapIn(p *Page, kva []byte) error
	// swapOut persists the contents of p.frame so the frame can be reused.
	swapOut(p *Page) error
	// destroy releases everything the page holds, including its frame.
	destroy(p *Page) error
}

// Initializer fills a freshly materialized page. It runs at most once per page.
type Initializer func(p *Page, kva []byte, aux Aux) error

// Aux is the data an Initializer consumes. A page owns its Aux until the page
// is materialized or destroyed, whichever comes first.
type Aux interface {
	// Clone returns an independent copy for another address space.
	Clone() (Aux, error)
	// Release frees what the Aux holds.
	Release() error
}

/**
* Page is the bookkeeping for one virtual page of an address space.
* va, writable and as never change. ops and frame are guarded by mu.
**/
type Page struct {
	mu       sync.Mutex
	va       util.Addr
	writable bool
	ops      operations
	frame    *Frame
	as       *AddressSpace
	dead     bool
}

func newPage(as *AddressSpace, va util.Addr, writable bool, ops operations) *Page {
	return &Page{va: va, writable: writable, ops: ops, as: as}
}

// VA returns the page-aligned virtual address of the page.
func (p *Page) VA() util.Addr {
	return p.va
}

// Writable reports whether user writes to the page are allowed.
func (p *Page) Writable() bool {
	return p.writable
}

// Kind returns the current variant of the page.
func (p *Page) Kind() Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ops.kind()
}

// Resident reports whether the page is backed by a frame.
func (p *Page) Resident() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame != nil
}

// Frame returns the frame backing the page, or util.InvalidFrame.
func (p *Page) Frame() util.FrameID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frame == nil {
		return util.InvalidFrame
	}
	return p.frame.id
}

func (p *Page) String() string {
	return fmt.Sprintf("page %v", p.va)
}

// destroy tears the page down. Further claims of p fail.
func (p *Page) destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead {
		return nil
	}
	p.dead = true
	return p.ops.destroy(p)
}

// detach unmaps p and hands its frame back to the frame table.
func (p *Page) detach() {
	if p.frame == nil {
		return
	}
	p.as.pt.Unmap(p.va)
	p.as.m.frames.release(p.frame)
	p.frame = nil
}

/**
* SegmentAux describes a page worth of file contents: ReadBytes bytes from
* File at Offset followed by ZeroBytes zeros. It holds one reference on File.
**/
type SegmentAux struct {
	File      file.File
	Offset    int64
	ReadBytes int
	ZeroBytes int
}

func (s *SegmentAux) validate() error {
	if s == nil || s.File == nil {
		return fmt.Errorf("nil segment file: %w", util.ErrInvalidAux)
	}
	if s.ReadBytes < 0 || s.ZeroBytes < 0 || s.ReadBytes+s.ZeroBytes != util.PageSize {
		return fmt.Errorf("segment read %d zero %d: %w", s.ReadBytes, s.ZeroBytes, util.ErrInvalidAux)
	}
	if s.Offset < 0 {
		return fmt.Errorf("segment offset %d: %w", s.Offset, util.ErrInvalidAux)
	}
	return nil
}

// Clone reopens the file so the copy does not share a handle.
func (s *SegmentAux) Clone() (Aux, error) {
	f, err := s.File.Reopen()
	if err != nil {
		return nil, fmt.Errorf("clone segment: %w", err)
	}
	c := *s
	c.File = f
	return &c, nil
}

func (s *SegmentAux) Release() error {
	return s.File.Close()
}

// LoadSegment is the Initializer for executable segments and mapped files. It
// reads the segment bytes into kva and zero-fills the rest.
func LoadSegment(p *Page, kva []byte, aux Aux) error {
	seg, ok := aux.(*SegmentAux)
	if !ok {
		return fmt.Errorf("[vm] [LoadSegment] %v: %w", p.va, util.ErrInvalidAux)
	}
	if err := seg.validate(); err != nil {
		return fmt.Errorf("[vm] [LoadSegment] %v: %w", p.va, err)
	}
	if len(kva) < util.PageSize {
		return fmt.Errorf("[vm] [LoadSegment] %v: frame of %d bytes: %w", p.va, len(kva), util.ErrInvalidAux)
	}
	if err := file.ReadFull(seg.File, kva[:seg.ReadBytes], seg.Offset); err != nil {
		return fmt.Errorf("[vm] [LoadSegment] %v: %w", p.va, err)
	}
	clear(kva[seg.ReadBytes:])
	return nil
}
