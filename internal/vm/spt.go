package vm

import (
	"errors"
	"fmt"
	"sync"

	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
	"github.com/google/btree"
)

const sptDegree = 32

// SPT is the supplemental page table of one address space: its pages ordered
// by virtual address. The lock covers the tree only; pages have their own.
type SPT struct {
	mu   sync.Mutex
	tree *btree.BTreeG[*Page]
}

func lessPage(a, b *Page) bool {
	return a.va < b.va
}

func newSPT() *SPT {
	return &SPT{tree: btree.NewG[*Page](sptDegree, lessPage)}
}

// Find returns the page containing va.
func (s *SPT) Find(va util.Addr) *Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, _ := s.tree.Get(&Page{va: va.RoundDown()})
	return p
}

// Insert adds p. It never replaces an existing page.
func (s *SPT) Insert(p *Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree.Has(p) {
		return fmt.Errorf("[spt] [Insert] %v: %w", p.va, util.ErrPageExists)
	}
	s.tree.ReplaceOrInsert(p)
	return nil
}

// Remove detaches p from the table and destroys it.
func (s *SPT) Remove(p *Page) error {
	s.mu.Lock()
	got, ok := s.tree.Get(p)
	if !ok || got != p {
		s.mu.Unlock()
		return fmt.Errorf("[spt] [Remove] %v: %w", p.va, util.ErrPageNotFound)
	}
	s.tree.Delete(p)
	s.mu.Unlock()
	return p.destroy()
}

// Clear destroys every page.
func (s *SPT) Clear() error {
	s.mu.Lock()
	pages := s.pagesLocked()
	s.tree.Clear(false)
	s.mu.Unlock()

	var errs []error
	for _, p := range pages {
		if err := p.destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of pages.
func (s *SPT) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Len()
}

// Pages returns the pages in ascending address order.
func (s *SPT) Pages() []*Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagesLocked()
}

func (s *SPT) pagesLocked() []*Page {
	pages := make([]*Page, 0, s.tree.Len())
	s.tree.Ascend(func(p *Page) bool {
		pages = append(pages, p)
		return true
	})
	return pages
}
