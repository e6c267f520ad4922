package mmu

import (
	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
)

// Flags is a set of page table entry bits.
type Flags uint16

const (
	FlagPresent Flags = 1 << iota
	FlagWritable
	FlagAccessed
	FlagDirty
)

// Entry is a leaf page table entry: the frame backing a virtual page and its
// hardware-maintained bits.
type Entry struct {
	Frame util.FrameID
	Flags Flags
}

// HasFlags returns true if this entry has all the input flags set.
func (e Entry) HasFlags(flags Flags) bool {
	return e.Flags&flags == flags
}

// SetFlags sets the input list of flags on the entry.
func (e *Entry) SetFlags(flags Flags) {
	e.Flags |= flags
}

// ClearFlags unsets the input list of flags from the entry.
func (e *Entry) ClearFlags(flags Flags) {
	e.Flags &^= flags
}

// setFlag sets or clears flags depending on on.
func (e *Entry) setFlag(flags Flags, on bool) {
	if on {
		e.SetFlags(flags)
	} else {
		e.ClearFlags(flags)
	}
}
