package util

import (
	"errors"
	"fmt"
)

// PageSize represents the standard page size (4KB)
const PageSize = 4096

// PageShift is log2(PageSize).
const PageShift = 12

// SectorSize is the size of one block device sector.
const SectorSize = 512

// SectorsPerPage is the number of sectors a swap slot spans.
const SectorsPerPage = PageSize / SectorSize

// WordSize is the machine word the stack pointer moves by on a push.
const WordSize = 8

// User address space layout.
const (
	// UserStack is the top (exclusive) of the user stack.
	UserStack Addr = 0x47480000
	// KernBase is the first kernel virtual address. Everything below is user space.
	KernBase Addr = 0x8004000000
	// DefaultMaxStackSize bounds how far the stack may grow below UserStack.
	DefaultMaxStackSize = 1 << 20
)

// Addr is a virtual address.
type Addr uint64

// RoundDown returns the page-aligned address of the page containing a.
func (a Addr) RoundDown() Addr {
	return a &^ (PageSize - 1)
}

// RoundUp returns a rounded up to the next page boundary. ok is false if the
// result overflows.
func (a Addr) RoundUp() (Addr, bool) {
	r := (a + PageSize - 1).RoundDown()
	return r, r >= a
}

// PageOffset returns the offset of a within its page.
func (a Addr) PageOffset() uint64 {
	return uint64(a & (PageSize - 1))
}

// IsPageAligned returns true if a is the first byte of a page.
func (a Addr) IsPageAligned() bool {
	return a.PageOffset() == 0
}

// IsUser returns true if a lies in user space.
func (a Addr) IsUser() bool {
	return a < KernBase
}

func (a Addr) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// FrameID identifies a physical page in the frame pool.
type FrameID int

// InvalidFrame is returned when no physical page could be reserved.
const InvalidFrame FrameID = -1

// Valid returns true if this is a valid frame.
func (f FrameID) Valid() bool {
	return f >= 0
}

// SlotID identifies a page-sized slot on the swap device.
type SlotID int

// InvalidSlot marks an anonymous page that is not swapped out.
const InvalidSlot SlotID = -1

// Valid returns true if this is a valid slot.
func (s SlotID) Valid() bool {
	return s >= 0
}

// ErrorType represents the classes of memory-management failures
type ErrorType int

const (
	// ErrTypeAccessViolation terminates the faulting context; never retried.
	ErrTypeAccessViolation ErrorType = iota
	// ErrTypeSwapExhausted: no swap slot was left to evict into.
	ErrTypeSwapExhausted
	// ErrTypeNoMemory: no frame or metadata could be obtained.
	ErrTypeNoMemory
	// ErrTypeIOShortfall: a read or write moved fewer bytes than requested.
	ErrTypeIOShortfall
	// ErrTypeInvalidArgument: a caller broke a precondition (alignment, null, range).
	ErrTypeInvalidArgument
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeAccessViolation:
		return "access violation"
	case ErrTypeSwapExhausted:
		return "swap exhausted"
	case ErrTypeNoMemory:
		return "out of memory"
	case ErrTypeIOShortfall:
		return "i/o shortfall"
	case ErrTypeInvalidArgument:
		return "invalid argument"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// VMError represents a memory-management error surfaced to the process layer
type VMError struct {
	Type  ErrorType
	Op    string
	Addr  Addr
	Cause error
}

func (e *VMError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("vm %s %s: %s (caused by: %v)", e.Op, e.Addr, e.Type, e.Cause)
	}
	return fmt.Sprintf("vm %s %s: %s", e.Op, e.Addr, e.Type)
}

func (e *VMError) Unwrap() error {
	return e.Cause
}

// NewVMError creates a new vm error
func NewVMError(errType ErrorType, op string, addr Addr, cause error) *VMError {
	return &VMError{
		Type:  errType,
		Op:    op,
		Addr:  addr,
		Cause: cause,
	}
}

// TypeOf classifies err. Errors that are not a *VMError are classified by the
// sentinel they wrap; anything unknown is reported as ErrTypeNoMemory with ok
// set to false.
func TypeOf(err error) (ErrorType, bool) {
	var vmErr *VMError
	if errors.As(err, &vmErr) {
		return vmErr.Type, true
	}
	switch {
	case errors.Is(err, ErrSwapFull):
		return ErrTypeSwapExhausted, true
	case errors.Is(err, ErrShortRead), errors.Is(err, ErrShortWrite):
		return ErrTypeIOShortfall, true
	case errors.Is(err, ErrNoFreeFrame):
		return ErrTypeNoMemory, true
	case errors.Is(err, ErrPageSpent), errors.Is(err, ErrPageNotFound):
		return ErrTypeAccessViolation, true
	}
	return ErrTypeNoMemory, false
}

// IsAccessViolation reports whether err must terminate the faulting process
// without retry.
func IsAccessViolation(err error) bool {
	t, ok := TypeOf(err)
	return ok && t == ErrTypeAccessViolation
}
