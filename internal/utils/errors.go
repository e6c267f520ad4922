package util

import "errors"

var (
	ErrInvalidPoolSize    = errors.New("invalid pool size")
	ErrInvalidOptions     = errors.New("invalid options")
	ErrNoFreeFrame        = errors.New("no free frames")
	ErrDoubleFree         = errors.New("frame freed twice")
	ErrOutBoundOfFrame    = errors.New("frame idx out of bound")
	ErrSwapFull           = errors.New("swap disk is full")
	ErrSlotOutOfRange     = errors.New("swap slot out of range")
	ErrSlotNotInUse       = errors.New("swap slot is not in use")
	ErrSectorOutOfRange   = errors.New("sector out of range")
	ErrInvalidBufferSize  = errors.New("invalid buffer size")
	ErrShortRead          = errors.New("short read")
	ErrShortWrite         = errors.New("short write")
	ErrFileClosed         = errors.New("file is closed")
	ErrFileNotFound       = errors.New("file not found")
	ErrPageExists         = errors.New("page already exists at address")
	ErrPageNotFound       = errors.New("page not found")
	ErrPageSpent          = errors.New("page initializer already consumed")
	ErrNotPageAligned     = errors.New("address is not page aligned")
	ErrNullAddress        = errors.New("null address")
	ErrKernelAddress      = errors.New("kernel address from user context")
	ErrWriteProtected     = errors.New("write to read-only mapping")
	ErrReadOnlyPage       = errors.New("write to non-writable page")
	ErrNoMapping          = errors.New("no page and not a stack access")
	ErrInvalidLength      = errors.New("invalid length")
	ErrInvalidKind        = errors.New("invalid page kind")
	ErrInvalidAux         = errors.New("invalid page initializer data")
	ErrAlreadyMapped      = errors.New("virtual address already mapped")
	ErrNotPresent         = errors.New("page not present")
	ErrAddressSpaceClosed = errors.New("address space destroyed")
)
