package file

//go:generate mockgen -source file.go -destination file_mocks.go -package file

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
)

/**
* This module is the filesystem service the memory manager reads and writes
* backing files through. Handles are reference counted: every holder (a mapping
* region, a lazy-load closure, a file-backed page) owns one reference.
**/
type File interface {
	// ReadAt reads len(p) bytes at off. Fewer bytes are returned at end of file.
	ReadAt(p []byte, off int64) (int, error)
	// WriteAt writes len(p) bytes at off, extending the file if needed.
	WriteAt(p []byte, off int64) (int, error)
	// Length returns the current size of the file in bytes.
	Length() int64
	// Reopen opens an independent handle on the same file.
	Reopen() (File, error)
	// Retain adds a reference to this handle and returns it.
	Retain() File
	// LastReference reports whether the caller holds the only reference.
	LastReference() bool
	// Close drops one reference. The handle is closed with the last one.
	Close() error
}

type refs struct {
	n atomic.Int32
}

func (r *refs) init() {
	r.n.Store(1)
}

func (r *refs) retain() {
	if r.n.Add(1) <= 1 {
		panic("[file] retain of a closed handle")
	}
}

func (r *refs) live() bool {
	return r.n.Load() > 0
}

// release drops a reference and reports whether it was the last one.
func (r *refs) release() (bool, error) {
	n := r.n.Add(-1)
	if n < 0 {
		r.n.Add(1)
		return false, util.ErrFileClosed
	}
	return n == 0, nil
}

/**
* OS FILE
**/
type osFile struct {
	refs
	f    *os.File
	path string
}

// OpenOS opens the regular file at path for reading and writing.
func OpenOS(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	h := &osFile{f: f, path: path}
	h.init()
	return h, nil
}

func (h *osFile) ReadAt(p []byte, off int64) (int, error) {
	if !h.live() {
		return 0, util.ErrFileClosed
	}
	return h.f.ReadAt(p, off)
}

func (h *osFile) WriteAt(p []byte, off int64) (int, error) {
	if !h.live() {
		return 0, util.ErrFileClosed
	}
	return h.f.WriteAt(p, off)
}

func (h *osFile) Length() int64 {
	info, err := h.f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (h *osFile) Reopen() (File, error) {
	if !h.live() {
		return nil, util.ErrFileClosed
	}
	return OpenOS(h.path)
}

func (h *osFile) Retain() File {
	h.retain()
	return h
}

func (h *osFile) LastReference() bool {
	return h.n.Load() == 1
}

func (h *osFile) Close() error {
	last, err := h.release()
	if err != nil || !last {
		return err
	}
	var cerr error
	if e := h.f.Sync(); e != nil {
		cerr = errors.Join(cerr, fmt.Errorf("sync file: %w", e))
	}
	if e := h.f.Close(); e != nil {
		cerr = errors.Join(cerr, fmt.Errorf("close file: %w", e))
	}
	return cerr
}

// ReadFull reads exactly len(p) bytes at off, reporting util.ErrShortRead
// otherwise.
func ReadFull(f File, p []byte, off int64) error {
	n, err := f.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = util.ErrShortRead
	} else {
		err = errors.Join(util.ErrShortRead, err)
	}
	return fmt.Errorf("read %d of %d bytes at %d: %w", n, len(p), off, err)
}

// WriteFull writes all of p at off, reporting util.ErrShortWrite otherwise.
func WriteFull(f File, p []byte, off int64) error {
	n, err := f.WriteAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil {
		err = util.ErrShortWrite
	} else {
		err = errors.Join(util.ErrShortWrite, err)
	}
	return fmt.Errorf("wrote %d of %d bytes at %d: %w", n, len(p), off, err)
}
