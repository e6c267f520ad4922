package file

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
	"github.com/spf13/afero"
)

// FS is an in-memory filesystem backed by an afero MemMapFs. Every handle is a
// separate afero file on the same data, so handles share contents but not
// offsets.
type FS struct {
	fs   afero.Fs
	open atomic.Int64
}

// NewFS returns an empty filesystem.
func NewFS() *FS {
	return &FS{fs: afero.NewMemMapFs()}
}

// Create creates or truncates name with a copy of data.
func (fs *FS) Create(name string, data []byte) error {
	if err := afero.WriteFile(fs.fs, name, data, 0o644); err != nil {
		return fmt.Errorf("create %q: %w", name, err)
	}
	return nil
}

// Open returns a new handle on name.
func (fs *FS) Open(name string) (File, error) {
	h, err := fs.openHandle(name)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", name, err)
	}
	return h, nil
}

// Contents returns a copy of the bytes of name.
func (fs *FS) Contents(name string) ([]byte, error) {
	data, err := afero.ReadFile(fs.fs, name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("contents of %q: %w", name, util.ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("contents of %q: %w", name, err)
	}
	return data, nil
}

// OpenHandles returns the number of handles not yet closed.
func (fs *FS) OpenHandles() int {
	return int(fs.open.Load())
}

func (fs *FS) openHandle(name string) (*memFile, error) {
	f, err := fs.fs.OpenFile(name, os.O_RDWR, 0)
	if errors.Is(err, os.ErrNotExist) {
		return nil, util.ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	h := &memFile{fs: fs, name: name, f: f}
	h.init()
	fs.open.Add(1)
	return h, nil
}

// memFile is one open afero file. afero positions ReadAt and WriteAt through
// the handle offset, so mu serializes them per handle.
type memFile struct {
	refs
	fs   *FS
	name string

	mu sync.Mutex
	f  afero.File
}

func (h *memFile) ReadAt(p []byte, off int64) (int, error) {
	if !h.live() {
		return 0, util.ErrFileClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	n, err := h.f.ReadAt(p, off)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n, err
}

func (h *memFile) WriteAt(p []byte, off int64) (int, error) {
	if !h.live() {
		return 0, util.ErrFileClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.f.WriteAt(p, off)
}

func (h *memFile) Length() int64 {
	info, err := h.f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (h *memFile) Reopen() (File, error) {
	if !h.live() {
		return nil, util.ErrFileClosed
	}
	c, err := h.fs.openHandle(h.name)
	if err != nil {
		return nil, fmt.Errorf("reopen %q: %w", h.name, err)
	}
	return c, nil
}

func (h *memFile) Retain() File {
	h.retain()
	return h
}

func (h *memFile) LastReference() bool {
	return h.n.Load() == 1
}

func (h *memFile) Close() error {
	last, err := h.release()
	if err != nil {
		return err
	}
	if !last {
		return nil
	}
	h.fs.open.Add(-1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.f.Close(); err != nil {
		return fmt.Errorf("close %q: %w", h.name, err)
	}
	return nil
}
