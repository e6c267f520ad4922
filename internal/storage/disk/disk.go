// Package disk provides sector-addressed block devices used as swap.
package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
)

// Sector is a sector index on a disk.
type Sector uint32

// Disk reads and writes fixed-size sectors.
type Disk interface {
	// Size returns the number of sectors on the disk.
	Size() Sector
	ReadSector(sec Sector, buf []byte) error
	WriteSector(sec Sector, buf []byte) error
}

func checkSector(d Disk, sec Sector, buf []byte) error {
	if sec >= d.Size() {
		return fmt.Errorf("sector %d of %d: %w", sec, d.Size(), util.ErrSectorOutOfRange)
	}
	if len(buf) != util.SectorSize {
		return fmt.Errorf("buffer of %d bytes: %w", len(buf), util.ErrInvalidBufferSize)
	}
	return nil
}

/**
* FileDisk keeps the disk image in a regular file, one sector after another.
**/
type FileDisk struct {
	File    *os.File
	sectors Sector
}

// NewFileDisk opens (or creates) the image at path and sizes it to sectors.
func NewFileDisk(path string, sectors Sector) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	if err := f.Truncate(int64(sectors) * util.SectorSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate to %d sectors: %w", sectors, err)
	}
	return &FileDisk{File: f, sectors: sectors}, nil
}

func (fd *FileDisk) Size() Sector {
	return fd.sectors
}

/* READ SECTOR */
func (fd *FileDisk) ReadSector(sec Sector, buf []byte) error {
	if err := checkSector(fd, sec, buf); err != nil {
		return fmt.Errorf("[disk] [ReadSector] %w", err)
	}
	n, err := fd.File.ReadAt(buf, int64(sec)*util.SectorSize)
	if n != util.SectorSize {
		return fmt.Errorf("[disk] [ReadSector] sector %d: %d bytes: %w", sec, n, shortIO(util.ErrShortRead, err))
	}
	return nil
}

/* WRITE SECTOR */
func (fd *FileDisk) WriteSector(sec Sector, buf []byte) error {
	if err := checkSector(fd, sec, buf); err != nil {
		return fmt.Errorf("[disk] [WriteSector] %w", err)
	}
	n, err := fd.File.WriteAt(buf, int64(sec)*util.SectorSize)
	if n != util.SectorSize {
		return fmt.Errorf("[disk] [WriteSector] sector %d: %d bytes: %w", sec, n, shortIO(util.ErrShortWrite, err))
	}
	return nil
}

// shortIO keeps the cause of a partial transfer alongside the sentinel.
func shortIO(sentinel, err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return sentinel
	}
	return errors.Join(sentinel, err)
}

/**
* CLOSE FUNCTION
**/
func (fd *FileDisk) Close() error {
	if fd == nil || fd.File == nil {
		return nil // Idempotent
	}
	var err error
	if e := fd.File.Sync(); e != nil {
		err = errors.Join(err, fmt.Errorf("sync file: %w", e))
	}
	if e := fd.File.Close(); e != nil {
		err = errors.Join(err, fmt.Errorf("close file: %w", e))
	}
	fd.File = nil
	return err
}

// MemDisk is a disk held in memory.
type MemDisk struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemDisk returns a zeroed in-memory disk of sectors sectors.
func NewMemDisk(sectors Sector) *MemDisk {
	return &MemDisk{data: make([]byte, int(sectors)*util.SectorSize)}
}

func (md *MemDisk) Size() Sector {
	return Sector(len(md.data) / util.SectorSize)
}

func (md *MemDisk) ReadSector(sec Sector, buf []byte) error {
	if err := checkSector(md, sec, buf); err != nil {
		return fmt.Errorf("[disk] [ReadSector] %w", err)
	}
	md.mu.RLock()
	defer md.mu.RUnlock()
	off := int(sec) * util.SectorSize
	copy(buf, md.data[off:off+util.SectorSize])
	return nil
}

func (md *MemDisk) WriteSector(sec Sector, buf []byte) error {
	if err := checkSector(md, sec, buf); err != nil {
		return fmt.Errorf("[disk] [WriteSector] %w", err)
	}
	md.mu.Lock()
	defer md.mu.Unlock()
	off := int(sec) * util.SectorSize
	copy(md.data[off:off+util.SectorSize], buf)
	return nil
}
