// Package swap allocates page-sized slots on the swap disk and moves evicted
// anonymous pages to and from them.
package swap

import (
	"fmt"
	"sync"

	"github.com/bietkhonhungvandi212/pagevm/internal/storage/disk"
	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
	"github.com/bits-and-blooms/bitset"
	"github.com/sirupsen/logrus"
)

// Store is the swap slot table. Slot N occupies sectors
// [N*SectorsPerPage, N*SectorsPerPage+SectorsPerPage) on the device. A set bit
// means the slot holds evicted data.
type Store struct {
	mu    sync.Mutex
	dev   disk.Disk
	used  *bitset.BitSet
	slots int
	log   *logrus.Logger
}

// New sizes the slot table from the sector count of dev.
func New(dev disk.Disk, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	slots := int(dev.Size()) / util.SectorsPerPage
	s := &Store{
		dev:   dev,
		used:  bitset.New(uint(slots)),
		slots: slots,
		log:   log,
	}
	log.WithField("slots", slots).Debug("swap store ready")
	return s
}

// Allocate claims the lowest free slot. It returns util.ErrSwapFull when every
// slot holds data.
func (s *Store) Allocate() (util.SlotID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot, ok := s.used.NextClear(0); ok && slot < uint(s.slots) {
		s.used.Set(slot)
		return util.SlotID(slot), nil
	}
	s.log.WithField("slots", s.slots).Error("swap disk is full")
	return util.InvalidSlot, util.ErrSwapFull
}

// Write stores one page at slot, sector by sector.
func (s *Store) Write(slot util.SlotID, page []byte) error {
	if err := s.check(slot, page); err != nil {
		return fmt.Errorf("[swap] [Write] %w", err)
	}
	base := disk.Sector(int(slot) * util.SectorsPerPage)
	for i := 0; i < util.SectorsPerPage; i++ {
		buf := page[i*util.SectorSize : (i+1)*util.SectorSize]
		if err := s.dev.WriteSector(base+disk.Sector(i), buf); err != nil {
			return fmt.Errorf("[swap] [Write] slot %d: %w", slot, err)
		}
	}
	s.log.WithField("slot", slot).Debug("swap out")
	return nil
}

// Read loads the page held at slot into page, sector by sector.
func (s *Store) Read(slot util.SlotID, page []byte) error {
	if err := s.check(slot, page); err != nil {
		return fmt.Errorf("[swap] [Read] %w", err)
	}
	base := disk.Sector(int(slot) * util.SectorsPerPage)
	for i := 0; i < util.SectorsPerPage; i++ {
		buf := page[i*util.SectorSize : (i+1)*util.SectorSize]
		if err := s.dev.ReadSector(base+disk.Sector(i), buf); err != nil {
			return fmt.Errorf("[swap] [Read] slot %d: %w", slot, err)
		}
	}
	s.log.WithField("slot", slot).Debug("swap in")
	return nil
}

// Release frees slot for reuse. Each allocation is released exactly once.
func (s *Store) Release(slot util.SlotID) error {
	if !slot.Valid() || int(slot) >= s.slots {
		return fmt.Errorf("[swap] [Release] slot %d: %w", slot, util.ErrSlotOutOfRange)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.used.Test(uint(slot)) {
		return fmt.Errorf("[swap] [Release] slot %d: %w", slot, util.ErrSlotNotInUse)
	}
	s.used.Clear(uint(slot))
	return nil
}

// Slots returns the capacity of the store.
func (s *Store) Slots() int {
	return s.slots
}

// InUse returns the number of slots holding data.
func (s *Store) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.used.Count())
}

func (s *Store) check(slot util.SlotID, page []byte) error {
	if !slot.Valid() || int(slot) >= s.slots {
		return fmt.Errorf("slot %d: %w", slot, util.ErrSlotOutOfRange)
	}
	if len(page) != util.PageSize {
		return fmt.Errorf("buffer of %d bytes: %w", len(page), util.ErrInvalidBufferSize)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.used.Test(uint(slot)) {
		return fmt.Errorf("slot %d: %w", slot, util.ErrSlotNotInUse)
	}
	return nil
}
