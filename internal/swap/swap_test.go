package swap

import (
	"testing"

	"github.com/bietkhonhungvandi212/pagevm/internal/storage/disk"
	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate(t *testing.T) {
	// 3 full slots plus a trailing partial one that must never be handed out
	s := New(disk.NewMemDisk(3*util.SectorsPerPage+4), nil)
	assert.Equal(t, 3, s.Slots())

	for want := 0; want < 3; want++ {
		slot, err := s.Allocate()
		require.NoError(t, err)
		assert.Equal(t, util.SlotID(want), slot, "lowest free slot first")
	}
	assert.Equal(t, 3, s.InUse())

	_, err := s.Allocate()
	assert.ErrorIs(t, err, util.ErrSwapFull)

	require.NoError(t, s.Release(1))
	slot, err := s.Allocate()
	require.NoError(t, err)
	assert.Equal(t, util.SlotID(1), slot, "released slot is reused")
}

func TestAllocateWide(t *testing.T) {
	t.Run("NoSlots", func(t *testing.T) {
		s := New(disk.NewMemDisk(util.SectorsPerPage-1), nil)
		assert.Zero(t, s.Slots())
		_, err := s.Allocate()
		assert.ErrorIs(t, err, util.ErrSwapFull)
		assert.Zero(t, s.InUse())
	})

	t.Run("PastFirstWord", func(t *testing.T) {
		const slots = 130
		s := New(disk.NewMemDisk(slots*util.SectorsPerPage), nil)
		for want := 0; want < slots; want++ {
			slot, err := s.Allocate()
			require.NoError(t, err)
			require.Equal(t, util.SlotID(want), slot)
		}
		_, err := s.Allocate()
		require.ErrorIs(t, err, util.ErrSwapFull)

		require.NoError(t, s.Release(129))
		require.NoError(t, s.Release(64))
		assert.Equal(t, slots-2, s.InUse())

		for _, want := range []util.SlotID{64, 129} {
			slot, err := s.Allocate()
			require.NoError(t, err)
			assert.Equal(t, want, slot)
		}
		assert.Equal(t, slots, s.InUse())
	})
}

func TestRelease(t *testing.T) {
	s := New(disk.NewMemDisk(2*util.SectorsPerPage), nil)

	t.Run("NotInUse", func(t *testing.T) {
		assert.ErrorIs(t, s.Release(0), util.ErrSlotNotInUse)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		assert.ErrorIs(t, s.Release(2), util.ErrSlotOutOfRange)
		assert.ErrorIs(t, s.Release(util.InvalidSlot), util.ErrSlotOutOfRange)
	})

	t.Run("Twice", func(t *testing.T) {
		slot, err := s.Allocate()
		require.NoError(t, err)
		require.NoError(t, s.Release(slot))
		assert.ErrorIs(t, s.Release(slot), util.ErrSlotNotInUse)
		assert.Equal(t, 0, s.InUse())
	})
}

func TestRoundTrip(t *testing.T) {
	path, cleanup := util.CreateTempFile(t)
	defer cleanup()
	fd, err := disk.NewFileDisk(path, 4*util.SectorsPerPage)
	require.NoError(t, err)
	defer fd.Close()

	devices := map[string]disk.Disk{
		"MemDisk":  disk.NewMemDisk(4 * util.SectorsPerPage),
		"FileDisk": fd,
	}
	for name, dev := range devices {
		t.Run(name, func(t *testing.T) {
			s := New(dev, nil)
			a, err := s.Allocate()
			require.NoError(t, err)
			b, err := s.Allocate()
			require.NoError(t, err)

			require.NoError(t, s.Write(a, util.Pattern(1)))
			require.NoError(t, s.Write(b, util.Pattern(2)))

			got := make([]byte, util.PageSize)
			require.NoError(t, s.Read(a, got))
			assert.Equal(t, util.Pattern(1), got)
			require.NoError(t, s.Read(b, got))
			assert.Equal(t, util.Pattern(2), got)

			// slot b lives in sectors [8, 16)
			sec := make([]byte, util.SectorSize)
			require.NoError(t, dev.ReadSector(disk.Sector(util.SectorsPerPage), sec))
			assert.Equal(t, util.Pattern(2)[:util.SectorSize], sec)
		})
	}
}

func TestCheck(t *testing.T) {
	s := New(disk.NewMemDisk(util.SectorsPerPage), nil)
	page := make([]byte, util.PageSize)

	assert.ErrorIs(t, s.Write(0, page), util.ErrSlotNotInUse)
	assert.ErrorIs(t, s.Read(5, page), util.ErrSlotOutOfRange)

	slot, err := s.Allocate()
	require.NoError(t, err)
	assert.ErrorIs(t, s.Write(slot, page[:10]), util.ErrInvalidBufferSize)
}
