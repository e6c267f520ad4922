package vm

import (
	"testing"

	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario: a 10 byte file mapped with length 4096.
func TestMmapSmallFile(t *testing.T) {
	content := []byte("0123456789")
	fs, f := newTestFile(t, "ten", content)
	m, as := newTestSpace(t, 4, 8)

	addr, err := as.Mmap(page(0), util.PageSize, false, f, 0)
	require.NoError(t, err)
	assert.Equal(t, page(0), addr)
	assert.Equal(t, 1, as.SPT().Len())
	assert.Zero(t, m.Stats().FramesInUse, "nothing is read at mmap time")
	assert.Equal(t, 2, fs.OpenHandles(), "region holds its own handle")

	got := make([]byte, util.PageSize)
	require.NoError(t, as.ReadUser(addr, got))
	want := append(append([]byte{}, content...), make([]byte, util.PageSize-len(content))...)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mapped page (-want +got):\n%s", diff)
	}

	require.NoError(t, as.Munmap(addr))
	assert.Zero(t, as.SPT().Len())
	assert.Zero(t, m.Stats().WriteBacks)
	data, err := fs.Contents("ten")
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, 1, fs.OpenHandles())

	require.NoError(t, f.Close())
	assert.Zero(t, fs.OpenHandles())
}

func TestMmapAtomic(t *testing.T) {
	fs, f := newTestFile(t, "data", append(util.Pattern(1), util.Pattern(2)...))
	defer f.Close()
	_, as := newTestSpace(t, 4, 8)
	require.NoError(t, as.AllocPage(KindAnon, page(2), true, nil, nil))

	_, err := as.Mmap(page(0), 4*util.PageSize, true, f, 0)
	assert.ErrorIs(t, err, util.ErrPageExists)
	assert.Equal(t, 1, as.SPT().Len(), "pages created before the collision are gone")
	assert.Nil(t, as.SPT().Find(page(0)))
	assert.Nil(t, as.SPT().Find(page(1)))
	assert.Empty(t, as.Regions())
	assert.Equal(t, 1, fs.OpenHandles(), "reopened handle closed")
}

func TestMmapValidation(t *testing.T) {
	_, f := newTestFile(t, "data", util.Pattern(1))
	defer f.Close()
	_, empty := newTestFile(t, "empty", nil)
	defer empty.Close()

	tests := []struct {
		name   string
		addr   util.Addr
		length uint64
		offset int64
		nilF   bool
		empty  bool
		err    error
	}{
		{name: "Null", addr: 0, length: 10, err: util.ErrNullAddress},
		{name: "UnalignedAddr", addr: page(0) + 10, length: 10, err: util.ErrNotPageAligned},
		{name: "UnalignedOffset", addr: page(0), length: 10, offset: 100, err: util.ErrNotPageAligned},
		{name: "NegativeOffset", addr: page(0), length: 10, offset: -util.PageSize, err: util.ErrNotPageAligned},
		{name: "ZeroLength", addr: page(0), length: 0, err: util.ErrInvalidLength},
		{name: "NilFile", addr: page(0), length: 10, nilF: true, err: util.ErrInvalidLength},
		{name: "IntoKernel", addr: util.KernBase - util.PageSize, length: 2 * util.PageSize, err: util.ErrKernelAddress},
		{name: "Wraps", addr: page(0), length: ^uint64(0) - 10, err: util.ErrKernelAddress},
		{name: "EmptyFile", addr: page(0), length: 10, empty: true, err: util.ErrInvalidLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, as := newTestSpace(t, 2, 0)
			mf := f
			if tt.nilF {
				mf = nil
			}
			if tt.empty {
				mf = empty
			}
			_, err := as.Mmap(tt.addr, tt.length, true, mf, tt.offset)
			assert.ErrorIs(t, err, tt.err)
			typ, _ := util.TypeOf(err)
			assert.Equal(t, util.ErrTypeInvalidArgument, typ)
			assert.Zero(t, as.SPT().Len())
		})
	}
	assert.True(t, f.LastReference())
}

func TestMmapLayout(t *testing.T) {
	data := append(util.Pattern(1), util.Pattern(2)[:904]...) // 5000 bytes
	fs, f := newTestFile(t, "data", data)
	defer f.Close()
	m, as := newTestSpace(t, 4, 8)

	t.Run("Offset", func(t *testing.T) {
		_, err := as.Mmap(page(10), util.PageSize, false, f, util.PageSize)
		require.NoError(t, err)
		got := make([]byte, util.PageSize)
		require.NoError(t, as.ReadUser(page(10), got))
		assert.Equal(t, data[util.PageSize:], got[:904])
		assert.Equal(t, make([]byte, util.PageSize-904), got[904:])
		require.NoError(t, as.Munmap(page(10)))
	})

	t.Run("TailNotWrittenBack", func(t *testing.T) {
		_, err := as.Mmap(page(0), 3*util.PageSize, true, f, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, as.SPT().Len(), "length decides the page count")

		require.NoError(t, as.WriteUser(page(1)+5, []byte("hi")))
		require.NoError(t, as.WriteUser(page(1)+1000, []byte("zz")))
		require.NoError(t, as.WriteUser(page(2), []byte("past the end")))

		require.NoError(t, as.Munmap(page(0)))
		got, err := fs.Contents("data")
		require.NoError(t, err)
		assert.Len(t, got, len(data), "file never grows")
		assert.Equal(t, "hi", string(got[util.PageSize+5:util.PageSize+7]))
		assert.Equal(t, data[:util.PageSize], got[:util.PageSize])
		assert.Equal(t, uint64(1), m.Stats().WriteBacks)
		assert.Zero(t, as.SPT().Len())
		assert.Zero(t, m.Stats().FramesInUse)
	})

	t.Run("UnknownBase", func(t *testing.T) {
		_, err := as.Mmap(page(0), util.PageSize, true, f, 0)
		require.NoError(t, err)
		assert.NoError(t, as.Munmap(page(1)))
		assert.NoError(t, as.Munmap(page(100)))
		assert.Len(t, as.Regions(), 1)
		require.NoError(t, as.Munmap(page(0)))
	})

	t.Run("Regions", func(t *testing.T) {
		for _, i := range []int{20, 4, 12} {
			_, err := as.Mmap(page(i), 2*util.PageSize, false, f, 0)
			require.NoError(t, err)
		}
		regions := as.Regions()
		require.Len(t, regions, 3)
		for i, want := range []util.Addr{page(4), page(12), page(20)} {
			assert.Equal(t, want, regions[i].Base)
			assert.Equal(t, 2, regions[i].Pages)
			assert.Equal(t, want+2*util.PageSize, regions[i].End())
		}
		_, err := as.Mmap(page(5), util.PageSize, false, f, 0)
		assert.ErrorIs(t, err, util.ErrPageExists, "overlapping mapping")
		require.NoError(t, as.Destroy())
		assert.Equal(t, 1, fs.OpenHandles())
	})
}
