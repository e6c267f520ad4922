package file

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	util "github.com/bietkhonhungvandi212/pagevm/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// Helper function to create an os file with data
func createOSFile(t *testing.T, data []byte) (string, func()) {
	t.Helper()
	path, cleanup := util.CreateTempFile(t)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path, cleanup
}

func TestMemFS(t *testing.T) {
	fs := NewFS()
	require.NoError(t, fs.Create("a.txt", []byte("hello world")))

	t.Run("OpenMissing", func(t *testing.T) {
		_, err := fs.Open("missing")
		assert.ErrorIs(t, err, util.ErrFileNotFound)
	})

	t.Run("ReadAt", func(t *testing.T) {
		f, err := fs.Open("a.txt")
		require.NoError(t, err)
		defer f.Close()

		buf := make([]byte, 5)
		n, err := f.ReadAt(buf, 6)
		assert.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "world", string(buf))

		n, err = f.ReadAt(make([]byte, 20), 6)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, 5, n, "short read at end of file")
		assert.Equal(t, int64(11), f.Length())
	})

	t.Run("WriteAtExtends", func(t *testing.T) {
		f, err := fs.Open("a.txt")
		require.NoError(t, err)
		defer f.Close()

		n, err := f.WriteAt([]byte("!!"), 11)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		data, err := fs.Contents("a.txt")
		require.NoError(t, err)
		assert.Equal(t, "hello world!!", string(data))
	})

	t.Run("ReopenIsIndependent", func(t *testing.T) {
		before := fs.OpenHandles()
		f, err := fs.Open("a.txt")
		require.NoError(t, err)
		g, err := f.Reopen()
		require.NoError(t, err)
		assert.Equal(t, before+2, fs.OpenHandles())

		require.NoError(t, f.Close())
		buf := make([]byte, 5)
		_, err = g.ReadAt(buf, 0)
		assert.NoError(t, err, "reopened handle survives the first one")
		assert.Equal(t, "hello", string(buf))

		_, err = f.ReadAt(buf, 0)
		assert.ErrorIs(t, err, util.ErrFileClosed)
		require.NoError(t, g.Close())
		assert.Equal(t, before, fs.OpenHandles())
	})

	t.Run("RetainAndLastReference", func(t *testing.T) {
		before := fs.OpenHandles()
		f, err := fs.Open("a.txt")
		require.NoError(t, err)
		assert.True(t, f.LastReference())

		g := f.Retain()
		assert.False(t, f.LastReference())
		require.NoError(t, g.Close())
		assert.True(t, f.LastReference())
		assert.Equal(t, before+1, fs.OpenHandles(), "handle still open")

		require.NoError(t, f.Close())
		assert.Equal(t, before, fs.OpenHandles())
		assert.ErrorIs(t, f.Close(), util.ErrFileClosed, "close past zero")
		assert.Panics(t, func() { f.Retain() })
	})

	t.Run("SharedContents", func(t *testing.T) {
		require.NoError(t, fs.Create("b.txt", []byte("abcdef")))
		f, err := fs.Open("b.txt")
		require.NoError(t, err)
		defer f.Close()
		g, err := f.Reopen()
		require.NoError(t, err)
		defer g.Close()

		require.NoError(t, WriteFull(g, []byte("XY"), 2))
		buf := make([]byte, 6)
		require.NoError(t, ReadFull(f, buf, 0))
		assert.Equal(t, "abXYef", string(buf), "writes through one handle are visible in the other")

		require.NoError(t, fs.Create("b.txt", []byte("z")))
		assert.Equal(t, int64(1), f.Length(), "create truncates under open handles")
	})

	t.Run("Bounds", func(t *testing.T) {
		f, err := fs.Open("a.txt")
		require.NoError(t, err)
		defer f.Close()

		n, err := f.ReadAt(make([]byte, 4), f.Length())
		assert.ErrorIs(t, err, io.EOF)
		assert.Zero(t, n)
		n, err = f.ReadAt(make([]byte, 4), f.Length()+100)
		assert.ErrorIs(t, err, io.EOF)
		assert.Zero(t, n)

		_, err = f.ReadAt(make([]byte, 4), -1)
		assert.Error(t, err)
		_, err = f.WriteAt([]byte("x"), -1)
		assert.Error(t, err)
	})

	t.Run("ConcurrentReadAt", func(t *testing.T) {
		data := util.Pattern(5)
		require.NoError(t, fs.Create("page", data))
		f, err := fs.Open("page")
		require.NoError(t, err)
		defer f.Close()

		const chunk = 256
		var wg sync.WaitGroup
		errs := make([]error, len(data)/chunk)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				buf := make([]byte, chunk)
				for range 50 {
					if err := ReadFull(f, buf, int64(i*chunk)); err != nil {
						errs[i] = err
						return
					}
					if !bytes.Equal(buf, data[i*chunk:(i+1)*chunk]) {
						errs[i] = fmt.Errorf("chunk %d mismatch", i)
						return
					}
				}
			}()
		}
		wg.Wait()
		for _, err := range errs {
			assert.NoError(t, err)
		}
	})
}

func TestOSFile(t *testing.T) {
	path, cleanup := createOSFile(t, []byte("0123456789"))
	defer cleanup()

	f, err := OpenOS(path)
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.Length())

	g, err := f.Reopen()
	require.NoError(t, err)

	require.NoError(t, WriteFull(g, []byte("ab"), 10))
	buf := make([]byte, 12)
	require.NoError(t, ReadFull(f, buf, 0))
	assert.Equal(t, "0123456789ab", string(buf), "writes through one handle are visible in the other")

	require.NoError(t, g.Close())
	require.NoError(t, f.Close())
	_, err = f.Reopen()
	assert.ErrorIs(t, err, util.ErrFileClosed)

	_, err = OpenOS(path + ".missing")
	assert.Error(t, err)
}

func TestReadWriteFull(t *testing.T) {
	fs := NewFS()
	require.NoError(t, fs.Create("short", []byte("abc")))
	f, err := fs.Open("short")
	require.NoError(t, err)
	defer f.Close()

	assert.ErrorIs(t, ReadFull(f, make([]byte, 4), 0), util.ErrShortRead)
	assert.NoError(t, ReadFull(f, make([]byte, 3), 0))
	assert.NoError(t, ReadFull(f, nil, 100), "empty read never falls short")

	ctrl := gomock.NewController(t)
	mf := NewMockFile(ctrl)
	mf.EXPECT().WriteAt(gomock.Any(), int64(8)).Return(2, nil)
	assert.ErrorIs(t, WriteFull(mf, make([]byte, 4), 8), util.ErrShortWrite)

	mf.EXPECT().ReadAt(gomock.Any(), int64(0)).Return(1, io.ErrUnexpectedEOF)
	err = ReadFull(mf, make([]byte, 4), 0)
	assert.ErrorIs(t, err, util.ErrShortRead)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
