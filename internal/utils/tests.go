package util

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func CreateTempFile(t *testing.T) (string, func()) {
	t.Helper()
	tempDir := t.TempDir()
	tempFile := filepath.Join(tempDir, fmt.Sprintf("pagevm-test-%d.dat", rand.Intn(100)+10))
	return tempFile, func() {
		os.Remove(tempFile)
	}
}

// Pattern returns a page-sized buffer filled with a byte sequence derived from
// seed, so pages written with different seeds never compare equal.
func Pattern(seed byte) []byte {
	buf := make([]byte, PageSize)
	for i := range buf {
		buf[i] = seed ^ byte(i*7)
	}
	return buf
}
