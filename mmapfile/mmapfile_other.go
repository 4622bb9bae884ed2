//go:build !unix

package mmapfile

import (
	"fmt"
	"os"
)

// Map falls back to a plain in-process buffer on platforms without a
// POSIX mmap (there is no Windows equivalent wired here, since nothing
// in the retrieved corpus targets it). The buffer is not backed by f;
// callers wanting the contents persisted must write it back themselves.
func Map(f *os.File, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("mmapfile: negative size")
	}
	return make([]byte, size), nil
}

// Unmap is a no-op: there is no real mapping to release.
func Unmap(b []byte) error {
	return nil
}

// Msync is a no-op: Map never backs b with the file on this platform.
func Msync(b []byte) error {
	return nil
}
