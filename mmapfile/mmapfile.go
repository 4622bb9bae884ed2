//go:build unix

// Package mmapfile provides thin POSIX mmap/munmap/msync helpers so the
// writable "mapping" parameters of packidx and midx can be backed by a
// real file, as the spec's "pre-allocated, mapped region" implies,
// instead of only a plain in-process buffer. packidx calls Msync; midx
// does not use this package itself.
package mmapfile

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

var (
	mappedMu sync.Mutex
	mapped   = map[uintptr]int{} // base address -> length, for Msync/Unmap bookkeeping
)

func baseAddr(b []byte) uintptr {
	if len(b) == 0 && cap(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[:1][0]))
}

// Map maps the first size bytes of f for shared reading and writing and
// returns the resulting byte slice. The file must already be at least
// size bytes (callers typically Truncate first).
func Map(f *os.File, size int) ([]byte, error) {
	b, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: mmap %s: %w", f.Name(), err)
	}

	mappedMu.Lock()
	mapped[baseAddr(b)] = len(b)
	mappedMu.Unlock()

	return b, nil
}

// Unmap releases a mapping previously returned by Map.
func Unmap(b []byte) error {
	mappedMu.Lock()
	delete(mapped, baseAddr(b))
	mappedMu.Unlock()

	if err := unix.Munmap(b); err != nil {
		return fmt.Errorf("mmapfile: munmap: %w", err)
	}
	return nil
}

// Msync issues a best-effort asynchronous flush of b to its backing
// file. It is a silent no-op if b was not obtained from Map — a plain
// make([]byte, n) buffer has nothing to flush.
func Msync(b []byte) error {
	mappedMu.Lock()
	_, ok := mapped[baseAddr(b)]
	mappedMu.Unlock()

	if !ok {
		return nil
	}
	if err := unix.Msync(b, unix.MS_ASYNC); err != nil {
		return fmt.Errorf("mmapfile: msync: %w", err)
	}
	return nil
}
