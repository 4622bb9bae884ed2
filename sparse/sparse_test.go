package sparse

import (
	"bytes"
	"io"
	"os"
	"testing"
)

func tempFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp("", "sparse-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		f.Close()
		os.Remove(f.Name())
	})
	return f
}

func TestWriteSparselyAllZeros(t *testing.T) {
	f := tempFile(t)
	buf := make([]byte, 10000)

	pending, err := WriteSparsely(f, buf, 4096, 0)
	if err != nil {
		t.Fatal(err)
	}
	if pending != 10000 {
		t.Fatalf("pending = %d, want 10000", pending)
	}

	info, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Fatalf("file size = %d, want 0 (no syscalls should have happened)", info.Size())
	}
}

func TestWriteSparselyEmptyBuffer(t *testing.T) {
	f := tempFile(t)
	pending, err := WriteSparsely(f, nil, 4096, 7)
	if err != nil {
		t.Fatal(err)
	}
	if pending != 7 {
		t.Fatalf("pending = %d, want 7 (unchanged)", pending)
	}
}

func TestWriteSparselyInterleaved(t *testing.T) {
	f := tempFile(t)

	buf := append([]byte("A"), make([]byte, 8192)...)
	buf = append(buf, 'B')

	pending, err := WriteSparsely(f, buf, 4096, 0)
	if err != nil {
		t.Fatal(err)
	}
	if pending != 0 {
		t.Fatalf("pending = %d, want 0", pending)
	}

	got := make([]byte, len(buf))
	if _, err := f.ReadAt(got, 0); err != nil {
		t.Fatal(err)
	}
	if got[0] != 'A' {
		t.Fatalf("byte 0 = %q, want 'A'", got[0])
	}
	if got[len(got)-1] != 'B' {
		t.Fatalf("last byte = %q, want 'B'", got[len(got)-1])
	}
	for i := 1; i < len(got)-1; i++ {
		if got[i] != 0 {
			t.Fatalf("byte %d = %d, want 0", i, got[i])
		}
	}
}

func TestWriteSparselyRoundTripNonHoleBytes(t *testing.T) {
	f := tempFile(t)

	buf := []byte("hello")
	buf = append(buf, make([]byte, 9000)...)
	buf = append(buf, []byte("world")...)

	prev, err := WriteSparsely(f, buf, 4096, 0)
	if err != nil {
		t.Fatal(err)
	}
	// Flush any trailing pending zeros so the readback covers the whole
	// logical buffer.
	if prev > 0 {
		if _, err := f.Seek(prev, io.SeekCurrent); err != nil {
			t.Fatal(err)
		}
	}

	got := make([]byte, len(buf))
	if _, err := f.ReadAt(got, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, buf) {
		t.Fatalf("readback did not match original buffer")
	}
}

func TestWriteSparselyRejectsBadArgs(t *testing.T) {
	f := tempFile(t)
	if _, err := WriteSparsely(f, []byte{1}, 0, 0); err == nil {
		t.Fatal("expected error for non-positive minSparseLen")
	}
	if _, err := WriteSparsely(f, []byte{1}, 10, -1); err == nil {
		t.Fatal("expected error for negative prevSparseLen")
	}
}
