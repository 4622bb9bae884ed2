package segment

import (
	"io"
	"os"
	"testing"
)

func setupTest(t *testing.T, opts ...Option) (*Manager, func()) {
	dir := t.TempDir()
	m, err := NewManager(dir, opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, func() { m.Close() }
}

func TestNewManagerCreatesFirstSegment(t *testing.T) {
	m, cleanup := setupTest(t)
	defer cleanup()

	_, id := m.Active()
	if id != 1 {
		t.Fatalf("activeID = %d, want 1", id)
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "pack-00001.pack" {
		t.Fatalf("unexpected dir contents: %v", entries)
	}
}

func TestNewManagerReopensExisting(t *testing.T) {
	dir := t.TempDir()
	m1, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := m1.Rotate(); err != nil {
		t.Fatal(err)
	}
	if err := m1.Close(); err != nil {
		t.Fatal(err)
	}

	m2, err := NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer m2.Close()

	_, id := m2.Active()
	if id != 2 {
		t.Fatalf("activeID = %d, want 2", id)
	}
}

func TestWriteActiveRotatesWhenFull(t *testing.T) {
	m, cleanup := setupTest(t, WithMaxSegmentSize(10))
	defer cleanup()

	for i := 0; i < 50; i++ {
		err := m.WriteActive(5, func(w io.Writer) {
			w.Write([]byte("hello"))
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 25 {
		t.Fatalf("expected 25 segments, got %d", len(entries))
	}
}

func TestWriteActiveRejectsOversizedWrite(t *testing.T) {
	m, cleanup := setupTest(t, WithMaxSegmentSize(4))
	defer cleanup()

	err := m.WriteActive(5, func(w io.Writer) {})
	if err == nil {
		t.Fatal("expected error for write exceeding max segment size")
	}
}
