package oid

import "testing"

func TestNewRejectsWrongLength(t *testing.T) {
	if _, err := New(make([]byte, 19)); err == nil {
		t.Fatal("expected error for short buffer")
	}
	if _, err := New(make([]byte, 21)); err == nil {
		t.Fatal("expected error for long buffer")
	}
}

func TestCompareOrdering(t *testing.T) {
	a, _ := New(append([]byte{0x00}, make([]byte, 19)...))
	b, _ := New(append([]byte{0x01}, make([]byte, 19)...))

	if a.Compare(b) >= 0 {
		t.Fatalf("expected a < b")
	}
	if b.Compare(a) <= 0 {
		t.Fatalf("expected b > a")
	}
	if a.Compare(a) != 0 {
		t.Fatalf("expected a == a")
	}
}

func TestExtractBits(t *testing.T) {
	buf := []byte{0xff, 0x00, 0x00, 0x00}
	if got := ExtractBits(buf, 8); got != 0xff {
		t.Fatalf("ExtractBits(8) = %d, want 255", got)
	}
	if got := ExtractBits(buf, 4); got != 0x0f {
		t.Fatalf("ExtractBits(4) = %d, want 15", got)
	}

	buf2 := []byte{0x12, 0x34, 0x56, 0x78}
	if got := ExtractBits(buf2, 16); got != 0x1234 {
		t.Fatalf("ExtractBits(16) = %#x, want 0x1234", got)
	}
}

func TestExtractBitsPanicsOnShortBuffer(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for short buffer")
		}
	}()
	ExtractBits([]byte{1, 2, 3}, 8)
}

func TestBitMatchIdentical(t *testing.T) {
	buf := []byte{0xde, 0xad, 0xbe, 0xef}
	if got := BitMatch(buf, buf); got != 8*len(buf) {
		t.Fatalf("BitMatch(x, x) = %d, want %d", got, 8*len(buf))
	}
}

func TestBitMatchDiffersAtBit(t *testing.T) {
	a := []byte{0b10110000}
	b := []byte{0b10100000}
	// first 3 bits match (101 1 vs 101 0); they differ at bit index 3 (0-based)
	if got := BitMatch(a, b); got != 3 {
		t.Fatalf("BitMatch = %d, want 3", got)
	}
}

func TestBitMatchBoundedByShorterSlice(t *testing.T) {
	a := []byte{0xff, 0xff}
	b := []byte{0xff}
	if got := BitMatch(a, b); got > 8*len(b) {
		t.Fatalf("BitMatch = %d, exceeds 8*min(len)", got)
	}
	if got := BitMatch(a, b); got != 8 {
		t.Fatalf("BitMatch = %d, want 8", got)
	}
}
