package packidx

import (
	"encoding/binary"
	"testing"

	"github.com/flashpack/corepack/oid"
)

func mkoid(b byte, rest byte) oid.OID {
	buf := make([]byte, oid.Size)
	buf[0] = b
	for i := 1; i < oid.Size; i++ {
		buf[i] = rest
	}
	o, err := oid.New(buf)
	if err != nil {
		panic(err)
	}
	return o
}

func TestWriteThreeEntries(t *testing.T) {
	var buckets Buckets
	buckets[0x00] = []Entry{
		{OID: mkoid(0x00, 0x01), CRC: 2, Offset: 0x80000001},
		{OID: mkoid(0x00, 0x00), CRC: 1, Offset: 10},
	}
	buckets[0xff] = []Entry{
		{OID: mkoid(0xff, 0xff), CRC: 3, Offset: 20},
	}

	total := 3
	fmap := make([]byte, Size(total))

	count, err := Write("test.idx", fmap, buckets, total)
	if err != nil {
		t.Fatal(err)
	}
	if count != total {
		t.Fatalf("count = %d, want %d", count, total)
	}

	if string(fmap[:8]) != string(Magic[:]) {
		t.Fatalf("magic mismatch: % x", fmap[:8])
	}

	fan := func(i int) uint32 {
		return binary.BigEndian.Uint32(fmap[8+4*i:])
	}
	if fan(0x00) != 2 {
		t.Fatalf("fan[0] = %d, want 2", fan(0x00))
	}
	if fan(0x01) != 2 || fan(0xfe) != 2 {
		t.Fatalf("fan[1..0xfe] should stay at 2")
	}
	if fan(0xff) != 3 {
		t.Fatalf("fan[0xff] = %d, want 3", fan(0xff))
	}

	// oid[total] starts right after the fan table.
	shaOff := 8 + 4*FanEntries
	firstOID := fmap[shaOff : shaOff+oid.Size]
	if firstOID[0] != 0x00 || firstOID[1] != 0x00 {
		t.Fatalf("bucket 0 not sorted: first oid = % x", firstOID[:2])
	}

	// offset slot 1 (second entry in bucket 0) must carry the overflow
	// marker, and ofs64[0] must hold the real offset.
	crcOff := shaOff + oid.Size*total
	ofsOff := crcOff + 4*total
	ofs64Off := ofsOff + 4*total

	ofsSlot1 := binary.BigEndian.Uint32(fmap[ofsOff+4:])
	if ofsSlot1&0x80000000 == 0 {
		t.Fatalf("expected overflow bit set on slot 1, got %#x", ofsSlot1)
	}
	if ofsSlot1&0x7fffffff != 0 {
		t.Fatalf("expected overflow index 0, got %d", ofsSlot1&0x7fffffff)
	}
	got64 := binary.BigEndian.Uint64(fmap[ofs64Off:])
	if got64 != 0x80000001 {
		t.Fatalf("ofs64[0] = %#x, want 0x80000001", got64)
	}
}

func TestWriteRejectsUndersizedMapping(t *testing.T) {
	var buckets Buckets
	buckets[0] = []Entry{{OID: mkoid(0, 0), CRC: 1, Offset: 1}}
	if _, err := Write("small.idx", make([]byte, 4), buckets, 1); err == nil {
		t.Fatal("expected error for undersized mapping")
	}
}

func TestWriteRejectsWrongOIDLength(t *testing.T) {
	var buckets Buckets
	buckets[0] = []Entry{{OID: oid.OID("short"), CRC: 1, Offset: 1}}
	if _, err := Write("bad.idx", make([]byte, Size(1)), buckets, 1); err == nil {
		t.Fatal("expected error for wrong oid length")
	}
}
