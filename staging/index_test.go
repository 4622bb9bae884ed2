package staging

import (
	"testing"

	"github.com/flashpack/corepack/oid"
)

func mkoid(b byte) oid.OID {
	buf := make([]byte, oid.Size)
	buf[0] = b
	o, err := oid.New(buf)
	if err != nil {
		panic(err)
	}
	return o
}

func TestPutGetDelete(t *testing.T) {
	idx := New()
	id := mkoid(0x10)

	if _, ok := idx.Get(id); ok {
		t.Fatal("expected miss on empty index")
	}

	idx.Put(id, Value{CRC: 1, Flags: 0, Data: []byte("x")})
	v, ok := idx.Get(id)
	if !ok || v.CRC != 1 || string(v.Data) != "x" {
		t.Fatalf("unexpected value: %+v, ok=%v", v, ok)
	}

	idx.Delete(id)
	if _, ok := idx.Get(id); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestDrainIsSortedByOID(t *testing.T) {
	idx := New()
	ids := []byte{0x30, 0x10, 0x20}
	for _, b := range ids {
		idx.Put(mkoid(b), Value{Data: []byte{b}})
	}

	records := idx.Drain()
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i-1].Key >= records[i].Key {
			t.Fatalf("records not sorted at %d: %v >= %v", i, records[i-1].Key, records[i].Key)
		}
	}
}
