package pack

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/flashpack/corepack/oid"
	"github.com/flashpack/corepack/packidx"
)

// Reader answers membership and offset queries against an in-memory
// copy of a sealed pack's IDX file, using the same
// fan-out-then-binary-search access pattern packidx.Write lays the file
// out for.
type Reader struct {
	packPath string
	idx      []byte
	total    int
}

// OpenReader reads idxPath fully into memory and validates its magic.
func OpenReader(packPath, idxPath string) (*Reader, error) {
	b, err := os.ReadFile(idxPath)
	if err != nil {
		return nil, fmt.Errorf("pack: open idx %s: %w", idxPath, err)
	}
	if len(b) < packidx.HeaderLen || string(b[:8]) != string(packidx.Magic[:]) {
		return nil, fmt.Errorf("pack: %s: bad idx magic", idxPath)
	}

	fanEnd := packidx.HeaderLen + 4*packidx.FanEntries
	total := int(binary.BigEndian.Uint32(b[fanEnd-4:]))

	return &Reader{packPath: packPath, idx: b, total: total}, nil
}

func (r *Reader) fan(i int) uint32 {
	if i < 0 {
		return 0
	}
	return binary.BigEndian.Uint32(r.idx[packidx.HeaderLen+4*i:])
}

func (r *Reader) shaOffset() int {
	return packidx.HeaderLen + 4*packidx.FanEntries
}

func (r *Reader) oidAt(i int) oid.OID {
	off := r.shaOffset() + i*oid.Size
	o, _ := oid.New(r.idx[off : off+oid.Size])
	return o
}

func (r *Reader) find(id oid.OID) (int, bool) {
	if len(id) != oid.Size {
		return 0, false
	}
	b := int(id[0])
	lo := int(r.fan(b - 1))
	hi := int(r.fan(b))

	i := sort.Search(hi-lo, func(i int) bool {
		return r.oidAt(lo+i) >= id
	})
	if lo+i < hi && r.oidAt(lo+i) == id {
		return lo + i, true
	}
	return 0, false
}

// Contains reports whether id is recorded in this pack's IDX.
func (r *Reader) Contains(id oid.OID) bool {
	_, ok := r.find(id)
	return ok
}

// Offset returns the byte offset of id's object within the pack
// segment, resolving the 64-bit overflow table if needed.
func (r *Reader) Offset(id oid.OID) (uint64, bool) {
	i, ok := r.find(id)
	if !ok {
		return 0, false
	}

	crcOff := r.shaOffset() + oid.Size*r.total
	ofsOff := crcOff + 4*r.total
	ofs64Off := ofsOff + 4*r.total

	raw := binary.BigEndian.Uint32(r.idx[ofsOff+4*i:])
	if raw&0x80000000 == 0 {
		return uint64(raw), true
	}
	overflowIdx := raw &^ 0x80000000
	return binary.BigEndian.Uint64(r.idx[ofs64Off+8*int(overflowIdx):]), true
}

// PackPath returns the path of the sealed pack segment this reader's
// IDX refers to.
func (r *Reader) PackPath() string {
	return r.packPath
}
