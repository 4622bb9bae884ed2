// Package staging holds objects that have been accepted into the
// staging log but not yet sealed into a pack segment, kept sorted by
// OID so a pack's 256 IDX buckets can be filled in a single pass.
package staging

import (
	"github.com/flashpack/corepack/memtable"
	"github.com/flashpack/corepack/oid"
)

// Value is what the staging index stores per OID: the CRC32 and flags
// recorded alongside the object in the staging log, plus the payload
// itself.
type Value struct {
	CRC   uint32
	Flags byte
	Data  []byte
}

// Index is the in-memory staging area, a skip list ordered by OID.
type Index struct {
	sl *memtable.SkipList[oid.OID, Value]
}

// New returns an empty staging index.
func New() *Index {
	return &Index{sl: memtable.NewSkipListMemtable[oid.OID, Value]()}
}

// Put records or overwrites the staged value for id.
func (idx *Index) Put(id oid.OID, v Value) {
	idx.sl.Put(id, v)
}

// Get returns the staged value for id, if any.
func (idx *Index) Get(id oid.OID) (Value, bool) {
	return idx.sl.Get(id)
}

// Delete removes any staged value for id.
func (idx *Index) Delete(id oid.OID) {
	idx.sl.Delete(id)
}

// Drain returns every staged record in ascending OID order, the order
// a pack writer needs to bucket entries by their fan-out prefix without
// re-sorting.
func (idx *Index) Drain() []memtable.Record[oid.OID, Value] {
	var out []memtable.Record[oid.OID, Value]
	for rec := range idx.sl.Iterator() {
		out = append(out, rec)
	}
	return out
}
