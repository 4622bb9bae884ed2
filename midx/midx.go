// Package midx merges several sorted IDX streams into one MIDX file: a
// fan-out table and a pair of parallel OID/name arrays.
package midx

import (
	"container/heap"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/flashpack/corepack"
	"github.com/flashpack/corepack/oid"
)

// HeaderLen is the size of the caller-filled MIDX header that precedes
// the fan-out table. The merger never writes it.
const HeaderLen = 12

// Input is one sorted IDX stream being merged. Map holds (at least) the
// OID array at ShaOffset, Len entries of oid.Size bytes each, optionally
// paired with a big-endian uint32 name array at NameOffset (zero means
// "no name array for this input" — names are synthesized from
// NameBase alone).
type Input struct {
	Map        []byte
	Len        int
	ShaOffset  int
	NameOffset int // 0 if absent
	NameBase   uint32
}

func (in *Input) oidAt(i int) oid.OID {
	off := in.ShaOffset + i*oid.Size
	o, _ := oid.New(in.Map[off : off+oid.Size])
	return o
}

func (in *Input) nameAt(i int) uint32 {
	if in.NameOffset == 0 {
		return in.NameBase
	}
	off := in.NameOffset + i*4
	return binary.BigEndian.Uint32(in.Map[off:off+4]) + in.NameBase
}

// cursor tracks one Input's position for the k-way merge.
type cursor struct {
	in  *Input
	pos int
}

func (c *cursor) done() bool   { return c.pos >= c.in.Len }
func (c *cursor) oid() oid.OID { return c.in.oidAt(c.pos) }
func (c *cursor) name() uint32 { return c.in.nameAt(c.pos) }

// cursorHeap is a min-heap over cursor.oid(), giving the smallest
// current OID across all inputs. The spec's original C implementation
// hand-rolls a reverse-sorted array with a binary-search reinsertion;
// container/heap expresses the same k-way merge and is the standard
// library's idiomatic tool for it (see DESIGN.md).
type cursorHeap []*cursor

func (h cursorHeap) Len() int            { return len(h) }
func (h cursorHeap) Less(i, j int) bool  { return h[i].oid() < h[j].oid() }
func (h cursorHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x interface{}) { *h = append(*h, x.(*cursor)) }
func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Merge performs the k-way merge of inputs into fmap, writing a
// 2^bits-entry fan-out table followed by total OIDs and total names.
// fmap must already contain the caller-filled 12-byte header; the
// merger writes starting at byte HeaderLen. It returns the number of
// OIDs written, which always equals total on success.
//
// Duplicate OIDs across inputs are NOT suppressed: each occurrence is
// emitted. Callers that want unique output must pass deduplicated
// inputs; tie order among equal OIDs is otherwise unspecified.
func Merge(fmap []byte, bits uint, total int, inputs []Input) (int, error) {
	fanLen := 1 << bits
	fanOff := HeaderLen
	shaOff := fanOff + 4*fanLen
	nameOff := shaOff + oid.Size*total

	if len(fmap) < nameOff+4*total {
		return 0, fmt.Errorf("midx: mapping too small for %d entries at bits=%d", total, bits)
	}

	h := make(cursorHeap, 0, len(inputs))
	for i := range inputs {
		c := &cursor{in: &inputs[i]}
		if !c.done() {
			h = append(h, c)
		}
	}
	heap.Init(&h)

	var count uint32
	var prefix uint32
	progressEvery := 0

	for h.Len() > 0 {
		if corepack.StderrIsTTY() && progressEvery%102400 == 0 {
			// Best-effort progress only; see spec's Open Question about
			// the original constant. Not observable behavior otherwise.
			fmt.Fprintf(os.Stderr, "midx: writing %.2f%% (%d/%d)\r", float64(count)*100/float64(total), count, total)
		}
		progressEvery++

		c := h[0]
		oidBytes := c.oid().Bytes()
		newPrefix := oid.ExtractBits(oidBytes, bits)
		for prefix < newPrefix {
			binary.BigEndian.PutUint32(fmap[fanOff+4*int(prefix):], count)
			prefix++
		}

		copy(fmap[shaOff+int(count)*oid.Size:], oidBytes)
		binary.BigEndian.PutUint32(fmap[nameOff+int(count)*4:], c.name())
		count++

		c.pos++
		if c.done() {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}

	for int(prefix) < fanLen {
		binary.BigEndian.PutUint32(fmap[fanOff+4*int(prefix):], count)
		prefix++
	}

	if int(count) != total {
		return 0, fmt.Errorf("midx: wrote %d entries, expected %d", count, total)
	}

	return int(count), nil
}
