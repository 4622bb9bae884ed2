// Package packidx writes the IDXv2 pack index format: a sorted
// fan-out + SHA + CRC + offset table, with 64-bit offset overflow
// handling, into a pre-sized caller-owned mapping.
package packidx

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/flashpack/corepack"
	"github.com/flashpack/corepack/oid"
)

// Magic is the 8-byte IDXv2 file signature.
var Magic = [8]byte{0xff, 't', 'O', 'c', 0x00, 0x00, 0x00, 0x02}

// FanEntries is the number of fan-out buckets, one per possible first
// byte of an OID.
const FanEntries = 256

const headerLen = 8

// HeaderLen is the number of bytes preceding the fan-out table (just
// the magic signature); exported so readers can locate the fan-out
// table without re-deriving the constant.
const HeaderLen = headerLen

// offsetOverflowBit marks a 32-bit offset slot as an index into the
// 64-bit overflow table rather than a literal offset.
const offsetOverflowBit = 0x80000000

// Entry is one (oid, crc, offset) triple destined for a single fan-out
// bucket.
type Entry struct {
	OID    oid.OID
	CRC    uint32
	Offset uint64
}

// Buckets is the input to Write: exactly FanEntries ordered lists,
// already partitioned by the OID's first byte (bucket i holds only
// OIDs whose first byte is i). Write sorts each bucket by OID before
// emitting it.
type Buckets [FanEntries][]Entry

// Size returns the number of bytes a Write call needs fmap to be, given
// total entries split across FanEntries buckets. It reserves room for a
// 64-bit overflow slot for every entry, so the bytes after the last
// overflowed offset stay zero when fewer offsets overflow.
func Size(total int) int {
	return headerLen + 4*FanEntries + oid.Size*total + 4*total + 4*total + 8*total
}

// Write assembles an IDXv2 file into fmap, a pre-sized, writable
// mapping. total must equal the sum of all bucket lengths. filename is
// used only for error reporting. It returns the number of entries
// written, which always equals total on success.
//
// Layout (all multi-byte integers big-endian):
//
//	0    8  magic
//	8  264  fan[256] uint32 cumulative counts
//	264 ... oid[total]  20 bytes each, sorted
//	      + crc[total]  uint32 each
//	      + ofs[total]  uint32 each, high bit set => index into ofs64
//	      + ofs64[k]    uint64 each, overflowed offsets in insertion order
func Write(filename string, fmap []byte, buckets Buckets, total int) (int, error) {
	sha := headerLen + 4*FanEntries
	crcOff := sha + oid.Size*total
	ofsOff := crcOff + 4*total
	ofs64Off := ofsOff + 4*total

	if len(fmap) < ofs64Off {
		return 0, &corepack.InvalidArgumentError{What: fmt.Sprintf("packidx: %s: mapping too small for %d entries", filename, total)}
	}

	copy(fmap[:headerLen], Magic[:])

	var count uint32
	var ofs64Count uint32
	for i := 0; i < FanEntries; i++ {
		bucket := buckets[i]
		sort.Slice(bucket, func(a, b int) bool {
			return bucket[a].OID < bucket[b].OID
		})

		plen, err := corepack.ToUint32(uint64(len(bucket)), fmt.Sprintf("packidx: %s: bucket %d length", filename, i))
		if err != nil {
			return 0, err
		}
		count, err = corepack.AddUint32(count, plen, fmt.Sprintf("packidx: %s: bucket %d overflows uint32 total", filename, i))
		if err != nil {
			return 0, err
		}
		binary.BigEndian.PutUint32(fmap[headerLen+4*i:], count)

		for _, e := range bucket {
			if len(e.OID) != oid.Size {
				return 0, &corepack.InvalidArgumentError{What: fmt.Sprintf("packidx: %s: oid has length %d, want %d", filename, len(e.OID), oid.Size)}
			}
			copy(fmap[sha:sha+oid.Size], e.OID.Bytes())
			sha += oid.Size

			binary.BigEndian.PutUint32(fmap[crcOff:], e.CRC)
			crcOff += 4

			off := e.Offset
			if off > 0x7fffffff {
				if ofs64Off+8 > len(fmap) {
					return 0, &corepack.InvalidArgumentError{What: fmt.Sprintf("packidx: %s: mapping too small for offset overflow table", filename)}
				}
				binary.BigEndian.PutUint64(fmap[ofs64Off:], off)
				ofs64Off += 8
				off = offsetOverflowBit | uint64(ofs64Count)
				ofs64Count++
			}
			binary.BigEndian.PutUint32(fmap[ofsOff:], uint32(off))
			ofsOff += 4
		}
	}

	if err := flush(fmap); err != nil {
		return 0, &corepack.IOError{Path: filename, Err: err}
	}

	if int(count) != total {
		return 0, fmt.Errorf("packidx: %s: wrote %d entries, expected %d", filename, count, total)
	}

	return int(count), nil
}
