// Package pack seals a staging index into an immutable pack segment
// plus its sidecar IDX file, and opens sealed packs back up for
// lookups.
package pack

import (
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/bits-and-blooms/bitset"
	"github.com/bits-and-blooms/bloom/v3"

	"github.com/flashpack/corepack/mmapfile"
	"github.com/flashpack/corepack/packidx"
	"github.com/flashpack/corepack/segment"
	"github.com/flashpack/corepack/sparse"
	"github.com/flashpack/corepack/staging"
)

// DefaultMinSparseLen is the shortest zero run in an object payload
// that gets turned into a hole instead of written literally.
const DefaultMinSparseLen = 4096

// Writer seals staged entries into pack segments.
type Writer struct {
	sm           *segment.Manager
	idxDir       string
	minSparseLen int
}

// NewWriter returns a Writer that appends to sm's active segment and
// writes sidecar .idx files into idxDir.
func NewWriter(sm *segment.Manager, idxDir string) *Writer {
	return &Writer{sm: sm, idxDir: idxDir, minSparseLen: DefaultMinSparseLen}
}

// SealResult describes what Flush wrote.
type SealResult struct {
	SegmentID int
	IdxPath   string
	Count     int
	// Bloom is a negative-lookup-only accelerator over raw OID bytes,
	// kept in memory by the caller (e.g. a pack catalog) to decide
	// whether a pack is worth opening at all, distinct from the
	// on-disk bloom package's codec.
	Bloom *bloom.BloomFilter
	// Buckets marks which of the 256 fan-out buckets received at
	// least one entry, so a reader can skip empty ranges without
	// touching the mapped IDX.
	Buckets *bitset.BitSet
}

// Flush drains idx in OID order, writes each entry's payload into the
// active segment through the sparse writer, and emits the sidecar IDX.
// It returns nil, nil if idx was empty.
func (w *Writer) Flush(idx *staging.Index) (*SealResult, error) {
	records := idx.Drain()
	if len(records) == 0 {
		return nil, nil
	}

	f, segID := w.sm.Active()
	if f == nil {
		return nil, fmt.Errorf("pack: no active segment")
	}

	offset, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("pack: seek active segment: %w", err)
	}

	var buckets packidx.Buckets
	bf := bloom.NewWithEstimates(uint(len(records)), 0.01)
	present := bitset.New(256)

	var pending int64
	for _, rec := range records {
		payload := rec.Value.Data

		b := rec.Key[0]
		buckets[b] = append(buckets[b], packidx.Entry{
			OID:    rec.Key,
			CRC:    crc32.ChecksumIEEE(payload),
			Offset: uint64(offset),
		})
		bf.Add(rec.Key.Bytes())
		present.Set(uint(b))

		pending, err = sparse.WriteSparsely(f, payload, w.minSparseLen, pending)
		if err != nil {
			return nil, fmt.Errorf("pack: write object %s: %w", rec.Key, err)
		}
		offset += int64(len(payload))
	}

	if pending > 0 {
		if _, err := f.Seek(pending, io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("pack: seek past trailing zeros: %w", err)
		}
	}
	if err := f.Truncate(offset); err != nil {
		return nil, fmt.Errorf("pack: truncate to final length: %w", err)
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("pack: sync active segment: %w", err)
	}

	idxPath := filepath.Join(w.idxDir, fmt.Sprintf("pack-%05d.idx", segID))
	total := len(records)
	size := packidx.Size(total)

	idxFile, err := os.Create(idxPath)
	if err != nil {
		return nil, fmt.Errorf("pack: create idx: %w", err)
	}
	defer idxFile.Close()
	if err := idxFile.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("pack: size idx file: %w", err)
	}

	fmap, err := mmapfile.Map(idxFile, size)
	if err != nil {
		return nil, fmt.Errorf("pack: map idx: %w", err)
	}

	count, err := packidx.Write(idxPath, fmap, buckets, total)
	if err != nil {
		mmapfile.Unmap(fmap)
		return nil, err
	}

	// Msync inside packidx.Write is best-effort and async; write the
	// mapping back explicitly so a non-mmap-backed fallback (see
	// mmapfile's non-unix build) still persists the IDX.
	if err := os.WriteFile(idxPath, fmap, 0o644); err != nil {
		mmapfile.Unmap(fmap)
		return nil, fmt.Errorf("pack: persist idx: %w", err)
	}

	if err := mmapfile.Unmap(fmap); err != nil {
		return nil, err
	}

	return &SealResult{
		SegmentID: segID,
		IdxPath:   idxPath,
		Count:     count,
		Bloom:     bf,
		Buckets:   present,
	}, nil
}
