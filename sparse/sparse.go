// Package sparse streams a buffer to a file, replacing long zero runs
// with file-offset advances (holes) instead of writing the zero bytes.
package sparse

import (
	"io"
	"math"

	"github.com/flashpack/corepack"
)

// Writer is the minimum a destination must support: seekable, writable.
// *os.File satisfies this, as does the teacher's own WAL encoder target
// (see stagelog), which already relies on an io.Writer that is also an
// io.Seeker.
type Writer interface {
	io.Writer
	io.Seeker
}

// maxChunk bounds a single SEEK_CUR advance so the request fits in the
// signed offset type most seek implementations accept.
const maxChunk = math.MaxInt32

// WriteSparsely writes buf to w, starting prevSparseLen zero bytes after
// w's current position (those zeros are assumed already pending and not
// yet materialized). It returns the number of trailing zero bytes that
// remain pending (neither written as data nor advanced as a hole) so the
// caller can pass them as prevSparseLen on the next call.
//
// minSparseLen is the shortest zero run that is worth turning into a
// hole; shorter runs are written out as literal zero bytes.
func WriteSparsely(w Writer, buf []byte, minSparseLen int, prevSparseLen int64) (int64, error) {
	if minSparseLen <= 0 {
		return 0, &corepack.InvalidArgumentError{What: "sparse: minSparseLen must be positive"}
	}
	if prevSparseLen < 0 {
		return 0, &corepack.InvalidArgumentError{What: "sparse: prevSparseLen must not be negative"}
	}

	block := 0
	end := len(buf)
	zeros := prevSparseLen

	for block < end {
		if buf[block] != 0 {
			probe := findNonSparseEnd(buf, block+1, end, minSparseLen)

			if err := appendSparseRegion(w, zeros); err != nil {
				return 0, err
			}
			if err := writeAll(w, buf[block:probe]); err != nil {
				return 0, err
			}

			if end-probe < minSparseLen {
				zeros = int64(end - probe)
				block = end
			} else {
				zeros = int64(minSparseLen)
				block = probe + minSparseLen
			}
		} else {
			zerosEnd := findNotZero(buf, block, end)
			zeros += int64(zerosEnd - block)
			block = zerosEnd
		}
	}

	return zeros, nil
}

// findNotZero returns the index of the first non-zero byte in
// buf[start:end], or end if there isn't one.
func findNotZero(buf []byte, start, end int) int {
	i := start
	for i < end && buf[i] == 0 {
		i++
	}
	return i
}

// findTrailingZeros returns the index where a trailing run of zeros in
// buf[start:end] begins, or end if the run does not exist (i.e. the last
// byte is non-zero, or the range is empty).
func findTrailingZeros(buf []byte, start, end int) int {
	if start == end {
		return end
	}
	cur := end
	for cur > start && buf[cur-1] == 0 {
		cur--
	}
	return cur
}

// findNonSparseEnd returns the earliest index in buf[start:end] that
// begins a run of at least minLen consecutive zero bytes, or if none
// exists, the index where any trailing zero run begins (or end if there
// is no trailing zero run).
//
// It probes in minLen-sized jumps, scanning backward from the end of
// each probe for a non-zero byte; a probe with no non-zero byte is
// itself a sparse run and its start is returned immediately.
func findNonSparseEnd(buf []byte, start, end, minLen int) int {
	if start == end {
		return end
	}

	candidate := start
	endOfKnownZeros := start

	for end-candidate >= minLen {
		probeEnd := candidate + minLen
		trailing := findTrailingZeros(buf, endOfKnownZeros, probeEnd)

		switch {
		case trailing == probeEnd:
			endOfKnownZeros = probeEnd
			candidate = probeEnd
		case trailing == endOfKnownZeros:
			return candidate
		default:
			candidate = trailing
			endOfKnownZeros = probeEnd
		}
	}

	if candidate == end {
		return end
	}

	trailing := findTrailingZeros(buf, endOfKnownZeros, end)
	if trailing == endOfKnownZeros {
		return candidate
	}
	return trailing
}

// appendSparseRegion advances w's position by n bytes via SEEK_CUR,
// representing those bytes as a hole instead of writing them, splitting
// the advance into chunks small enough for a single Seek call.
func appendSparseRegion(w Writer, n int64) error {
	for n > 0 {
		chunk := n
		if chunk > maxChunk {
			chunk = maxChunk
		}
		if _, err := w.Seek(chunk, io.SeekCurrent); err != nil {
			return &corepack.IOError{Err: err}
		}
		n -= chunk
	}
	return nil
}

// writeAll retries short writes until buf is fully written or an error
// occurs.
func writeAll(w Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return &corepack.IOError{Err: err}
		}
		buf = buf[n:]
	}
	return nil
}
