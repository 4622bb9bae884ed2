// Package rollsum implements the rolling checksum used elsewhere in the
// backup system's splitter: a sum over a sliding 64-byte window, not a
// whole-buffer sum. corepack exposes it as a pure function of a byte
// slice; the incremental roll-one-byte-at-a-time form itself belongs to
// the (out of scope) content splitter.
package rollsum

const (
	windowBits = 6
	windowSize = 1 << windowBits // 64
	charOffset = 31
)

// Sum computes the rolling checksum of buf's trailing 64-byte window,
// using the shared split algorithm's window size and multiplier
// constants. For buf shorter than the window, the window is implicitly
// zero-padded at its start, matching the algorithm's initial state
// before any byte has rolled out of it.
func Sum(buf []byte) uint32 {
	var s1, s2 uint32
	s1 = windowSize * charOffset
	s2 = windowSize * (windowSize - 1) * charOffset

	var window [windowSize]byte
	wofs := 0

	for _, b := range buf {
		drop := uint32(window[wofs])
		add := uint32(b)
		s1 += add - drop
		s2 += s1 - windowSize*(drop+charOffset)
		window[wofs] = b
		wofs = (wofs + 1) % windowSize
	}

	return s1<<16 | (s2 & 0xffff)
}
