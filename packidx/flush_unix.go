//go:build unix

package packidx

import "github.com/flashpack/corepack/mmapfile"

// flush issues the best-effort async durability signal described in the
// format's step 3. It only does anything when fmap came from
// mmapfile.Map; a plain in-memory buffer has nothing to flush.
func flush(fmap []byte) error {
	return mmapfile.Msync(fmap)
}
