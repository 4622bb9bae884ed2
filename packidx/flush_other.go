//go:build !unix

package packidx

// flush is a no-op on non-unix platforms: there is no msync, and
// mmapfile's non-unix Map returns a plain buffer with nothing to flush.
func flush(fmap []byte) error {
	return nil
}
