// Package stagelog is the crash-recoverable record of pack entries that
// have been accepted but not yet sealed into a pack segment.
package stagelog

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/flashpack/corepack"
	"github.com/flashpack/corepack/oid"
)

const (
	invalidCRC   = uint32(0xFFFFFFFF)
	maxEntrySize = 16 << 20

	// OID | FLAGS | VAL_LEN
	fixedPayloadLen = oid.Size + 1 + 4
)

// Entry is one staged object: its content address, a caller-defined
// flag byte (the spec leaves its meaning to the caller; this package
// only frames and checksums it), and the object payload.
type Entry struct {
	OID   oid.OID
	Flags byte
	Value []byte
}

// Size returns the number of bytes Encode writes for this entry.
func (e *Entry) Size() int {
	return 4 + 4 + fixedPayloadLen + len(e.Value)
}

// Encode writes the framed record:
//
//	CRC (4) | TOTAL_LEN (4) | OID (20) | FLAGS (1) | VAL_LEN (4) | VALUE
//
// CRC = checksum(TOTAL_LEN | OID | FLAGS | VAL_LEN | VALUE). w must also
// implement io.Seeker so the CRC placeholder can be patched once the
// checksum is known, exactly as the segment it is writing into allows.
func (e *Entry) Encode(w io.Writer) error {
	seeker, ok := w.(io.Seeker)
	if !ok {
		return &corepack.InvalidArgumentError{What: "stagelog writer must be seekable"}
	}
	if len(e.OID) != oid.Size {
		return &corepack.InvalidArgumentError{What: fmt.Sprintf("stagelog: oid must be %d bytes, got %d", oid.Size, len(e.OID))}
	}

	crc := crc32.NewIEEE()
	mw := io.MultiWriter(w, crc)

	valLen := uint32(len(e.Value))
	totalLen := uint32(fixedPayloadLen) + valLen
	if int(totalLen)+4 > maxEntrySize {
		return &corepack.OverflowError{What: "stagelog: entry too large"}
	}

	if err := binary.Write(w, binary.LittleEndian, invalidCRC); err != nil {
		return err
	}
	if err := binary.Write(mw, binary.LittleEndian, totalLen); err != nil {
		return err
	}
	if _, err := mw.Write(e.OID.Bytes()); err != nil {
		return err
	}
	if err := binary.Write(mw, binary.LittleEndian, e.Flags); err != nil {
		return err
	}
	if err := binary.Write(mw, binary.LittleEndian, valLen); err != nil {
		return err
	}
	if _, err := mw.Write(e.Value); err != nil {
		return err
	}

	pos, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := seeker.Seek(pos-int64(totalLen)-4, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, crc.Sum32()); err != nil {
		return err
	}
	if _, err := seeker.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	return nil
}

func cleanEOF(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return io.EOF
	}
	return err
}

// Decode reads one framed record written by Encode. It returns io.EOF
// (not an error) at the end of r, at the zero-filled tail of a segment
// (a stored CRC of zero), or at a record whose 0xFFFFFFFF CRC
// placeholder never got patched with a real checksum.
func Decode(r io.Reader) (*Entry, error) {
	var storedCRC uint32
	if err := binary.Read(r, binary.LittleEndian, &storedCRC); err != nil {
		return nil, cleanEOF(err)
	}
	if storedCRC == invalidCRC || storedCRC == 0 {
		return nil, io.EOF
	}

	var totalLen uint32
	if err := binary.Read(r, binary.LittleEndian, &totalLen); err != nil {
		return nil, cleanEOF(err)
	}
	if totalLen > maxEntrySize || int(totalLen) < fixedPayloadLen {
		return nil, corepack.ErrCorrupt
	}

	payload := make([]byte, totalLen+4)
	binary.LittleEndian.PutUint32(payload[0:4], totalLen)
	if _, err := io.ReadFull(r, payload[4:]); err != nil {
		return nil, cleanEOF(err)
	}
	if crc32.ChecksumIEEE(payload) != storedCRC {
		return nil, corepack.ErrCorrupt
	}

	pos := 4
	var e Entry
	o, err := oid.New(payload[pos : pos+oid.Size])
	if err != nil {
		return nil, corepack.ErrCorrupt
	}
	e.OID = o
	pos += oid.Size

	e.Flags = payload[pos]
	pos++

	valLen := binary.LittleEndian.Uint32(payload[pos:])
	pos += 4
	if int(valLen) > len(payload)-pos {
		return nil, corepack.ErrCorrupt
	}
	e.Value = make([]byte, valLen)
	copy(e.Value, payload[pos:pos+int(valLen)])

	return &e, nil
}
