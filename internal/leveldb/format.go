package leveldb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// bytewiseComparator is the only comparator this reader understands.
const bytewiseComparator = "leveldb.BytewiseComparator"

// keyKind is the low byte of an internal key trailer.
type keyKind uint8

const (
	kindDeletion keyKind = 0
	kindValue    keyKind = 1
)

const trailerLen = 8

var crcTable = crc32.MakeTable(crc32.Castagnoli)

const crcMaskDelta = 0xa282ead8

// maskedCRC returns the masked CRC-32C of the concatenated slices.
func maskedCRC(parts ...[]byte) uint32 {
	var c uint32
	for _, p := range parts {
		c = crc32.Update(c, crcTable, p)
	}
	return (c>>15 | c<<17) + crcMaskDelta
}

// makeInternalKey appends the trailer for seq and kind to ukey.
func makeInternalKey(dst, ukey []byte, seq uint64, kind keyKind) []byte {
	dst = append(dst, ukey...)
	return binary.LittleEndian.AppendUint64(dst, seq<<8|uint64(kind))
}

// parseInternalKey splits an internal key into its parts.
func parseInternalKey(ikey []byte) (ukey []byte, seq uint64, kind keyKind, err error) {
	if len(ikey) < trailerLen {
		return nil, 0, 0, fmt.Errorf("%w: internal key of %d bytes", ErrCorrupt, len(ikey))
	}
	n := len(ikey) - trailerLen
	trailer := binary.LittleEndian.Uint64(ikey[n:])
	kind = keyKind(trailer & 0xff)
	if kind > kindValue {
		return nil, 0, 0, fmt.Errorf("%w: invalid key kind %d", ErrCorrupt, kind)
	}
	return ikey[:n], trailer >> 8, kind, nil
}

// compareInternalKeys orders by user key ascending, then by trailer
// descending so newer entries for a key come first.
func compareInternalKeys(a, b []byte) int {
	ua, ub := a, b
	var ta, tb uint64
	if n := len(a) - trailerLen; n >= 0 {
		ua, ta = a[:n], binary.LittleEndian.Uint64(a[n:])
	}
	if n := len(b) - trailerLen; n >= 0 {
		ub, tb = b[:n], binary.LittleEndian.Uint64(b[n:])
	}
	if c := bytes.Compare(ua, ub); c != 0 {
		return c
	}
	switch {
	case ta > tb:
		return -1
	case ta < tb:
		return 1
	default:
		return 0
	}
}

// decoder reads varint-encoded fields from a byte slice.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.err = fmt.Errorf("%w: bad varint", ErrCorrupt)
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) lenPrefixed() []byte {
	n := d.uvarint()
	if d.err != nil {
		return nil
	}
	if n > uint64(len(d.buf)) {
		d.err = fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrCorrupt, n, len(d.buf))
		return nil
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b
}

func (d *decoder) u8() byte {
	if d.err != nil {
		return 0
	}
	if len(d.buf) == 0 {
		d.err = fmt.Errorf("%w: unexpected end of record", ErrCorrupt)
		return 0
	}
	b := d.buf[0]
	d.buf = d.buf[1:]
	return b
}

func (d *decoder) fixed32() uint32 {
	if d.err != nil {
		return 0
	}
	if len(d.buf) < 4 {
		d.err = fmt.Errorf("%w: unexpected end of record", ErrCorrupt)
		return 0
	}
	v := binary.LittleEndian.Uint32(d.buf)
	d.buf = d.buf[4:]
	return v
}

func (d *decoder) fixed64() uint64 {
	if d.err != nil {
		return 0
	}
	if len(d.buf) < 8 {
		d.err = fmt.Errorf("%w: unexpected end of record", ErrCorrupt)
		return 0
	}
	v := binary.LittleEndian.Uint64(d.buf)
	d.buf = d.buf[8:]
	return v
}

func (d *decoder) empty() bool {
	return len(d.buf) == 0
}
