package leveldb

import (
	"encoding/binary"
	"fmt"
)

// Block layout after decompression:
//
//	entry*  shared (uvarint) | unshared (uvarint) | value length (uvarint) |
//	        key delta | value
//	restart offsets (fixed32 each)
//	restart count (fixed32)
//
// Keys are prefix-compressed against the previous key; restart points reset
// the shared prefix to zero.

// blockIterator walks the entries of a decoded block in order.
type blockIterator struct {
	data   []byte
	limit  int
	off    int
	curKey []byte
	curVal []byte
	failed error
}

func newBlockIterator(data []byte) (*blockIterator, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: block of %d bytes", ErrCorrupt, len(data))
	}
	restarts := int(binary.LittleEndian.Uint32(data[len(data)-4:]))
	maxRestarts := (len(data) - 4) / 4
	if restarts > maxRestarts {
		return nil, fmt.Errorf("%w: block restart count %d", ErrCorrupt, restarts)
	}
	return &blockIterator{
		data:  data,
		limit: len(data) - 4 - 4*restarts,
	}, nil
}

func (it *blockIterator) next() bool {
	if it.failed != nil || it.off >= it.limit {
		return false
	}
	d := &decoder{buf: it.data[it.off:it.limit]}
	shared := d.uvarint()
	unshared := d.uvarint()
	valueLen := d.uvarint()
	if d.err != nil {
		it.failed = d.err
		return false
	}
	if shared > uint64(len(it.curKey)) || unshared+valueLen > uint64(len(d.buf)) {
		it.failed = fmt.Errorf("%w: block entry at offset %d", ErrCorrupt, it.off)
		return false
	}
	delta := d.buf[:unshared]
	value := d.buf[unshared : unshared+valueLen]

	it.curKey = append(it.curKey[:shared], delta...)
	it.curVal = value
	it.off = it.limit - len(d.buf) + int(unshared+valueLen)
	return true
}

func (it *blockIterator) key() []byte   { return it.curKey }
func (it *blockIterator) value() []byte { return it.curVal }
func (it *blockIterator) err() error    { return it.failed }
