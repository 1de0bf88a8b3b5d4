package leveldb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/meigma/mcworld/internal/codec"
)

const (
	tableMagic       = 0xdb4775248b80fb57
	footerLen        = 48
	blockTrailerLen  = 5
	maxBlockHandle   = 1 << 31
	tableMinFileSize = footerLen
)

type blockHandle struct {
	offset uint64
	length uint64
}

func decodeBlockHandle(d *decoder) blockHandle {
	return blockHandle{offset: d.uvarint(), length: d.uvarint()}
}

// table is an open sorted table file.
type table struct {
	name     string
	r        io.ReaderAt
	closer   io.Closer
	size     int64
	registry *codec.Registry
	verify   bool
	index    []byte
}

// openTable reads the footer and index block of a table file.
func openTable(path string, registry *codec.Registry, verify bool) (*table, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from the store directory
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close() //nolint:errcheck // stat error takes precedence
		return nil, err
	}

	t := &table{
		name:     path,
		r:        f,
		closer:   f,
		size:     info.Size(),
		registry: registry,
		verify:   verify,
	}
	if err := t.readIndex(); err != nil {
		_ = f.Close() //nolint:errcheck // index error takes precedence
		return nil, fmt.Errorf("table %s: %w", path, err)
	}
	return t, nil
}

func (t *table) readIndex() error {
	if t.size < tableMinFileSize {
		return fmt.Errorf("%w: file too short (%d bytes)", ErrCorrupt, t.size)
	}
	footer := make([]byte, footerLen)
	if _, err := t.r.ReadAt(footer, t.size-footerLen); err != nil {
		return fmt.Errorf("read footer: %w", err)
	}
	if magic := binary.LittleEndian.Uint64(footer[footerLen-8:]); magic != tableMagic {
		return fmt.Errorf("%w: bad table magic %#x", ErrCorrupt, magic)
	}

	d := &decoder{buf: footer[:footerLen-8]}
	_ = decodeBlockHandle(d) // metaindex: filters are not needed for full scans
	indexHandle := decodeBlockHandle(d)
	if d.err != nil {
		return d.err
	}

	index, err := t.readBlock(indexHandle)
	if err != nil {
		return fmt.Errorf("index block: %w", err)
	}
	t.index = index
	return nil
}

// readBlock reads, verifies and decompresses the block at h.
func (t *table) readBlock(h blockHandle) ([]byte, error) {
	if h.length > maxBlockHandle || h.offset > uint64(t.size) || h.offset+h.length+blockTrailerLen > uint64(t.size) { //nolint:gosec // size is non-negative
		return nil, fmt.Errorf("%w: block handle %d+%d beyond file size %d", ErrCorrupt, h.offset, h.length, t.size)
	}
	raw := make([]byte, h.length+blockTrailerLen)
	if _, err := t.r.ReadAt(raw, int64(h.offset)); err != nil && !errors.Is(err, io.EOF) { //nolint:gosec // bounded above
		return nil, fmt.Errorf("read block at %d: %w", h.offset, err)
	}

	contents := raw[:h.length]
	typ := raw[h.length]
	if t.verify {
		want := binary.LittleEndian.Uint32(raw[h.length+1:])
		if got := maskedCRC(contents, raw[h.length:h.length+1]); got != want {
			return nil, fmt.Errorf("%w: block checksum mismatch at offset %d", ErrCorrupt, h.offset)
		}
	}

	out, err := t.registry.Decode(codec.ID(typ), contents)
	if err != nil {
		return nil, fmt.Errorf("block at offset %d: %w", h.offset, err)
	}
	return out, nil
}

func (t *table) close() error {
	if t.closer == nil {
		return nil
	}
	err := t.closer.Close()
	t.closer = nil
	return err
}

// iterator returns a two-level iterator over every entry of the table.
func (t *table) iterator() internalIterator {
	idx, err := newBlockIterator(t.index)
	if err != nil {
		return &errIterator{failed: fmt.Errorf("table %s: %w", t.name, err)}
	}
	return &tableIterator{t: t, index: idx}
}

type tableIterator struct {
	t      *table
	index  *blockIterator
	data   *blockIterator
	failed error
}

func (it *tableIterator) next() bool {
	if it.failed != nil {
		return false
	}
	for {
		if it.data != nil {
			if it.data.next() {
				return true
			}
			if err := it.data.err(); err != nil {
				it.failed = fmt.Errorf("table %s: %w", it.t.name, err)
				return false
			}
		}
		if !it.index.next() {
			if err := it.index.err(); err != nil {
				it.failed = fmt.Errorf("table %s: %w", it.t.name, err)
			}
			return false
		}

		d := &decoder{buf: it.index.value()}
		h := decodeBlockHandle(d)
		if d.err != nil {
			it.failed = fmt.Errorf("table %s: index entry: %w", it.t.name, d.err)
			return false
		}
		block, err := it.t.readBlock(h)
		if err != nil {
			it.failed = fmt.Errorf("table %s: %w", it.t.name, err)
			return false
		}
		data, err := newBlockIterator(block)
		if err != nil {
			it.failed = fmt.Errorf("table %s: %w", it.t.name, err)
			return false
		}
		it.data = data
	}
}

func (it *tableIterator) key() []byte   { return it.data.key() }
func (it *tableIterator) value() []byte { return it.data.value() }
func (it *tableIterator) err() error    { return it.failed }

type errIterator struct {
	failed error
}

func (it *errIterator) next() bool    { return false }
func (it *errIterator) key() []byte   { return nil }
func (it *errIterator) value() []byte { return nil }
func (it *errIterator) err() error    { return it.failed }
