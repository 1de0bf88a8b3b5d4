// Package leveldbtest writes small LevelDB-format stores for tests.
//
// It produces the same on-disk structures a real producer writes: a
// write-ahead log of batches, sorted tables with compressed blocks, and a
// descriptor named by CURRENT.
package leveldbtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/meigma/mcworld/internal/codec"
)

// Record is one write. Delete records carry no value.
type Record struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Put returns a value record.
func Put(key, value string) Record {
	return Record{Key: []byte(key), Value: []byte(value)}
}

// Del returns a deletion record.
func Del(key string) Record {
	return Record{Key: []byte(key), Delete: true}
}

const (
	kindDeletion = 0
	kindValue    = 1

	journalBlockSize  = 32 * 1024
	journalHeaderSize = 7

	tableMagic = 0xdb4775248b80fb57
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

func maskedCRC(parts ...[]byte) uint32 {
	var c uint32
	for _, p := range parts {
		c = crc32.Update(c, crcTable, p)
	}
	return (c>>15 | c<<17) + 0xa282ead8
}

type newFile struct {
	level    int
	number   uint64
	size     uint64
	smallest []byte
	largest  []byte
}

// Writer builds a store directory.
type Writer struct {
	tb        testing.TB
	dir       string
	registry  *codec.Registry
	blockSize int

	nextFile uint64
	seq      uint64
	manifest uint64
	logNum   uint64
	log      *journalWriter
	files    []newFile
	deleted  []newFile
}

// Option configures a Writer.
type Option func(*Writer)

// WithRegistry sets the registry used to compress table blocks.
func WithRegistry(r *codec.Registry) Option {
	return func(w *Writer) {
		w.registry = r
	}
}

// WithBlockSize sets the uncompressed size at which data blocks are cut.
func WithBlockSize(n int) Option {
	return func(w *Writer) {
		w.blockSize = n
	}
}

// NewWriter creates dir and returns a Writer for it.
func NewWriter(tb testing.TB, dir string, opts ...Option) *Writer {
	tb.Helper()
	w := &Writer{
		tb:        tb,
		dir:       dir,
		registry:  codec.Default(),
		blockSize: 4096,
		nextFile:  1,
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		tb.Fatalf("create store dir: %v", err)
	}
	w.manifest = w.allocFile()
	return w
}

func (w *Writer) allocFile() uint64 {
	n := w.nextFile
	w.nextFile++
	return n
}

// Batch appends one write batch to the store's write-ahead log.
func (w *Writer) Batch(records ...Record) {
	w.tb.Helper()
	if w.log == nil {
		w.logNum = w.allocFile()
		w.log = &journalWriter{}
	}
	w.log.add(EncodeBatch(w.seq+1, records...))
	w.seq += uint64(len(records))
}

// Table writes a sorted table at level holding records, compressed with id,
// and lists it in the descriptor. It returns the table file number.
func (w *Writer) Table(level int, id codec.ID, records ...Record) uint64 {
	w.tb.Helper()
	meta := w.writeTable(level, id, records)
	w.files = append(w.files, meta)
	return meta.number
}

// ObsoleteTable writes a table that the descriptor adds and later deletes,
// as compaction does. Its contents must not be visible.
func (w *Writer) ObsoleteTable(level int, id codec.ID, records ...Record) uint64 {
	w.tb.Helper()
	meta := w.writeTable(level, id, records)
	w.files = append(w.files, meta)
	w.deleted = append(w.deleted, meta)
	return meta.number
}

func (w *Writer) writeTable(level int, id codec.ID, records []Record) newFile {
	num := w.allocFile()
	entries := make([]TableEntry, 0, len(records))
	for _, r := range records {
		w.seq++
		entries = append(entries, TableEntry{Record: r, Seq: w.seq})
	}
	data, smallest, largest, err := EncodeTable(w.registry, id, w.blockSize, entries)
	if err != nil {
		w.tb.Fatalf("encode table: %v", err)
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%06d.ldb", num))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		w.tb.Fatalf("write table: %v", err)
	}
	return newFile{level: level, number: num, size: uint64(len(data)), smallest: smallest, largest: largest}
}

// Close flushes the log, descriptor and CURRENT file.
func (w *Writer) Close() {
	w.tb.Helper()
	w.CloseWithoutDescriptor()

	logNumber := w.logNum
	if logNumber == 0 {
		logNumber = w.nextFile
	}

	edit := &editEncoder{}
	edit.comparator("leveldb.BytewiseComparator")
	edit.uvarintField(2, logNumber)
	edit.uvarintField(3, w.nextFile)
	edit.uvarintField(4, w.seq)
	for _, f := range w.files {
		edit.newFile(f)
	}

	j := &journalWriter{}
	j.add(edit.buf.Bytes())
	if len(w.deleted) > 0 {
		del := &editEncoder{}
		for _, f := range w.deleted {
			del.deletedFile(f.level, f.number)
		}
		j.add(del.buf.Bytes())
	}

	name := fmt.Sprintf("MANIFEST-%06d", w.manifest)
	w.write(name, j.bytes())
	w.write("CURRENT", []byte(name+"\n"))
}

// CloseWithoutDescriptor flushes only the log, leaving a store that must
// be opened from its log and table files.
func (w *Writer) CloseWithoutDescriptor() {
	w.tb.Helper()
	if w.log != nil {
		w.write(fmt.Sprintf("%06d.log", w.logNum), w.log.bytes())
	}
}

func (w *Writer) write(name string, data []byte) {
	w.tb.Helper()
	if err := os.WriteFile(filepath.Join(w.dir, name), data, 0o600); err != nil {
		w.tb.Fatalf("write %s: %v", name, err)
	}
}

// Dir returns the store directory.
func (w *Writer) Dir() string {
	return w.dir
}

// EncodeBatch encodes a write batch starting at seq.
func EncodeBatch(seq uint64, records ...Record) []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint64(buf, seq)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(records))) //nolint:gosec // test batches are small
	for _, r := range records {
		if r.Delete {
			buf = append(buf, kindDeletion)
			buf = appendLenPrefixed(buf, r.Key)
			continue
		}
		buf = append(buf, kindValue)
		buf = appendLenPrefixed(buf, r.Key)
		buf = appendLenPrefixed(buf, r.Value)
	}
	return buf
}

// EncodeLog frames records in the log format.
func EncodeLog(records ...[]byte) []byte {
	j := &journalWriter{}
	for _, r := range records {
		j.add(r)
	}
	return j.bytes()
}

// WriteLog writes a log file holding one batch per element of batches,
// with sequence numbers starting at 1.
func WriteLog(tb testing.TB, path string, batches ...[]Record) {
	tb.Helper()
	var seq uint64 = 1
	payloads := make([][]byte, 0, len(batches))
	for _, b := range batches {
		payloads = append(payloads, EncodeBatch(seq, b...))
		seq += uint64(len(b))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		tb.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, EncodeLog(payloads...), 0o600); err != nil {
		tb.Fatalf("write log: %v", err)
	}
}

func appendLenPrefixed(dst, b []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(b)))
	return append(dst, b...)
}

func internalKey(key []byte, seq uint64, deleted bool) []byte {
	kind := uint64(kindValue)
	if deleted {
		kind = kindDeletion
	}
	out := append([]byte(nil), key...)
	return binary.LittleEndian.AppendUint64(out, seq<<8|kind)
}

func compareInternal(a, b []byte) int {
	ua, ub := a[:len(a)-8], b[:len(b)-8]
	if c := bytes.Compare(ua, ub); c != 0 {
		return c
	}
	ta := binary.LittleEndian.Uint64(a[len(a)-8:])
	tb := binary.LittleEndian.Uint64(b[len(b)-8:])
	switch {
	case ta > tb:
		return -1
	case ta < tb:
		return 1
	default:
		return 0
	}
}

// journalWriter frames records into 32 KiB log blocks.
type journalWriter struct {
	buf bytes.Buffer
}

func (j *journalWriter) add(payload []byte) {
	first := true
	for {
		left := journalBlockSize - j.buf.Len()%journalBlockSize
		if left < journalHeaderSize {
			j.buf.Write(make([]byte, left))
			left = journalBlockSize
		}
		avail := left - journalHeaderSize
		n := min(avail, len(payload))
		last := n == len(payload)

		var typ byte
		switch {
		case first && last:
			typ = 1
		case first:
			typ = 2
		case last:
			typ = 4
		default:
			typ = 3
		}

		chunk := payload[:n]
		var header [journalHeaderSize]byte
		binary.LittleEndian.PutUint32(header[0:4], maskedCRC([]byte{typ}, chunk))
		binary.LittleEndian.PutUint16(header[4:6], uint16(n)) //nolint:gosec // n < block size
		header[6] = typ
		j.buf.Write(header[:])
		j.buf.Write(chunk)

		payload = payload[n:]
		first = false
		if last {
			return
		}
	}
}

func (j *journalWriter) bytes() []byte {
	return j.buf.Bytes()
}

// editEncoder encodes version edit fields.
type editEncoder struct {
	buf bytes.Buffer
}

func (e *editEncoder) uvarintField(tag, v uint64) {
	e.buf.Write(binary.AppendUvarint(nil, tag))
	e.buf.Write(binary.AppendUvarint(nil, v))
}

func (e *editEncoder) comparator(name string) {
	e.buf.Write(binary.AppendUvarint(nil, 1))
	e.buf.Write(appendLenPrefixed(nil, []byte(name)))
}

func (e *editEncoder) newFile(f newFile) {
	var b []byte
	b = binary.AppendUvarint(b, 7)
	b = binary.AppendUvarint(b, uint64(f.level)) //nolint:gosec // levels are small
	b = binary.AppendUvarint(b, f.number)
	b = binary.AppendUvarint(b, f.size)
	b = appendLenPrefixed(b, f.smallest)
	b = appendLenPrefixed(b, f.largest)
	e.buf.Write(b)
}

func (e *editEncoder) deletedFile(level int, number uint64) {
	var b []byte
	b = binary.AppendUvarint(b, 6)
	b = binary.AppendUvarint(b, uint64(level)) //nolint:gosec // levels are small
	b = binary.AppendUvarint(b, number)
	e.buf.Write(b)
}

// EncodeVersionEdit encodes a descriptor record that only names the
// comparator. It lets tests build descriptors with foreign comparators.
func EncodeVersionEdit(comparator string) []byte {
	e := &editEncoder{}
	e.comparator(comparator)
	return e.buf.Bytes()
}

// TableEntry is a record with its sequence number.
type TableEntry struct {
	Record
	Seq uint64
}

// EncodeTable builds a table file. Every block, including the index, is
// compressed with id; the metaindex block is stored uncompressed. It
// returns the file bytes and the smallest and largest internal keys.
func EncodeTable(reg *codec.Registry, id codec.ID, blockSize int, entries []TableEntry) (data, smallest, largest []byte, err error) {
	type kv struct {
		ikey  []byte
		value []byte
	}
	kvs := make([]kv, 0, len(entries))
	for _, e := range entries {
		kvs = append(kvs, kv{ikey: internalKey(e.Key, e.Seq, e.Delete), value: e.Value})
	}
	slices.SortFunc(kvs, func(a, b kv) int { return compareInternal(a.ikey, b.ikey) })

	var out bytes.Buffer
	writeBlock := func(raw []byte, blockID codec.ID) ([]byte, error) {
		contents, err := reg.Encode(blockID, raw)
		if err != nil {
			return nil, err
		}
		handle := binary.AppendUvarint(nil, uint64(out.Len()))
		handle = binary.AppendUvarint(handle, uint64(len(contents)))
		out.Write(contents)
		out.WriteByte(byte(blockID))
		var sum [4]byte
		binary.LittleEndian.PutUint32(sum[:], maskedCRC(contents, []byte{byte(blockID)}))
		out.Write(sum[:])
		return handle, nil
	}

	index := &blockBuilder{}
	data0 := &blockBuilder{}
	var lastKey []byte
	flush := func() error {
		if data0.count == 0 {
			return nil
		}
		handle, err := writeBlock(data0.finish(), id)
		if err != nil {
			return err
		}
		index.add(lastKey, handle)
		data0 = &blockBuilder{}
		return nil
	}
	for _, e := range kvs {
		data0.add(e.ikey, e.value)
		lastKey = e.ikey
		if data0.size() >= blockSize {
			if err := flush(); err != nil {
				return nil, nil, nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, nil, nil, err
	}

	metaHandle, err := writeBlock((&blockBuilder{}).finish(), codec.None)
	if err != nil {
		return nil, nil, nil, err
	}
	indexHandle, err := writeBlock(index.finish(), id)
	if err != nil {
		return nil, nil, nil, err
	}

	footer := make([]byte, 0, 48)
	footer = append(footer, metaHandle...)
	footer = append(footer, indexHandle...)
	footer = append(footer, make([]byte, 40-len(footer))...)
	footer = binary.LittleEndian.AppendUint64(footer, tableMagic)
	out.Write(footer)

	if len(kvs) > 0 {
		smallest = kvs[0].ikey
		largest = kvs[len(kvs)-1].ikey
	}
	return out.Bytes(), smallest, largest, nil
}

// blockBuilder writes prefix-compressed block entries with a restart point
// every 16 entries.
type blockBuilder struct {
	buf      []byte
	restarts []uint32
	prev     []byte
	count    int
}

const restartInterval = 16

func (b *blockBuilder) add(key, value []byte) {
	shared := 0
	if b.count%restartInterval == 0 {
		b.restarts = append(b.restarts, uint32(len(b.buf))) //nolint:gosec // blocks are small
	} else {
		for shared < len(key) && shared < len(b.prev) && key[shared] == b.prev[shared] {
			shared++
		}
	}
	b.buf = binary.AppendUvarint(b.buf, uint64(shared))
	b.buf = binary.AppendUvarint(b.buf, uint64(len(key)-shared))
	b.buf = binary.AppendUvarint(b.buf, uint64(len(value)))
	b.buf = append(b.buf, key[shared:]...)
	b.buf = append(b.buf, value...)
	b.prev = append(b.prev[:0], key...)
	b.count++
}

func (b *blockBuilder) size() int {
	return len(b.buf) + 4*len(b.restarts) + 4
}

func (b *blockBuilder) finish() []byte {
	restarts := b.restarts
	if len(restarts) == 0 {
		restarts = []uint32{0}
	}
	out := append([]byte(nil), b.buf...)
	for _, r := range restarts {
		out = binary.LittleEndian.AppendUint32(out, r)
	}
	return binary.LittleEndian.AppendUint32(out, uint32(len(restarts))) //nolint:gosec // blocks are small
}
