package leveldb

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/mcworld/internal/codec"
	"github.com/meigma/mcworld/internal/leveldb/leveldbtest"
)

func TestReadJournal(t *testing.T) {
	t.Parallel()

	small := []byte("small")
	exact := bytes.Repeat([]byte{'x'}, journalBlockSize-journalHeaderSize)
	spanning := bytes.Repeat([]byte{'y'}, 3*journalBlockSize)

	records, err := readJournal(leveldbtest.EncodeLog(small, exact, spanning, small))
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, small, records[0])
	assert.Equal(t, exact, records[1])
	assert.Equal(t, spanning, records[2])
	assert.Equal(t, small, records[3])
}

func TestReadJournalTruncatedTail(t *testing.T) {
	t.Parallel()

	data := leveldbtest.EncodeLog([]byte("first"), bytes.Repeat([]byte{'z'}, 100))
	records, err := readJournal(data[:len(data)-10])
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("first")}, records)
}

func TestReadJournalZeroPadding(t *testing.T) {
	t.Parallel()

	data := leveldbtest.EncodeLog([]byte("kept"))
	data = append(data, make([]byte, 64)...)
	records, err := readJournal(data)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("kept")}, records)
}

func TestReadJournalErrors(t *testing.T) {
	t.Parallel()

	frame := func(typ byte, payload []byte) []byte {
		header := make([]byte, journalHeaderSize)
		binary.LittleEndian.PutUint32(header, maskedCRC([]byte{typ}, payload))
		binary.LittleEndian.PutUint16(header[4:], uint16(len(payload)))
		header[6] = typ
		return append(header, payload...)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"bad checksum", func() []byte {
			d := frame(recordFull, []byte("abc"))
			d[0] ^= 0xff
			return d
		}()},
		{"middle without first", frame(recordMiddle, []byte("abc"))},
		{"last without first", frame(recordLast, []byte("abc"))},
		{"full inside fragment", append(frame(recordFirst, []byte("a")), frame(recordFull, []byte("b"))...)},
		{"unknown type", frame(9, []byte("abc"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := readJournal(tt.data)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestDecodeBatch(t *testing.T) {
	t.Parallel()

	data := leveldbtest.EncodeBatch(10,
		leveldbtest.Put("a", "1"),
		leveldbtest.Del("b"),
		leveldbtest.Put("c", ""),
	)
	records, err := decodeBatch(data)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, batchRecord{seq: 10, kind: kindValue, key: []byte("a"), value: []byte("1")}, records[0])
	assert.Equal(t, uint64(11), records[1].seq)
	assert.Equal(t, kindDeletion, records[1].kind)
	assert.Equal(t, []byte("b"), records[1].key)
	assert.Equal(t, uint64(12), records[2].seq)
	assert.Empty(t, records[2].value)
}

func TestDecodeBatchErrors(t *testing.T) {
	t.Parallel()

	valid := leveldbtest.EncodeBatch(1, leveldbtest.Put("key", "value"))
	badKind := bytes.Clone(valid)
	badKind[batchHeaderLen] = 5

	tests := []struct {
		name string
		data []byte
	}{
		{"short header", []byte{1, 2, 3}},
		{"truncated record", valid[:len(valid)-2]},
		{"trailing bytes", append(bytes.Clone(valid), 0)},
		{"unknown kind", badKind},
		{"count exceeds records", func() []byte {
			d := bytes.Clone(valid)
			binary.LittleEndian.PutUint32(d[8:], 2)
			return d
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := decodeBatch(tt.data)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestInternalKeyOrdering(t *testing.T) {
	t.Parallel()

	a5 := makeInternalKey(nil, []byte("a"), 5, kindValue)
	a9 := makeInternalKey(nil, []byte("a"), 9, kindValue)
	b1 := makeInternalKey(nil, []byte("b"), 1, kindValue)

	assert.Negative(t, compareInternalKeys(a9, a5), "newer sequence sorts first")
	assert.Negative(t, compareInternalKeys(a5, b1))
	assert.Zero(t, compareInternalKeys(a5, a5))

	ukey, seq, kind, err := parseInternalKey(a9)
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), ukey)
	assert.Equal(t, uint64(9), seq)
	assert.Equal(t, kindValue, kind)

	_, _, _, err = parseInternalKey([]byte("short"))
	assert.ErrorIs(t, err, ErrCorrupt)

	bad := binary.LittleEndian.AppendUint64([]byte("k"), 1<<8|7)
	_, _, _, err = parseInternalKey(bad)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestTableIterator(t *testing.T) {
	t.Parallel()

	var entries []leveldbtest.TableEntry
	var want []string
	for i := range 40 {
		key := "prefix/" + strings.Repeat("k", i/26) + string(rune('a'+i%26))
		entries = append(entries, leveldbtest.TableEntry{Record: leveldbtest.Put(key, "v"), Seq: uint64(i + 1)})
		want = append(want, key)
	}
	data, smallest, largest, err := leveldbtest.EncodeTable(codec.Default(), codec.Zlib, 128, entries)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "000001.ldb")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	tbl, err := openTable(path, codec.Default(), true)
	require.NoError(t, err)
	defer tbl.close()

	it := tbl.iterator()
	var got []string
	var first, last []byte
	for it.next() {
		ukey, _, _, err := parseInternalKey(it.key())
		require.NoError(t, err)
		got = append(got, string(ukey))
		if first == nil {
			first = bytes.Clone(it.key())
		}
		last = bytes.Clone(it.key())
		assert.Equal(t, []byte("v"), it.value())
	}
	require.NoError(t, it.err())
	slices.Sort(want)
	assert.Equal(t, want, got)
	assert.Equal(t, smallest, first)
	assert.Equal(t, largest, last)
}

func TestBlockIteratorCorrupt(t *testing.T) {
	t.Parallel()

	_, err := newBlockIterator([]byte{1, 2})
	require.ErrorIs(t, err, ErrCorrupt)

	_, err = newBlockIterator([]byte{0, 0, 0, 0, 9, 0, 0, 0})
	require.ErrorIs(t, err, ErrCorrupt)

	// One entry claiming a shared prefix with no previous key.
	block := []byte{3, 1, 0, 'k'}
	block = binary.LittleEndian.AppendUint32(block, 0)
	block = binary.LittleEndian.AppendUint32(block, 1)
	it, err := newBlockIterator(block)
	require.NoError(t, err)
	assert.False(t, it.next())
	assert.ErrorIs(t, it.err(), ErrCorrupt)
}

func TestReplayManifest(t *testing.T) {
	t.Parallel()

	var edit []byte
	edit = binary.AppendUvarint(edit, tagComparator)
	edit = binary.AppendUvarint(edit, uint64(len(bytewiseComparator)))
	edit = append(edit, bytewiseComparator...)
	edit = binary.AppendUvarint(edit, tagLogNumber)
	edit = binary.AppendUvarint(edit, 12)
	edit = binary.AppendUvarint(edit, tagPrevLogNumber)
	edit = binary.AppendUvarint(edit, 11)
	edit = binary.AppendUvarint(edit, tagNextFileNumber)
	edit = binary.AppendUvarint(edit, 20)
	edit = binary.AppendUvarint(edit, tagLastSequence)
	edit = binary.AppendUvarint(edit, 300)
	edit = binary.AppendUvarint(edit, tagCompactPointer)
	edit = binary.AppendUvarint(edit, 1)
	edit = binary.AppendUvarint(edit, 2)
	edit = append(edit, 'p', 'k')
	for _, num := range []uint64{7, 5, 9} {
		edit = binary.AppendUvarint(edit, tagNewFile)
		edit = binary.AppendUvarint(edit, num%2)
		edit = binary.AppendUvarint(edit, num)
		edit = binary.AppendUvarint(edit, 100)
		edit = binary.AppendUvarint(edit, 1)
		edit = append(edit, 'a')
		edit = binary.AppendUvarint(edit, 1)
		edit = append(edit, 'z')
	}

	var del []byte
	del = binary.AppendUvarint(del, tagDeletedFile)
	del = binary.AppendUvarint(del, 1)
	del = binary.AppendUvarint(del, 9)

	v, err := replayManifest(leveldbtest.EncodeLog(edit, del))
	require.NoError(t, err)
	assert.Equal(t, bytewiseComparator, v.comparator)
	assert.Equal(t, uint64(12), v.logNumber)
	assert.Equal(t, uint64(11), v.prevLogNumber)
	assert.Equal(t, uint64(20), v.nextFile)
	assert.Equal(t, uint64(300), v.lastSequence)

	tables := v.tables()
	require.Len(t, tables, 2)
	assert.Equal(t, uint64(5), tables[0].number)
	assert.Equal(t, uint64(7), tables[1].number)
}

func TestReplayManifestErrors(t *testing.T) {
	t.Parallel()

	badLevel := binary.AppendUvarint(nil, tagDeletedFile)
	badLevel = binary.AppendUvarint(badLevel, numLevels)
	badLevel = binary.AppendUvarint(badLevel, 1)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown tag", leveldbtest.EncodeLog(binary.AppendUvarint(nil, 42))},
		{"level out of range", leveldbtest.EncodeLog(badLevel)},
		{"truncated field", leveldbtest.EncodeLog([]byte{tagComparator, 10, 'a'})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := replayManifest(tt.data)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestMergingIterator(t *testing.T) {
	t.Parallel()

	mem := func(keys ...string) internalIterator {
		m := &memTable{}
		for i, k := range keys {
			m.add(batchRecord{seq: uint64(len(k)*10 + i), kind: kindValue, key: []byte(k), value: []byte(k)})
		}
		return m.iterator()
	}

	merged := newMergingIterator(mem("b", "d"), mem(), mem("a", "c", "e"), mem("c"))
	var got []string
	for merged.next() {
		ukey, _, _, err := parseInternalKey(merged.key())
		require.NoError(t, err)
		got = append(got, string(ukey))
	}
	require.NoError(t, merged.err())
	assert.Equal(t, []string{"a", "b", "c", "c", "d", "e"}, got)
}

func TestMergingIteratorError(t *testing.T) {
	t.Parallel()

	boom := &errIterator{failed: ErrCorrupt}
	m := &memTable{}
	m.add(batchRecord{seq: 1, kind: kindValue, key: []byte("a")})
	merged := newMergingIterator(m.iterator(), boom)
	assert.False(t, merged.next())
	assert.ErrorIs(t, merged.err(), ErrCorrupt)
}
