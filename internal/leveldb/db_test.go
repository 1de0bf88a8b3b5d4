package leveldb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/mcworld/internal/codec"
	"github.com/meigma/mcworld/internal/leveldb/leveldbtest"
)

type kv struct {
	key   string
	value string
}

func scan(t *testing.T, db *DB) []kv {
	t.Helper()
	it := db.NewIterator()
	defer it.Release()

	var out []kv
	for it.Next() {
		out = append(out, kv{key: string(it.Key()), value: string(it.Value())})
	}
	require.NoError(t, it.Error())
	return out
}

func open(t *testing.T, dir string) *DB {
	t.Helper()
	db, err := Open(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenLogOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	leveldbtest.WriteLog(t, filepath.Join(dir, "000001.log"),
		[]leveldbtest.Record{leveldbtest.Put("b", "22"), leveldbtest.Put("a", "1")},
		[]leveldbtest.Record{leveldbtest.Put("c", "333")},
	)

	db := open(t, dir)
	assert.Equal(t, []kv{{"a", "1"}, {"b", "22"}, {"c", "333"}}, scan(t, db))
}

func TestOpenWithDescriptor(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := leveldbtest.NewWriter(t, dir)
	w.Table(1, codec.Zlib, leveldbtest.Put("m", "table-1"), leveldbtest.Put("z", "last"))
	w.Table(0, codec.RawDeflate, leveldbtest.Put("a", "table-0"))
	w.Batch(leveldbtest.Put("k", "log"))
	w.Close()

	db := open(t, dir)
	assert.Equal(t, []kv{
		{"a", "table-0"},
		{"k", "log"},
		{"m", "table-1"},
		{"z", "last"},
	}, scan(t, db))
}

func TestNewestVersionWins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := leveldbtest.NewWriter(t, dir)
	w.Table(1, codec.Zlib, leveldbtest.Put("k", "oldest"), leveldbtest.Put("gone", "x"))
	w.Table(0, codec.Zlib, leveldbtest.Put("k", "older"))
	w.Batch(leveldbtest.Put("k", "newest"), leveldbtest.Del("gone"))
	w.Close()

	db := open(t, dir)
	assert.Equal(t, []kv{{"k", "newest"}}, scan(t, db))
}

func TestDeleteThenPutInLog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	leveldbtest.WriteLog(t, filepath.Join(dir, "000003.log"),
		[]leveldbtest.Record{leveldbtest.Put("a", "1"), leveldbtest.Put("b", "2")},
		[]leveldbtest.Record{leveldbtest.Del("a"), leveldbtest.Del("b")},
		[]leveldbtest.Record{leveldbtest.Put("b", "again")},
	)

	db := open(t, dir)
	assert.Equal(t, []kv{{"b", "again"}}, scan(t, db))
}

func TestObsoleteTableIgnored(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := leveldbtest.NewWriter(t, dir)
	w.ObsoleteTable(0, codec.Zlib, leveldbtest.Put("stale", "x"))
	w.Table(1, codec.Zlib, leveldbtest.Put("live", "y"))
	w.Close()

	db := open(t, dir)
	assert.Equal(t, []kv{{"live", "y"}}, scan(t, db))
}

func TestTableCodecs(t *testing.T) {
	t.Parallel()

	for _, id := range []codec.ID{codec.None, codec.Snappy, codec.Zlib, codec.RawDeflate} {
		t.Run(id.String(), func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			w := leveldbtest.NewWriter(t, dir, leveldbtest.WithBlockSize(256))
			var records []leveldbtest.Record
			var want []kv
			for i := range 200 {
				k := fmt.Sprintf("key-%04d", i)
				v := strings.Repeat(string(rune('a'+i%26)), i%40)
				records = append(records, leveldbtest.Put(k, v))
				want = append(want, kv{k, v})
			}
			w.Table(1, id, records...)
			w.Close()

			db := open(t, dir)
			assert.Equal(t, want, scan(t, db))
		})
	}
}

func TestLargeLogRecordSpansBlocks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	big := strings.Repeat("v", 100*1024)
	leveldbtest.WriteLog(t, filepath.Join(dir, "000001.log"),
		[]leveldbtest.Record{leveldbtest.Put("big", big)},
		[]leveldbtest.Record{leveldbtest.Put("small", "s")},
	)

	db := open(t, dir)
	got := scan(t, db)
	require.Len(t, got, 2)
	assert.Equal(t, "big", got[0].key)
	assert.Len(t, got[0].value, len(big))
	assert.Equal(t, kv{"small", "s"}, got[1])
}

func TestBinaryKeysOrderedBytewise(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	leveldbtest.WriteLog(t, filepath.Join(dir, "000001.log"),
		[]leveldbtest.Record{
			{Key: []byte{0xff, 0x00}, Value: []byte("hi")},
			{Key: []byte{0x00}, Value: []byte("lo")},
			{Key: []byte("A"), Value: nil},
		},
	)

	db := open(t, dir)
	got := scan(t, db)
	assert.Equal(t, []kv{{"\x00", "lo"}, {"A", ""}, {"\xff\x00", "hi"}}, got)
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantErr error
	}{
		{
			name: "missing directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "db")
			},
			wantErr: ErrNotFound,
		},
		{
			name: "regular file",
			setup: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "db")
				require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
				return p
			},
			wantErr: ErrNotFound,
		},
		{
			name: "empty directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			wantErr: ErrEmpty,
		},
		{
			name: "unrelated files only",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				require.NoError(t, os.WriteFile(filepath.Join(dir, "LOG"), []byte("info"), 0o600))
				return dir
			},
			wantErr: ErrEmpty,
		},
		{
			name: "foreign comparator",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				manifest := leveldbtest.EncodeLog(leveldbtest.EncodeVersionEdit("custom.Reverse"))
				require.NoError(t, os.WriteFile(filepath.Join(dir, "MANIFEST-000002"), manifest, 0o600))
				require.NoError(t, os.WriteFile(filepath.Join(dir, "CURRENT"), []byte("MANIFEST-000002\n"), 0o600))
				return dir
			},
			wantErr: ErrUnsupported,
		},
		{
			name: "current without newline",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				require.NoError(t, os.WriteFile(filepath.Join(dir, "CURRENT"), []byte("MANIFEST-000002"), 0o600))
				return dir
			},
			wantErr: ErrCorrupt,
		},
		{
			name: "current names missing descriptor",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				require.NoError(t, os.WriteFile(filepath.Join(dir, "CURRENT"), []byte("MANIFEST-000009\n"), 0o600))
				return dir
			},
			wantErr: ErrCorrupt,
		},
		{
			name: "descriptor lists missing table",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				w := leveldbtest.NewWriter(t, dir)
				num := w.Table(0, codec.Zlib, leveldbtest.Put("a", "b"))
				w.Close()
				require.NoError(t, os.Remove(filepath.Join(dir, fmt.Sprintf("%06d.ldb", num))))
				return dir
			},
			wantErr: ErrCorrupt,
		},
		{
			name: "truncated table",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				require.NoError(t, os.WriteFile(filepath.Join(dir, "000004.ldb"), []byte("short"), 0o600))
				return dir
			},
			wantErr: ErrCorrupt,
		},
		{
			name: "corrupt log checksum",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				p := filepath.Join(dir, "000001.log")
				leveldbtest.WriteLog(t, p, []leveldbtest.Record{leveldbtest.Put("a", "b")})
				data, err := os.ReadFile(p)
				require.NoError(t, err)
				data[len(data)-1] ^= 0xff
				require.NoError(t, os.WriteFile(p, data, 0o600))
				return dir
			},
			wantErr: ErrCorrupt,
		},
		{
			name: "unknown block codec",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				reg, err := codec.NewRegistry(codec.WithCodec(codec.ID(7), passthrough{}))
				require.NoError(t, err)
				w := leveldbtest.NewWriter(t, dir, leveldbtest.WithRegistry(reg))
				w.Table(0, codec.ID(7), leveldbtest.Put("a", "b"))
				w.Close()
				return dir
			},
			wantErr: codec.ErrUnknownCodec,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, err := Open(tt.setup(t), nil)
			require.Error(t, err)
			assert.Nil(t, db)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

type passthrough struct{}

func (passthrough) Encode(src []byte) ([]byte, error) { return append([]byte(nil), src...), nil }
func (passthrough) Decode(src []byte) ([]byte, error) { return append([]byte(nil), src...), nil }

func TestCorruptBlockChecksum(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := leveldbtest.NewWriter(t, dir)
	num := w.Table(0, codec.None, leveldbtest.Put("alpha", "one"), leveldbtest.Put("beta", "two"))
	w.Close()

	// Flip a byte inside the first data block; the index block stays intact.
	p := filepath.Join(dir, fmt.Sprintf("%06d.ldb", num))
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	data[4] ^= 0x01
	require.NoError(t, os.WriteFile(p, data, 0o600))

	db := open(t, dir)
	it := db.NewIterator()
	for it.Next() {
	}
	require.ErrorIs(t, it.Error(), ErrCorrupt)
	it.Release()

	lax, err := Open(dir, &Options{IgnoreChecksums: true})
	require.NoError(t, err)
	defer lax.Close()
	it = lax.NewIterator()
	defer it.Release()
	n := 0
	for it.Next() {
		n++
	}
	require.NoError(t, it.Error())
	assert.Equal(t, 2, n)
}

func TestCloseIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := leveldbtest.NewWriter(t, dir)
	w.Table(0, codec.Zlib, leveldbtest.Put("a", "b"))
	w.Close()

	db, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	it := db.NewIterator()
	assert.False(t, it.Next())
	assert.True(t, errors.Is(it.Error(), ErrReleased))
}

func TestIteratorRelease(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	leveldbtest.WriteLog(t, filepath.Join(dir, "000001.log"),
		[]leveldbtest.Record{leveldbtest.Put("a", "1"), leveldbtest.Put("b", "2")})

	db := open(t, dir)
	it := db.NewIterator()
	require.True(t, it.Next())
	it.Release()
	assert.False(t, it.Next())
	assert.NoError(t, it.Error())
}

func TestOpenDoesNotModifyStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := leveldbtest.NewWriter(t, dir)
	w.Table(0, codec.Zlib, leveldbtest.Put("a", "b"))
	w.Batch(leveldbtest.Put("c", "d"))
	w.Close()

	before, err := os.ReadDir(dir)
	require.NoError(t, err)

	db := open(t, dir)
	_ = scan(t, db)
	require.NoError(t, db.Close())

	after, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Name(), after[i].Name())
	}
}
