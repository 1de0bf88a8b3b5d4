package leveldb

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goleveldb "github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type pair struct {
	key   string
	value []byte
}

// writeGoLevelDB fills a store with puts, deletions, a full compaction,
// overwrites, and binary keys, leaving the newest writes in the log. It
// returns the live pairs as goleveldb's own iterator sees them.
func writeGoLevelDB(t *testing.T, dir string, compression opt.Compression) []pair {
	t.Helper()

	db, err := goleveldb.OpenFile(dir, &opt.Options{
		Compression: compression,
		BlockSize:   1024,
		WriteBuffer: 64 << 10,
	})
	require.NoError(t, err)

	for i := range 5000 {
		key := []byte(fmt.Sprintf("chunk/%05d", i))
		require.NoError(t, db.Put(key, bytes.Repeat([]byte{byte(i)}, 16+i%64), nil))
	}
	for i := 0; i < 5000; i += 7 {
		require.NoError(t, db.Delete([]byte(fmt.Sprintf("chunk/%05d", i)), nil))
	}
	require.NoError(t, db.CompactRange(util.Range{}))
	for i := 0; i < 5000; i += 11 {
		require.NoError(t, db.Put([]byte(fmt.Sprintf("chunk/%05d", i)), []byte("overwritten"), nil))
	}
	require.NoError(t, db.Put([]byte{0xFF, 0x00, 0x41}, []byte("binary"), nil))
	require.NoError(t, db.Put([]byte("~local_player"), []byte("player"), nil))
	require.NoError(t, db.Delete([]byte("chunk/00001"), nil))

	var want []pair
	it := db.NewIterator(nil, nil)
	for it.Next() {
		want = append(want, pair{key: string(it.Key()), value: bytes.Clone(it.Value())})
	}
	it.Release()
	require.NoError(t, it.Error())
	require.NoError(t, db.Close())
	return want
}

func TestReadsGoLevelDBStores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		compression opt.Compression
	}{
		{"none", opt.NoCompression},
		{"snappy", opt.SnappyCompression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			want := writeGoLevelDB(t, dir, tt.compression)
			tables, err := filepath.Glob(filepath.Join(dir, "*.ldb"))
			require.NoError(t, err)
			require.NotEmpty(t, tables, "the store should hold compacted tables")

			before, err := os.ReadDir(dir)
			require.NoError(t, err)

			db, err := Open(dir, nil)
			require.NoError(t, err)
			it := db.NewIterator()
			var got []pair
			for it.Next() {
				got = append(got, pair{key: string(it.Key()), value: bytes.Clone(it.Value())})
			}
			require.NoError(t, it.Error())
			it.Release()
			require.NoError(t, db.Close())

			require.Len(t, got, len(want))
			for i := range want {
				assert.Equal(t, want[i].key, got[i].key, "key %d", i)
				assert.Equal(t, want[i].value, got[i].value, "value of %q", want[i].key)
			}

			after, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Equal(t, len(before), len(after), "reading must not add or remove files")
		})
	}
}
