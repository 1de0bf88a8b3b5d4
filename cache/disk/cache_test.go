package disk

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
)

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	content := []byte(strings.Repeat(`{"root":[],"db_keys":[]}`, 50))
	key := digest.FromBytes([]byte("archive"))

	if err := c.Put(key, content); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("Get() content = %q, want %q", got, content)
	}

	path := filepath.Join(dir, "sha256", key.Encoded()[:defaultShardPrefixLen], key.Encoded())
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected cache file at %s: %v", path, err)
	}
	if info.Size() >= int64(len(content)) {
		t.Fatalf("stored size = %d, want compressed below %d", info.Size(), len(content))
	}
	if c.SizeBytes() != info.Size() {
		t.Fatalf("SizeBytes() = %d, want %d", c.SizeBytes(), info.Size())
	}
}

func TestCacheMiss(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := c.Get(digest.FromString("absent")); ok {
		t.Fatal("Get() ok = true, want false")
	}
	if _, ok := c.Get(digest.Digest("not-a-digest")); ok {
		t.Fatal("Get() with invalid digest ok = true, want false")
	}
	if err := c.Put(digest.Digest("sha256:short"), []byte("x")); err == nil {
		t.Fatal("Put() with invalid digest error = nil, want error")
	}
}

func TestCacheCorruptEntryIsMiss(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithShardPrefixLen(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := digest.FromString("corrupt")
	path := filepath.Join(dir, "sha256", key.Encoded())
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not zstd"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(key); ok {
		t.Fatal("Get() ok = true for corrupt entry, want false")
	}
}

func TestCacheShardDisable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithShardPrefixLen(0))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := digest.FromString("flat")
	if err := c.Put(key, []byte("flat")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	path := filepath.Join(dir, "sha256", key.Encoded())
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected cache file at %s: %v", path, err)
	}
}

func TestCachePutExistingIsNoop(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := digest.FromString("k")
	if err := c.Put(key, []byte("first")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Put(key, []byte("second")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, _ := c.Get(key)
	if string(got) != "first" {
		t.Fatalf("Get() = %q, want %q", got, "first")
	}
}

func TestCacheDelete(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := digest.FromString("gone")
	if err := c.Put(key, []byte("value")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := c.Delete(key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := c.Delete(key); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Fatal("Get() ok = true after Delete")
	}
	if c.SizeBytes() != 0 {
		t.Fatalf("SizeBytes() = %d, want 0", c.SizeBytes())
	}
}

func TestCacheMaxBytesPrunesOldest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sizer, err := New(filepath.Join(dir, "sizing"))
	if err != nil {
		t.Fatal(err)
	}
	if err := sizer.Put(digest.FromString("sizing"), []byte("payload-0")); err != nil {
		t.Fatal(err)
	}
	entrySize := sizer.SizeBytes()

	c, err := New(filepath.Join(dir, "limited"), WithMaxBytes(2*entrySize))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	keys := []digest.Digest{digest.FromString("a"), digest.FromString("b"), digest.FromString("c")}
	old := time.Now().Add(-time.Hour)
	for i, key := range keys {
		if err := c.Put(key, []byte("payload-"+string(rune('0'+i)))); err != nil {
			t.Fatalf("Put(%d) error = %v", i, err)
		}
		if i == 0 {
			path, _ := c.path(key)
			if err := os.Chtimes(path, old, old); err != nil {
				t.Fatal(err)
			}
		}
	}

	if _, ok := c.Get(keys[0]); ok {
		t.Fatal("oldest entry survived pruning")
	}
	for _, key := range keys[1:] {
		if _, ok := c.Get(key); !ok {
			t.Fatalf("entry %s missing after pruning", key)
		}
	}
	if c.SizeBytes() > c.MaxBytes() {
		t.Fatalf("SizeBytes() = %d exceeds MaxBytes() = %d", c.SizeBytes(), c.MaxBytes())
	}
}

func TestCacheTooLargeEntrySkipped(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir(), WithMaxBytes(8))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	key := digest.FromString("big")
	if err := c.Put(key, bytes.Repeat([]byte{0x5a}, 4096)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, ok := c.Get(key); ok {
		t.Fatal("Get() ok = true for entry larger than the cache")
	}
}

func TestCacheReopenCountsExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put(digest.FromString("x"), []byte("persisted")); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if reopened.SizeBytes() != c.SizeBytes() {
		t.Fatalf("SizeBytes() = %d, want %d", reopened.SizeBytes(), c.SizeBytes())
	}
}

func TestCacheConcurrentPut(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := digest.FromString("shared")
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			if err := c.Put(key, []byte("same")); err != nil {
				t.Errorf("Put() error = %v", err)
			}
		})
	}
	wg.Wait()

	got, ok := c.Get(key)
	if !ok || string(got) != "same" {
		t.Fatalf("Get() = %q, %v", got, ok)
	}
}

func TestNewInvalidOptions(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("New(\"\") error = nil, want error")
	}
	if _, err := New(t.TempDir(), WithShardPrefixLen(-1)); err == nil {
		t.Fatal("New() with negative shard error = nil, want error")
	}
	if _, err := New(t.TempDir(), WithMaxBytes(-1)); err == nil {
		t.Fatal("New() with negative max error = nil, want error")
	}
}
