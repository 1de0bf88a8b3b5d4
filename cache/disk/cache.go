// Package disk provides a disk-backed result cache.
//
// Entries are stored zstd-compressed at <dir>/<algorithm>/<shard>/<encoded>,
// written through a temporary file and renamed into place so readers never
// observe partial entries.
package disk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/mcworld/cache"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700
	tempPattern           = ".tmp-*"
)

var (
	_ cache.Cache  = (*Cache)(nil)
	_ cache.Pruner = (*Cache)(nil)
)

var (
	encoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
	})
	decoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
)

// Cache implements cache.Cache using the local filesystem.
// The cache is safe for concurrent use.
type Cache struct {
	dir            string       // root directory for cached entries
	shardPrefixLen int          // number of encoded chars for subdirectory sharding
	dirPerm        os.FileMode  // permissions for created directories
	maxBytes       int64        // maximum cache size (0 = unlimited)
	bytes          atomic.Int64 // current total size of cached entries
	pruneMu        sync.Mutex   // serializes prune operations
}

// Option configures a disk cache.
type Option func(*Cache)

// WithShardPrefixLen sets the number of digest characters used for
// sharding. Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(c *Cache) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *Cache) {
		c.dirPerm = mode
	}
}

// WithMaxBytes sets the maximum cache size in bytes.
// Values < 0 are invalid. Use 0 to disable the limit.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		c.maxBytes = n
	}
}

// New creates a disk-backed cache rooted at dir.
func New(dir string, opts ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	c := &Cache{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.shardPrefixLen < 0 {
		return nil, errors.New("shard prefix length must be >= 0")
	}
	if c.maxBytes < 0 {
		return nil, errors.New("max bytes must be >= 0")
	}
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return nil, err
	}
	size, err := dirSize(dir)
	if err != nil {
		return nil, err
	}
	c.bytes.Store(size)
	return c, nil
}

// Get returns the decompressed content stored for key.
// Unreadable or undecodable entries are reported as misses.
func (c *Cache) Get(key digest.Digest) ([]byte, bool) {
	path, err := c.path(key)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a validated digest
	if err != nil {
		return nil, false
	}
	dec, err := decoder()
	if err != nil {
		return nil, false
	}
	content, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, false
	}
	return content, true
}

// Put compresses content and stores it for key.
func (c *Cache) Put(key digest.Digest, content []byte) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return nil
	}

	enc, err := encoder()
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	data := enc.EncodeAll(content, nil)
	need := int64(len(data))

	if ok, err := c.ensureCapacity(need); err != nil {
		return err
	} else if !ok {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, c.dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()         //nolint:errcheck // write error takes precedence
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		if _, statErr := os.Stat(path); statErr == nil {
			return nil
		}
		return err
	}
	c.bytes.Add(need)
	return nil
}

// Delete removes the entry for key. Missing entries are a no-op.
func (c *Cache) Delete(key digest.Digest) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	c.bytes.Add(-info.Size())
	return nil
}

// MaxBytes returns the configured cache size limit (0 = unlimited).
func (c *Cache) MaxBytes() int64 {
	return c.maxBytes
}

// SizeBytes returns the current cache size in bytes.
func (c *Cache) SizeBytes() int64 {
	return c.bytes.Load()
}

// Prune removes the oldest entries until the cache is at or below
// targetBytes.
func (c *Cache) Prune(targetBytes int64) (int64, error) {
	targetBytes = max(targetBytes, 0)
	c.pruneMu.Lock()
	defer c.pruneMu.Unlock()

	freed, remaining, err := pruneDir(c.dir, targetBytes)
	if err != nil {
		return 0, err
	}
	c.bytes.Store(remaining)
	return freed, nil
}

func (c *Cache) path(key digest.Digest) (string, error) {
	if err := key.Validate(); err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	encoded := key.Encoded()
	if c.shardPrefixLen <= 0 {
		return filepath.Join(c.dir, key.Algorithm().String(), encoded), nil
	}
	prefixLen := min(c.shardPrefixLen, len(encoded))
	return filepath.Join(c.dir, key.Algorithm().String(), encoded[:prefixLen], encoded), nil
}

func (c *Cache) ensureCapacity(need int64) (bool, error) {
	if c.maxBytes <= 0 {
		return true, nil
	}
	if need > c.maxBytes {
		return false, nil
	}
	if c.SizeBytes()+need <= c.maxBytes {
		return true, nil
	}
	if _, err := c.Prune(c.maxBytes - need); err != nil {
		return false, err
	}
	return c.SizeBytes()+need <= c.maxBytes, nil
}
