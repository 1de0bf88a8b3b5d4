// Package cache stores extraction results keyed by the digest of the
// archive they were produced from.
//
// Archives are immutable once digested, so a cached result never needs
// revalidation: a hit for a digest is the result of extracting exactly
// those bytes.
package cache

import "github.com/opencontainers/go-digest"

// Cache provides digest-addressed storage for encoded results.
//
// Implementations should handle their own size limits and eviction policies
// and must be safe for concurrent use.
type Cache interface {
	// Get retrieves the content stored for key.
	// Returns nil, false if nothing is cached.
	Get(key digest.Digest) ([]byte, bool)

	// Put stores content for key. Storing a key twice is a no-op.
	Put(key digest.Digest, content []byte) error
}

// Pruner is implemented by caches that can report and reduce their size.
type Pruner interface {
	Cache

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune removes entries until the cache is at or below targetBytes and
	// returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}
