package mcworld

import (
	"log/slog"

	"github.com/meigma/mcworld/cache"
	"github.com/meigma/mcworld/internal/codec"
)

// Option configures an Extractor.
type Option func(*Extractor)

// WithRegistry sets the compressor registry used to decode store blocks.
// Defaults to the registry holding ids 0 (none), 1 (snappy), 2 (zlib) and
// 4 (raw DEFLATE).
func WithRegistry(r *codec.Registry) Option {
	return func(e *Extractor) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithTempDir sets the directory under which scratch directories are
// created. Defaults to os.TempDir.
func WithTempDir(dir string) Option {
	return func(e *Extractor) {
		e.tempDir = dir
	}
}

// WithLogger sets the logger for extraction diagnostics.
// By default, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCache enables result caching keyed by the SHA-256 digest of the
// archive bytes. Path mode is never cached.
func WithCache(c cache.Cache) Option {
	return func(e *Extractor) {
		e.cache = c
	}
}

// WithProgress registers a callback invoked once per archive file.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Extractor) {
		e.progress = fn
	}
}

// WithIgnoreChecksums disables block checksum verification for store
// tables. Log record checksums are always verified.
func WithIgnoreChecksums(ignore bool) Option {
	return func(e *Extractor) {
		e.ignoreChecksums = ignore
	}
}
