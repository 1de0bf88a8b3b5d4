package mcworld

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/mcworld/cache"
	"github.com/meigma/mcworld/internal/archive"
	"github.com/meigma/mcworld/internal/codec"
	"github.com/meigma/mcworld/internal/scratch"
	"github.com/meigma/mcworld/internal/tree"
)

// Extractor turns world archives into listings.
//
// An Extractor is safe for concurrent use. Each extraction gets its own
// scratch directory and store handle; only the registry and cache are
// shared.
type Extractor struct {
	registry        *codec.Registry
	tempDir         string
	logger          *slog.Logger
	cache           cache.Cache
	progress        ProgressFunc
	ignoreChecksums bool

	group singleflight.Group
}

// New creates an Extractor with the given options.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		registry: codec.Default(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = New()

// Extract extracts an archive held in memory using default settings.
func Extract(data []byte) (*Result, error) {
	return defaultExtractor.Extract(data)
}

// ExtractPath lists an expanded world directory using default settings.
func ExtractPath(dir string) (*Result, error) {
	return defaultExtractor.ExtractPath(dir)
}

// Extract extracts an archive held in memory.
func (e *Extractor) Extract(data []byte) (*Result, error) {
	return e.ExtractFrom(bytes.NewReader(data))
}

// ExtractFile extracts the archive at path.
func (e *Extractor) ExtractFile(path string) (*Result, error) {
	f, err := os.Open(path) //nolint:gosec // caller-supplied archive path
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return e.ExtractFrom(io.NewSectionReader(f, 0, info.Size()))
}

// ExtractFrom extracts the archive readable from src.
//
// The archive is expanded into a fresh scratch directory that is removed
// before ExtractFrom returns, whether or not extraction succeeded.
func (e *Extractor) ExtractFrom(src ByteSource) (*Result, error) {
	if e.cache == nil {
		return e.extract(src)
	}

	archiveDigest, err := digest.SHA256.FromReader(io.NewSectionReader(src, 0, src.Size()))
	if err != nil {
		return nil, fmt.Errorf("%w: digest archive: %w", ErrArchiveFormat, err)
	}
	key := e.cacheKey(archiveDigest)
	if res, ok := e.cached(key); ok {
		return res, nil
	}

	v, err, shared := e.group.Do(key.String(), func() (any, error) {
		if res, ok := e.cached(key); ok {
			return res, nil
		}
		res, err := e.extract(src)
		if err != nil {
			return nil, err
		}
		e.store(key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	res := v.(*Result) //nolint:forcetypeassert // the group only returns *Result
	if shared {
		return res.clone(), nil
	}
	return res, nil
}

// ExtractPath lists a world that is already expanded at dir. The store is
// read in place; nothing is copied or written.
func (e *Extractor) ExtractPath(dir string) (*Result, error) {
	start := time.Now()
	b := tree.NewBuilder()
	entries, err := archive.Walk(dir, b, e.archiveOpts()...)
	if err != nil {
		return nil, err
	}
	keys, err := e.scanStore(dir)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("listed world directory",
		slog.String("dir", dir),
		slog.Int("files", len(entries)),
		slog.Int("keys", len(keys)),
		slog.Duration("elapsed", time.Since(start)))
	return assemble(b, keys), nil
}

func (e *Extractor) extract(src ByteSource) (*Result, error) {
	start := time.Now()
	var res *Result
	err := scratch.Run(e.tempDir, e.logger, func(path string) error {
		b := tree.NewBuilder()
		entries, err := archive.Extract(src, path, b, e.archiveOpts()...)
		if err != nil {
			return err
		}
		keys, err := e.scanStore(path)
		if err != nil {
			return err
		}
		e.logger.Debug("extracted world archive",
			slog.Int64("bytes", src.Size()),
			slog.Int("files", len(entries)),
			slog.Int("keys", len(keys)),
			slog.Duration("elapsed", time.Since(start)))
		res = assemble(b, keys)
		return nil
	})
	if err != nil {
		return nil, scratchError(err)
	}
	return res, nil
}

func (e *Extractor) archiveOpts() []archive.Option {
	if e.progress == nil {
		return nil
	}
	return []archive.Option{archive.WithProgress(archive.ProgressFunc(e.progress))}
}

// cacheKey combines the archive digest with the settings that change the
// result: checksum verification and the set of known compressor ids.
func (e *Extractor) cacheKey(archive digest.Digest) digest.Digest {
	var b strings.Builder
	b.WriteString("mcworld-result-v1\n")
	b.WriteString(archive.String())
	fmt.Fprintf(&b, "\nverify-checksums=%t\ncodecs=", !e.ignoreChecksums)
	for i, id := range e.registry.IDs() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(id)))
	}
	return digest.SHA256.FromString(b.String())
}

func (e *Extractor) cached(key digest.Digest) (*Result, bool) {
	data, ok := e.cache.Get(key)
	if !ok {
		return nil, false
	}
	res, err := decodeResult(data)
	if err != nil {
		e.logger.Warn("discarding unreadable cache entry",
			slog.String("digest", key.String()),
			slog.Any("error", err))
		return nil, false
	}
	e.logger.Debug("cache hit", slog.String("digest", key.String()))
	return res, true
}

func (e *Extractor) store(key digest.Digest, res *Result) {
	data, err := res.MarshalJSON()
	if err != nil {
		e.logger.Warn("encode result for cache", slog.Any("error", err))
		return
	}
	if err := e.cache.Put(key, data); err != nil {
		e.logger.Warn("cache put failed",
			slog.String("digest", key.String()),
			slog.Any("error", err))
	}
}
