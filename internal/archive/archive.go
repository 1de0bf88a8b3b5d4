// Package archive materializes world archives into scratch storage.
//
// Extract reads a zip container and writes every regular file below a
// destination directory while feeding the tree builder in archive order.
// Walk does the same for a world that is already expanded on disk.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/meigma/mcworld/internal/tree"
)

// Sentinel errors for archive operations.
var (
	// ErrFormat is returned when the input is not a readable zip container.
	ErrFormat = errors.New("archive: invalid zip container")

	// ErrIO is returned when scratch storage cannot be written or a world
	// directory cannot be read.
	ErrIO = errors.New("archive: i/o failure")
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// ByteSource provides random access to archive bytes.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// Entry describes one regular file of an archive.
type Entry struct {
	// Path is the slash-separated path relative to the archive root.
	Path string

	// Size is the decompressed length recorded in the archive metadata.
	Size uint64
}

// ProgressFunc is called after each file is materialized.
type ProgressFunc func(Entry)

type config struct {
	progress ProgressFunc
	bufSize  int
}

// Option configures Extract and Walk.
type Option func(*config)

// WithProgress registers a callback invoked once per file.
func WithProgress(fn ProgressFunc) Option {
	return func(c *config) {
		c.progress = fn
	}
}

// WithBufferSize sets the copy buffer size. Values <= 0 use the default.
func WithBufferSize(n int) Option {
	return func(c *config) {
		c.bufSize = n
	}
}

func newConfig(opts []Option) config {
	cfg := config{bufSize: 32 * 1024}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.bufSize <= 0 {
		cfg.bufSize = 32 * 1024
	}
	return cfg
}

// Extract opens src as a zip container, writes each regular file to
// destDir at its archive path, and adds it to b. Directory entries are
// skipped; directories are implied by file paths. When several members share
// a path, only the first is written and listed. Extraction stops at the
// first failure and returns the entries written so far with the error.
func Extract(src ByteSource, destDir string, b *tree.Builder, opts ...Option) ([]Entry, error) {
	cfg := newConfig(opts)

	zr, err := zip.NewReader(src, src.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	buf := make([]byte, cfg.bufSize)
	entries := make([]Entry, 0, len(zr.File))
	seen := make(map[string]struct{}, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, err := entryPath(f.Name)
		if err != nil {
			return entries, err
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if err := writeEntry(f, filepath.Join(destDir, filepath.FromSlash(name)), buf); err != nil {
			return entries, err
		}

		entry := Entry{Path: name, Size: f.UncompressedSize64}
		b.AddFile(entry.Path, entry.Size)
		entries = append(entries, entry)
		if cfg.progress != nil {
			cfg.progress(entry)
		}
	}
	return entries, nil
}

// entryPath validates a member name and returns it without leading "./"
// elements or a trailing slash.
func entryPath(name string) (string, error) {
	clean := strings.TrimSuffix(name, "/")
	for strings.HasPrefix(clean, "./") {
		clean = clean[len("./"):]
	}
	if !fs.ValidPath(clean) || clean == "." {
		return "", fmt.Errorf("%w: unsafe entry path %q", ErrFormat, name)
	}
	return clean, nil
}

func writeEntry(f *zip.File, destPath string, buf []byte) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrFormat, f.Name, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), dirPerm); err != nil {
		return fmt.Errorf("%w: create directory for %s: %v", ErrIO, f.Name, err)
	}
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrIO, f.Name, err)
	}

	src := &trackingReader{r: rc}
	if _, err := io.CopyBuffer(out, src, buf); err != nil {
		_ = out.Close() //nolint:errcheck // the copy error takes precedence
		if src.err != nil {
			return fmt.Errorf("%w: read %s: %v", ErrFormat, f.Name, err)
		}
		return fmt.Errorf("%w: write %s: %v", ErrIO, f.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrIO, f.Name, err)
	}
	return nil
}

// trackingReader remembers the first non-EOF read error so copy failures
// can be attributed to the archive or to scratch storage.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}
