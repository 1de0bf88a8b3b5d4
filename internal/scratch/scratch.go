// Package scratch manages invocation-scoped temporary directories.
package scratch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// DefaultPattern is the directory name pattern passed to os.MkdirTemp.
const DefaultPattern = "mcworld-*"

// ErrCreate is returned when the scratch directory cannot be created.
var ErrCreate = errors.New("scratch: cannot create directory")

// Dir is a temporary directory removed by Release.
type Dir struct {
	path string
	once sync.Once
	err  error
}

// New creates a fresh directory under root. An empty root uses os.TempDir.
func New(root, pattern string) (*Dir, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	path, err := os.MkdirTemp(root, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreate, err)
	}
	return &Dir{path: path}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// Join joins slash-separated elements onto the directory path.
func (d *Dir) Join(elem ...string) string {
	parts := make([]string, 0, len(elem)+1)
	parts = append(parts, d.path)
	for _, e := range elem {
		parts = append(parts, filepath.FromSlash(e))
	}
	return filepath.Join(parts...)
}

// Release removes the directory and everything below it.
// It is safe to call more than once; later calls return the first result.
func (d *Dir) Release() error {
	d.once.Do(func() {
		d.err = os.RemoveAll(d.path)
	})
	return d.err
}

// Run creates a scratch directory, calls fn with its path, and removes the
// directory when fn returns or panics. Removal failures are logged, not
// returned, so they never mask the result of fn.
func Run(root string, logger *slog.Logger, fn func(path string) error) error {
	d, err := New(root, DefaultPattern)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := d.Release(); rerr != nil && logger != nil {
			logger.Warn("scratch cleanup failed",
				slog.String("path", d.path),
				slog.Any("error", rerr))
		}
	}()
	return fn(d.path)
}
