package archive

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/meigma/mcworld/internal/tree"
)

// Walk adds the contents of an expanded world directory to b.
//
// Entries are visited in lexical order. Every directory, including empty
// ones, becomes a directory node. Symlinks and other irregular files are
// skipped. The returned entries list regular files only.
func Walk(root string, b *tree.Builder, opts ...Option) ([]Entry, error) {
	cfg := newConfig(opts)

	var entries []Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			if !d.IsDir() {
				return fmt.Errorf("%s is not a directory", root)
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case d.IsDir():
			b.AddDir(rel)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			entry := Entry{Path: rel, Size: uint64(info.Size())} //nolint:gosec // file sizes are non-negative
			b.AddFile(entry.Path, entry.Size)
			entries = append(entries, entry)
			if cfg.progress != nil {
				cfg.progress(entry)
			}
		}
		return nil
	})
	if err != nil {
		return entries, fmt.Errorf("%w: walk %s: %v", ErrIO, root, err)
	}
	return entries, nil
}
