package leveldb

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/meigma/mcworld/internal/codec"
)

// Options configures Open.
type Options struct {
	// Registry decodes table blocks. Nil uses codec.Default.
	Registry *codec.Registry

	// IgnoreChecksums skips block checksum verification in table files.
	// Log record checksums are always verified.
	IgnoreChecksums bool

	// Logger receives debug output. Nil discards it.
	Logger *slog.Logger
}

// DB is a read-only snapshot of a store directory.
type DB struct {
	dir    string
	mem    *memTable
	tables []*table
	closed bool
	logger *slog.Logger
}

// Open opens the store in dir without modifying it.
//
// When CURRENT names a descriptor, the live tables and logs are taken from
// it. Without CURRENT, every log and table file in dir is used, which lets
// a store consisting only of a write-ahead log be read.
func Open(dir string, opts *Options) (*DB, error) {
	if opts == nil {
		opts = &Options{}
	}
	registry := opts.Registry
	if registry == nil {
		registry = codec.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dir)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotFound, dir)
	}

	files, err := listFiles(dir)
	if err != nil {
		return nil, err
	}

	var (
		tables []tableMeta
		logs   []uint64
	)
	v, err := readCurrentVersion(dir)
	switch {
	case err == nil:
		if v.comparator != "" && v.comparator != bytewiseComparator {
			return nil, fmt.Errorf("%w: comparator %q", ErrUnsupported, v.comparator)
		}
		tables = v.tables()
		for _, num := range files.logs {
			if num >= v.logNumber || (v.prevLogNumber != 0 && num == v.prevLogNumber) {
				logs = append(logs, num)
			}
		}
	case errors.Is(err, fs.ErrNotExist):
		if len(files.logs) == 0 && len(files.tables) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmpty, dir)
		}
		logger.Debug("no descriptor, opening from log and table files",
			slog.String("dir", dir),
			slog.Int("logs", len(files.logs)),
			slog.Int("tables", len(files.tables)))
		for _, num := range files.tables {
			tables = append(tables, tableMeta{number: num})
		}
		logs = files.logs
	default:
		return nil, err
	}

	db := &DB{dir: dir, mem: &memTable{}, logger: logger}
	for _, meta := range tables {
		path, ok := files.tablePath(meta.number)
		if !ok {
			_ = db.Close() //nolint:errcheck // missing table error takes precedence
			return nil, fmt.Errorf("%w: table %06d listed in descriptor is missing", ErrCorrupt, meta.number)
		}
		t, err := openTable(path, registry, !opts.IgnoreChecksums)
		if err != nil {
			_ = db.Close() //nolint:errcheck // open error takes precedence
			return nil, err
		}
		db.tables = append(db.tables, t)
	}

	for _, num := range logs {
		if err := db.replayLog(filepath.Join(dir, logName(num))); err != nil {
			_ = db.Close() //nolint:errcheck // replay error takes precedence
			return nil, err
		}
	}

	logger.Debug("opened store",
		slog.String("dir", dir),
		slog.Int("tables", len(db.tables)),
		slog.Int("logs", len(logs)),
		slog.Int("memtable_entries", db.mem.len()))
	return db, nil
}

func (db *DB) replayLog(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is built from the store directory
	if err != nil {
		return err
	}
	records, err := readJournal(data)
	if err != nil {
		return fmt.Errorf("log %s: %w", filepath.Base(path), err)
	}
	for _, rec := range records {
		batch, err := decodeBatch(rec)
		if err != nil {
			return fmt.Errorf("log %s: %w", filepath.Base(path), err)
		}
		for _, r := range batch {
			db.mem.add(r)
		}
	}
	return nil
}

// Close releases every table file. It is safe to call more than once.
func (db *DB) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true
	var errs []error
	for _, t := range db.tables {
		if err := t.close(); err != nil {
			errs = append(errs, err)
		}
	}
	db.tables = nil
	return errors.Join(errs...)
}

// NewIterator returns an iterator over the live key/value pairs in
// ascending key order. Only the newest version of each key is visible and
// deleted keys are omitted.
func (db *DB) NewIterator() *Iterator {
	if db.closed {
		return &Iterator{failed: ErrReleased}
	}
	children := make([]internalIterator, 0, len(db.tables)+1)
	children = append(children, db.mem.iterator())
	for _, t := range db.tables {
		children = append(children, t.iterator())
	}
	return &Iterator{merged: newMergingIterator(children...)}
}

// Iterator walks live entries. Key and Value remain valid until the next
// call to Next.
type Iterator struct {
	merged   *mergingIterator
	last     []byte
	hasLast  bool
	val      []byte
	failed   error
	released bool
}

// Next advances to the next live entry.
func (it *Iterator) Next() bool {
	if it.failed != nil || it.released {
		return false
	}
	for it.merged.next() {
		ukey, _, kind, err := parseInternalKey(it.merged.key())
		if err != nil {
			it.failed = err
			return false
		}
		if it.hasLast && bytes.Equal(ukey, it.last) {
			continue
		}
		it.last = append(it.last[:0], ukey...)
		it.hasLast = true
		if kind == kindDeletion {
			continue
		}
		it.val = it.merged.value()
		return true
	}
	it.failed = it.merged.err()
	return false
}

// Key returns the user key of the current entry.
func (it *Iterator) Key() []byte {
	return it.last
}

// Value returns the value of the current entry.
func (it *Iterator) Value() []byte {
	return it.val
}

// Error returns the first error encountered during iteration.
func (it *Iterator) Error() error {
	return it.failed
}

// Release marks the iterator as finished.
func (it *Iterator) Release() {
	it.released = true
	it.val = nil
}

type dirFiles struct {
	logs   []uint64
	tables []uint64
	paths  map[uint64]string
}

func (f *dirFiles) tablePath(num uint64) (string, bool) {
	p, ok := f.paths[num]
	return p, ok
}

// listFiles classifies the numbered files in dir.
func listFiles(dir string) (*dirFiles, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := &dirFiles{paths: make(map[uint64]string)}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		num, err := strconv.ParseUint(strings.TrimSuffix(name, ext), 10, 64)
		if err != nil {
			continue
		}
		switch ext {
		case ".log":
			files.logs = append(files.logs, num)
		case ".ldb", ".sst":
			if _, dup := files.paths[num]; dup {
				continue
			}
			files.tables = append(files.tables, num)
			files.paths[num] = filepath.Join(dir, name)
		}
	}
	slices.Sort(files.logs)
	slices.Sort(files.tables)
	return files, nil
}

// readCurrentVersion follows CURRENT to the live descriptor. It returns an
// error wrapping fs.ErrNotExist when CURRENT is absent.
func readCurrentVersion(dir string) (*version, error) {
	current, err := os.ReadFile(filepath.Join(dir, "CURRENT")) //nolint:gosec // fixed name under the store directory
	if err != nil {
		return nil, err
	}
	name := string(current)
	if !strings.HasSuffix(name, "\n") {
		return nil, fmt.Errorf("%w: CURRENT does not end with a newline", ErrCorrupt)
	}
	name = strings.TrimSuffix(name, "\n")
	if !strings.HasPrefix(name, "MANIFEST-") || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: CURRENT names %q", ErrCorrupt, name)
	}

	data, err := os.ReadFile(filepath.Join(dir, name)) //nolint:gosec // name validated above
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: descriptor %s is missing", ErrCorrupt, name)
		}
		return nil, err
	}
	v, err := replayManifest(data)
	if err != nil {
		return nil, fmt.Errorf("descriptor %s: %w", name, err)
	}
	return v, nil
}

func logName(num uint64) string {
	return fmt.Sprintf("%06d.log", num)
}
