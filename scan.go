package mcworld

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/meigma/mcworld/internal/keyname"
	"github.com/meigma/mcworld/internal/leveldb"
)

// storeDir is the store location relative to the world root.
const storeDir = "db"

// scanStore opens the store under root and lists every live key in store
// order. The store is closed before scanStore returns.
func (e *Extractor) scanStore(root string) (keys []KeyRecord, err error) {
	dir := filepath.Join(root, storeDir)
	db, err := leveldb.Open(dir, &leveldb.Options{
		Registry:        e.registry,
		IgnoreChecksums: e.ignoreChecksums,
		Logger:          e.logger,
	})
	if err != nil {
		return nil, openError(err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close: %w", ErrStoreOpen, cerr)
		}
	}()

	it := db.NewIterator()
	defer it.Release()

	keys = make([]KeyRecord, 0)
	for it.Next() {
		keys = append(keys, KeyRecord{
			Name: keyname.Display(it.Key()),
			Size: len(it.Value()),
		})
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("scan store: %w", err)
	}
	e.logger.Debug("scanned store", slog.String("dir", dir), slog.Int("keys", len(keys)))
	return keys, nil
}
