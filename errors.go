package mcworld

import (
	"errors"
	"fmt"

	"github.com/meigma/mcworld/internal/archive"
	"github.com/meigma/mcworld/internal/codec"
	"github.com/meigma/mcworld/internal/leveldb"
	"github.com/meigma/mcworld/internal/scratch"
)

// Errors re-exported from the archive reader.
var (
	// ErrArchiveFormat is returned when the input is not a valid zip
	// container, a member fails to decompress, or a member path would
	// escape the extraction directory.
	ErrArchiveFormat = archive.ErrFormat

	// ErrIO is returned when scratch storage cannot be created or written,
	// or a world directory cannot be read.
	ErrIO = archive.ErrIO
)

// Errors re-exported from the compressor registry.
var (
	// ErrCompression is returned when a store block fails to decompress.
	ErrCompression = codec.ErrCompression

	// ErrUnknownCodec is returned when a store block names a compressor id
	// that is not registered.
	ErrUnknownCodec = codec.ErrUnknownCodec
)

// Errors re-exported from the store reader.
var (
	// ErrStoreNotFound is returned when the world has no db directory.
	ErrStoreNotFound = leveldb.ErrNotFound

	// ErrStoreCorrupt is returned when a store descriptor, log, or table
	// fails structural or checksum validation.
	ErrStoreCorrupt = leveldb.ErrCorrupt
)

// ErrStoreOpen is returned when the db directory exists but cannot be
// opened as a store. It may be combined with ErrStoreCorrupt,
// ErrUnknownCodec, or ErrCompression when those caused the failure.
var ErrStoreOpen = errors.New("mcworld: cannot open store")

// openError classifies a failure from leveldb.Open.
func openError(err error) error {
	if errors.Is(err, leveldb.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreOpen, err)
}

// scratchError classifies a failure to set up scratch storage.
func scratchError(err error) error {
	if errors.Is(err, scratch.ErrCreate) {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return err
}
