package leveldb

import "errors"

var (
	// ErrNotFound is returned when the store directory does not exist.
	ErrNotFound = errors.New("leveldb: store not found")

	// ErrCorrupt is returned when a descriptor, log, or table fails
	// structural or checksum validation.
	ErrCorrupt = errors.New("leveldb: corrupted store")

	// ErrUnsupported is returned for stores this reader cannot interpret,
	// such as a non-bytewise comparator.
	ErrUnsupported = errors.New("leveldb: unsupported store")

	// ErrEmpty is returned when the directory holds no descriptor, log, or
	// table files.
	ErrEmpty = errors.New("leveldb: no store files")

	// ErrReleased is returned when an iterator is used after Release or a
	// DB after Close.
	ErrReleased = errors.New("leveldb: use after release")
)
