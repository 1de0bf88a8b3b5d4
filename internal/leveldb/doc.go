// Package leveldb implements a read-only reader for LevelDB-format stores,
// including the Bedrock Edition variant that compresses table blocks with
// zlib or raw DEFLATE.
//
// The on-disk layout:
//
//	CURRENT          name of the live descriptor, e.g. "MANIFEST-000005\n"
//	MANIFEST-NNNNNN  log-format records holding version edits
//	NNNNNN.log       write-ahead log of write batches
//	NNNNNN.ldb/.sst  immutable sorted tables
//
// A DB never writes to the directory: it takes no lock, replays logs into
// memory rather than flushing them, and performs no compaction.
package leveldb
