// Package mcworld inspects packaged world saves.
//
// A world save is a zip container (.mcworld) holding a file tree and an
// embedded LevelDB-format key-value store under db/. Extracting a world
// produces two listings:
//   - Root: every file of the archive as a tree, in archive order
//   - Keys: every live key of the store with the byte length of its value
//
// Store tables may compress blocks with zlib or raw DEFLATE in addition to
// the stock LevelDB codecs; see [WithRegistry].
//
// # Quick Start
//
// Inspect an archive on disk:
//
//	res, err := mcworld.New().ExtractFile("survival.mcworld")
//	if err != nil {
//	    return err
//	}
//	for _, k := range res.Keys {
//	    fmt.Println(k.Name, k.Size)
//	}
//
// Inspect a world that is already expanded:
//
//	res, err := mcworld.ExtractPath("worlds/survival")
//
// # Caching
//
// Extraction results depend only on the archive bytes. With [WithCache],
// results are stored under the archive digest and concurrent extractions of
// the same archive share one run:
//
//	c, err := disk.New("/var/cache/mcworld")
//	if err != nil {
//	    return err
//	}
//	x := mcworld.New(mcworld.WithCache(c))
//
// # Errors
//
// Failures are reported through sentinel errors matched with [errors.Is].
// Keys never fail to decode: keys that are not printable ASCII text are
// shown as 0x-prefixed lowercase hex.
package mcworld
