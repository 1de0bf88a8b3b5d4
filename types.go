package mcworld

import (
	"github.com/meigma/mcworld/internal/archive"
	"github.com/meigma/mcworld/internal/codec"
	"github.com/meigma/mcworld/internal/tree"
)

// --- Re-exports from internal packages ---

// Node is an entry of the archive tree: a *File or a *Directory.
type Node = tree.Node

// File is a leaf of the archive tree.
type File = tree.File

// Directory is an interior node of the archive tree.
type Directory = tree.Directory

// ByteSource provides random access to archive bytes.
// *bytes.Reader and *http.Source satisfy it.
type ByteSource = archive.ByteSource

// Entry describes one extracted archive file.
type Entry = archive.Entry

// Registry maps store block compressor ids to codecs.
type Registry = codec.Registry

// CompressorID identifies a block compressor.
type CompressorID = codec.ID

// Compressor ids understood by the default registry.
const (
	CompressorNone       = codec.None
	CompressorSnappy     = codec.Snappy
	CompressorZlib       = codec.Zlib
	CompressorRawDeflate = codec.RawDeflate
)

// Node kinds as they appear in the "type" field of encoded nodes.
const (
	KindFile      = tree.KindFile
	KindDirectory = tree.KindDirectory
)

// NewRegistry builds a compressor registry; see [WithRegistry].
var NewRegistry = codec.NewRegistry

// Registry options re-exported from the codec package.
var (
	RegistryWithLevel   = codec.WithLevel
	RegistryWithDefault = codec.WithDefault
	RegistryWithCodec   = codec.WithCodec
)
