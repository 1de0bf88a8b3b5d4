// Package codec provides the block compressors used by the world store.
//
// Every table block in the store carries a one-byte compressor id in its
// trailer. A Registry maps those ids to codecs. Bedrock Edition writes raw
// DEFLATE blocks (id 4) by default, older producers write zlib (id 2), and
// stock LevelDB writes snappy (id 1).
package codec

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/klauspost/compress/flate"
)

// ID identifies a block compressor as stored on disk.
type ID uint8

// Compressor ids understood by the default registry.
const (
	None       ID = 0
	Snappy     ID = 1
	Zlib       ID = 2
	RawDeflate ID = 4
)

// String returns the human-readable name of the compressor.
func (id ID) String() string {
	switch id {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	case Zlib:
		return "zlib"
	case RawDeflate:
		return "raw-deflate"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(id))
	}
}

// Sentinel errors for codec operations.
var (
	// ErrCompression is returned when a block cannot be encoded or decoded.
	ErrCompression = errors.New("codec: compression failed")

	// ErrUnknownCodec is returned when a compressor id has no registered codec.
	ErrUnknownCodec = errors.New("codec: unknown compressor id")
)

// Codec compresses and decompresses whole blocks.
//
// Decode must be the exact inverse of Encode. Implementations must be safe
// for concurrent use.
type Codec interface {
	Encode(src []byte) ([]byte, error)
	Decode(src []byte) ([]byte, error)
}

// Registry maps compressor ids to codecs.
//
// A Registry is immutable once constructed and safe for concurrent use.
type Registry struct {
	codecs map[ID]Codec
	def    ID
}

type registryConfig struct {
	level  int
	def    ID
	codecs map[ID]Codec
}

// Option configures a Registry.
type Option func(*registryConfig)

// WithLevel sets the compression level used by the zlib and raw-deflate
// codecs when encoding. The level has no effect on decoding.
// Valid values range from flate.HuffmanOnly to flate.BestCompression.
func WithLevel(level int) Option {
	return func(c *registryConfig) {
		c.level = level
	}
}

// WithDefault sets the id reported by DefaultID. The id must be registered.
func WithDefault(id ID) Option {
	return func(c *registryConfig) {
		c.def = id
	}
}

// WithCodec registers an additional codec, replacing any built-in codec
// with the same id.
func WithCodec(id ID, codec Codec) Option {
	return func(c *registryConfig) {
		if c.codecs == nil {
			c.codecs = make(map[ID]Codec)
		}
		c.codecs[id] = codec
	}
}

// NewRegistry builds a registry holding the none, snappy, zlib, and
// raw-deflate codecs with raw-deflate as the default.
func NewRegistry(opts ...Option) (*Registry, error) {
	cfg := registryConfig{
		level: flate.DefaultCompression,
		def:   RawDeflate,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.level < flate.HuffmanOnly || cfg.level > flate.BestCompression {
		return nil, fmt.Errorf("codec: invalid compression level %d", cfg.level)
	}

	codecs := map[ID]Codec{
		None:       noneCodec{},
		Snappy:     snappyCodec{},
		Zlib:       newZlibCodec(cfg.level),
		RawDeflate: newFlateCodec(cfg.level),
	}
	for id, c := range cfg.codecs {
		if c == nil {
			return nil, fmt.Errorf("codec: nil codec for id %d", uint8(id))
		}
		codecs[id] = c
	}
	if _, ok := codecs[cfg.def]; !ok {
		return nil, fmt.Errorf("%w: default %s", ErrUnknownCodec, cfg.def)
	}

	return &Registry{codecs: codecs, def: cfg.def}, nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
})

// Default returns the shared registry with default settings.
func Default() *Registry {
	return defaultRegistry()
}

// DefaultID returns the id new blocks would be encoded with.
func (r *Registry) DefaultID() ID {
	return r.def
}

// IDs returns the registered compressor ids in ascending order.
func (r *Registry) IDs() []ID {
	ids := make([]ID, 0, len(r.codecs))
	for id := range r.codecs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Lookup returns the codec registered for id.
func (r *Registry) Lookup(id ID) (Codec, error) {
	c, ok := r.codecs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, uint8(id))
	}
	return c, nil
}

// Encode compresses src with the codec registered for id.
func (r *Registry) Encode(id ID, src []byte) ([]byte, error) {
	c, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	return c.Encode(src)
}

// Decode decompresses src with the codec registered for id.
func (r *Registry) Decode(id ID, src []byte) ([]byte, error) {
	c, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	return c.Decode(src)
}
