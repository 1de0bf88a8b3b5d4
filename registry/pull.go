package registry

import (
	"bytes"
	"context"
	"fmt"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
)

// World is a downloaded world archive. It satisfies mcworld.ByteSource.
type World struct {
	*Manifest
	r    *bytes.Reader
	data []byte
}

// ReadAt implements io.ReaderAt over the archive bytes.
func (w *World) ReadAt(p []byte, off int64) (int, error) {
	return w.r.ReadAt(p, off)
}

// Size returns the archive length.
func (w *World) Size() int64 {
	return int64(len(w.data))
}

// Bytes returns the archive bytes. The caller must not modify them.
func (w *World) Bytes() []byte {
	return w.data
}

// Pull downloads the world archive at ref. The layer digest and size are
// verified before Pull returns.
func (c *Client) Pull(ctx context.Context, ref string) (*World, error) {
	target, m, err := c.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if c.maxWorldSize > 0 && m.Layer.Size > c.maxWorldSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, m.Layer.Size, c.maxWorldSize)
	}

	c.logger.Info("pulling world", "ref", ref, "size", m.Layer.Size)
	data, err := content.FetchAll(ctx, target, m.Layer)
	if err != nil {
		return nil, fmt.Errorf("fetch world layer: %w", mapError(err))
	}
	return &World{Manifest: m, r: bytes.NewReader(data), data: data}, nil
}

// Resolve fetches and validates the manifest at ref without downloading
// the archive.
func (c *Client) Resolve(ctx context.Context, ref string) (*Manifest, error) {
	_, m, err := c.resolve(ctx, ref)
	return m, err
}

func (c *Client) resolve(ctx context.Context, ref string) (oras.Target, *Manifest, error) {
	r, err := parseRef(ref)
	if err != nil {
		return nil, nil, err
	}
	target, err := c.targetFunc(r)
	if err != nil {
		return nil, nil, err
	}

	desc, err := target.Resolve(ctx, r.Reference)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve %s: %w", ref, mapError(err))
	}
	if desc.MediaType != "" && desc.MediaType != ocispec.MediaTypeImageManifest {
		return nil, nil, fmt.Errorf("%w: unsupported media type %s", ErrInvalidManifest, desc.MediaType)
	}
	data, err := content.FetchAll(ctx, target, desc)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch manifest: %w", mapError(err))
	}
	m, err := parseManifest(desc, data)
	if err != nil {
		return nil, nil, err
	}
	c.logger.Debug("resolved world", "ref", ref, "digest", desc.Digest.String(), "layer", m.Layer.Digest.String())
	return target, m, nil
}
