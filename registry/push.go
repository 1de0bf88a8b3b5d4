package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
)

type pushConfig struct {
	title   string
	name    string
	created time.Time
}

// PushOption configures Push.
type PushOption func(*pushConfig)

// PushWithTitle records the archive file name on the layer.
func PushWithTitle(title string) PushOption {
	return func(c *pushConfig) {
		c.title = title
	}
}

// PushWithWorldName records the world's display name on the manifest.
func PushWithWorldName(name string) PushOption {
	return func(c *pushConfig) {
		c.name = name
	}
}

// PushWithCreated sets the creation time recorded on the manifest.
// Defaults to the current time.
func PushWithCreated(t time.Time) PushOption {
	return func(c *pushConfig) {
		c.created = t
	}
}

// Push publishes a world archive under ref, which must carry a tag.
// The archive bytes are stored unchanged as the single world layer.
func (c *Client) Push(ctx context.Context, ref string, archive []byte, opts ...PushOption) (ocispec.Descriptor, error) {
	cfg := pushConfig{created: time.Now().UTC()}
	for _, opt := range opts {
		opt(&cfg)
	}

	r, err := parseRef(ref)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	if err := r.ValidateReferenceAsTag(); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("%w: push needs a tag: %v", ErrInvalidReference, err)
	}
	target, err := c.targetFunc(r)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	c.logger.Info("pushing world", "ref", ref, "size", len(archive))

	layer := ocispec.Descriptor{
		MediaType: MediaTypeWorld,
		Digest:    digest.FromBytes(archive),
		Size:      int64(len(archive)),
	}
	if cfg.title != "" {
		layer.Annotations = map[string]string{ocispec.AnnotationTitle: cfg.title}
	}
	if err := pushBlob(ctx, target, layer, archive); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("push world layer: %w", err)
	}
	config := ocispec.DescriptorEmptyJSON
	if err := pushBlob(ctx, target, config, config.Data); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("push config: %w", err)
	}

	annotations := map[string]string{
		ocispec.AnnotationCreated: cfg.created.Format(time.RFC3339),
	}
	if cfg.name != "" {
		annotations[AnnotationWorldName] = cfg.name
	}
	config.Data = nil
	manifest := ocispec.Manifest{
		Versioned:    specs.Versioned{SchemaVersion: 2},
		MediaType:    ocispec.MediaTypeImageManifest,
		ArtifactType: ArtifactType,
		Config:       config,
		Layers:       []ocispec.Descriptor{layer},
		Annotations:  annotations,
	}
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("marshal manifest: %w", err)
	}
	desc := ocispec.Descriptor{
		MediaType:    ocispec.MediaTypeImageManifest,
		ArtifactType: ArtifactType,
		Digest:       digest.FromBytes(manifestJSON),
		Size:         int64(len(manifestJSON)),
	}
	if err := pushBlob(ctx, target, desc, manifestJSON); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("push manifest: %w", err)
	}
	if err := target.Tag(ctx, desc, r.Reference); err != nil {
		return ocispec.Descriptor{}, fmt.Errorf("tag %s: %w", r.Reference, mapError(err))
	}

	c.logger.Debug("pushed world", "ref", ref, "digest", desc.Digest.String())
	return desc, nil
}

// pushBlob pushes content unless the target already holds it.
func pushBlob(ctx context.Context, target oras.Target, desc ocispec.Descriptor, data []byte) error {
	exists, err := target.Exists(ctx, desc)
	if err != nil {
		return mapError(err)
	}
	if exists {
		return nil
	}
	return mapError(target.Push(ctx, desc, bytes.NewReader(data)))
}
