package registry

import (
	"encoding/json"
	"fmt"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Manifest describes a world artifact.
type Manifest struct {
	// Descriptor identifies the manifest itself.
	Descriptor ocispec.Descriptor

	// Layer identifies the zip container blob.
	Layer ocispec.Descriptor

	// Name is the world's display name, if it was recorded at push time.
	Name string

	// Created is the push time, or zero when not recorded.
	Created time.Time

	raw ocispec.Manifest
}

// Annotations returns the manifest annotations.
func (m *Manifest) Annotations() map[string]string {
	return m.raw.Annotations
}

// parseManifest decodes manifest bytes and checks that they describe a
// world artifact with exactly one world layer.
func parseManifest(desc ocispec.Descriptor, data []byte) (*Manifest, error) {
	var raw ocispec.Manifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if raw.MediaType != "" && raw.MediaType != ocispec.MediaTypeImageManifest {
		return nil, fmt.Errorf("%w: unexpected manifest media type %q", ErrInvalidManifest, raw.MediaType)
	}
	if raw.ArtifactType != ArtifactType {
		return nil, fmt.Errorf("%w: unexpected artifact type %q", ErrInvalidManifest, raw.ArtifactType)
	}

	m := &Manifest{Descriptor: desc, raw: raw}
	found := false
	for _, layer := range raw.Layers {
		if layer.MediaType != MediaTypeWorld {
			continue
		}
		if found {
			return nil, fmt.Errorf("%w: multiple world layers", ErrInvalidManifest)
		}
		if err := layer.Digest.Validate(); err != nil {
			return nil, fmt.Errorf("%w: world layer digest: %v", ErrInvalidManifest, err)
		}
		if layer.Size < 0 {
			return nil, fmt.Errorf("%w: negative world layer size", ErrInvalidManifest)
		}
		m.Layer = layer
		found = true
	}
	if !found {
		return nil, fmt.Errorf("%w: no %s layer", ErrInvalidManifest, MediaTypeWorld)
	}

	m.Name = raw.Annotations[AnnotationWorldName]
	if created, ok := raw.Annotations[ocispec.AnnotationCreated]; ok {
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			m.Created = t
		}
	}
	return m, nil
}
