package registry

// Media types for world archives in OCI registries.
const (
	// ArtifactType identifies world archives as an OCI 1.1 artifact type.
	ArtifactType = "application/vnd.meigma.mcworld.v1"

	// MediaTypeWorld is the media type of the layer holding the zip
	// container.
	MediaTypeWorld = "application/vnd.meigma.mcworld.v1+zip"
)

// AnnotationWorldName carries the world's display name when known.
const AnnotationWorldName = "dev.meigma.mcworld.name"
