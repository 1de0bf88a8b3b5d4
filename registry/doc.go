// Package registry stores world archives in OCI registries.
//
// A world is published as an OCI 1.1 artifact: an image manifest with
// artifact type [ArtifactType], the empty config, and one layer of media
// type [MediaTypeWorld] holding the .mcworld zip unchanged. Any registry
// that accepts OCI artifacts can hold worlds, and tools such as oras can
// fetch them without this package.
package registry
