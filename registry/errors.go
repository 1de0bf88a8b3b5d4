package registry

import "errors"

// Sentinel errors for registry operations.
var (
	// ErrNotFound is returned when no world exists at the reference.
	ErrNotFound = errors.New("registry: not found")

	// ErrUnauthorized is returned when authentication fails.
	ErrUnauthorized = errors.New("registry: unauthorized")

	// ErrForbidden is returned when access is denied.
	ErrForbidden = errors.New("registry: forbidden")

	// ErrInvalidReference is returned when a reference string is malformed.
	ErrInvalidReference = errors.New("registry: invalid reference")

	// ErrInvalidManifest is returned when a manifest does not describe a
	// world archive.
	ErrInvalidManifest = errors.New("registry: invalid world manifest")

	// ErrTooLarge is returned when a world layer exceeds the pull size limit.
	ErrTooLarge = errors.New("registry: world archive too large")
)
