//go:build integration

// Package integration exercises world publishing against a real OCI
// registry started with testcontainers.
//
// Run with: go test -tags=integration ./integration/...
package integration
