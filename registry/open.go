package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	mchttp "github.com/meigma/mcworld/http"
	orasregistry "oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote/auth"
)

// ErrLazyUnsupported is returned by Open when the client is not talking to
// a remote registry.
var ErrLazyUnsupported = errors.New("registry: lazy access needs a remote registry")

// Open resolves the world at ref and returns a source that reads the
// archive layer with HTTP range requests. Only the byte ranges an extractor
// touches are downloaded. The layer digest is not verified; use Pull when
// integrity matters more than transfer size.
func (c *Client) Open(ctx context.Context, ref string, opts ...mchttp.Option) (*mchttp.Source, *Manifest, error) {
	r, err := parseRef(ref)
	if err != nil {
		return nil, nil, err
	}
	if !c.remote {
		return nil, nil, ErrLazyUnsupported
	}
	_, m, err := c.resolve(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	ctx = auth.AppendRepositoryScope(ctx, r, auth.ActionPull)
	client := &http.Client{Transport: &authTransport{client: c.authClient}}
	opts = append([]mchttp.Option{mchttp.WithClient(client)}, opts...)

	src, err := mchttp.NewSource(ctx, c.blobURL(r, m), opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("open world layer: %w", err)
	}
	if src.Size() != m.Layer.Size {
		return nil, nil, fmt.Errorf("%w: layer size %d, descriptor says %d", ErrInvalidManifest, src.Size(), m.Layer.Size)
	}
	c.logger.Debug("opened world lazily", "ref", ref, "size", src.Size())
	return src, m, nil
}

func (c *Client) blobURL(r orasregistry.Reference, m *Manifest) string {
	scheme := "https"
	if c.plainHTTP {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/v2/%s/blobs/%s", scheme, r.Host(), r.Repository, m.Layer.Digest)
}

// authTransport sends requests through the auth client so range reads
// share its token cache.
type authTransport struct {
	client *auth.Client
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.client.Do(req)
}
