package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/errdef"
	orasregistry "oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
	"oras.land/oras-go/v2/registry/remote/errcode"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const defaultMaxWorldSize int64 = 1 << 30

// Client pushes and pulls world archives.
//
// A Client shares one auth client, and with it one token cache, across all
// repositories it touches. It is safe for concurrent use.
type Client struct {
	plainHTTP    bool
	userAgent    string
	anonymous    bool
	credStore    credentials.Store
	maxWorldSize int64
	logger       *slog.Logger

	authClient *auth.Client
	targetFunc func(ref orasregistry.Reference) (oras.Target, error)
	remote     bool
}

// Option configures a Client.
type Option func(*Client)

// WithCredentialStore sets the credential store for authentication.
func WithCredentialStore(store credentials.Store) Option {
	return func(c *Client) {
		c.credStore = store
	}
}

// WithStaticCredentials sets static username/password credentials for a registry.
func WithStaticCredentials(registry, username, password string) Option {
	return func(c *Client) {
		c.credStore = StaticCredentials(registry, username, password)
	}
}

// WithStaticToken sets a bearer token for a registry.
func WithStaticToken(registry, token string) Option {
	return func(c *Client) {
		c.credStore = StaticToken(registry, token)
	}
}

// WithDockerConfig enables reading credentials from ~/.docker/config.json.
// If the docker config cannot be loaded, the client falls back to no
// credentials.
func WithDockerConfig() Option {
	return func(c *Client) {
		store, err := DefaultCredentialStore()
		if err != nil {
			return
		}
		c.credStore = store
	}
}

// WithPlainHTTP enables plain HTTP (no TLS) for registries.
// This is useful for local development registries.
func WithPlainHTTP(enabled bool) Option {
	return func(c *Client) {
		c.plainHTTP = enabled
	}
}

// WithAnonymous disables all authentication, including credential store
// lookups.
func WithAnonymous() Option {
	return func(c *Client) {
		c.anonymous = true
	}
}

// WithUserAgent sets the User-Agent header for requests.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxWorldSize bounds the size of world layers accepted by Pull.
// Defaults to 1 GiB. Use 0 to disable the limit.
func WithMaxWorldSize(n int64) Option {
	return func(c *Client) {
		c.maxWorldSize = n
	}
}

// WithLogger sets the logger for registry operations.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		userAgent:    "mcworld/1.0",
		maxWorldSize: defaultMaxWorldSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	c.authClient = &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
		Credential: func(ctx context.Context, hostport string) (auth.Credential, error) {
			if c.anonymous || c.credStore == nil {
				return auth.EmptyCredential, nil
			}
			return c.credStore.Get(ctx, hostport)
		},
		Header: http.Header{
			"User-Agent": []string{c.userAgent},
		},
	}
	c.targetFunc = c.repository
	c.remote = true
	return c
}

// repository creates a Repository for ref using the shared auth client.
func (c *Client) repository(ref orasregistry.Reference) (oras.Target, error) {
	repo, err := remote.NewRepository(ref.Registry + "/" + ref.Repository)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	repo.PlainHTTP = c.plainHTTP
	repo.Client = c.authClient
	return repo, nil
}

// parseRef parses a full reference and requires a tag or digest.
func parseRef(ref string) (orasregistry.Reference, error) {
	r, err := orasregistry.ParseReference(ref)
	if err != nil {
		return orasregistry.Reference{}, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	if r.Reference == "" {
		return orasregistry.Reference{}, fmt.Errorf("%w: %q has no tag or digest", ErrInvalidReference, ref)
	}
	return r, nil
}

// mapError maps ORAS errors to our sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errdef.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var errResp *errcode.ErrorResponse
	if errors.As(err, &errResp) {
		switch errResp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrForbidden, err)
		}
	}
	return err
}
