package registry

import (
	"context"
	"errors"
	"strings"

	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
)

// dockerHubHosts are the names Docker Hub credentials may be stored under.
var dockerHubHosts = []string{
	"https://index.docker.io/v1/",
	"index.docker.io",
	"registry-1.docker.io",
	"docker.io",
}

// DefaultCredentialStore returns a credential store that reads from the
// Docker config (~/.docker/config.json) and its credential helpers.
func DefaultCredentialStore() (credentials.Store, error) {
	store, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
	if err != nil {
		return nil, err
	}
	return &dockerStore{Store: store}, nil
}

// StaticCredentials returns a read-only store holding a username and
// password for one registry.
func StaticCredentials(registry, username, password string) credentials.Store {
	return &staticStore{
		host: hostOf(registry),
		cred: auth.Credential{Username: username, Password: password},
	}
}

// StaticToken returns a read-only store holding a bearer token for one
// registry.
func StaticToken(registry, token string) credentials.Store {
	return &staticStore{
		host: hostOf(registry),
		cred: auth.Credential{AccessToken: token},
	}
}

var errReadOnlyStore = errors.New("registry: static credential store is read-only")

type staticStore struct {
	host string
	cred auth.Credential
}

func (s *staticStore) Get(_ context.Context, serverAddress string) (auth.Credential, error) {
	host := hostOf(serverAddress)
	if host == s.host || (isDockerHub(host) && isDockerHub(s.host)) {
		return s.cred, nil
	}
	return auth.EmptyCredential, nil
}

func (s *staticStore) Put(context.Context, string, auth.Credential) error {
	return errReadOnlyStore
}

func (s *staticStore) Delete(context.Context, string) error {
	return errReadOnlyStore
}

// dockerStore retries Docker Hub lookups under each of its known names.
type dockerStore struct {
	credentials.Store
}

func (s *dockerStore) Get(ctx context.Context, serverAddress string) (auth.Credential, error) {
	cred, err := s.Store.Get(ctx, serverAddress)
	if (err == nil && !emptyCredential(cred)) || !isDockerHub(hostOf(serverAddress)) {
		return cred, err
	}
	for _, alt := range dockerHubHosts {
		if alt == serverAddress {
			continue
		}
		if c, altErr := s.Store.Get(ctx, alt); altErr == nil && !emptyCredential(c) {
			return c, nil
		}
	}
	return cred, err
}

// hostOf strips any scheme and path from a server address, keeping the port.
func hostOf(addr string) string {
	addr = strings.TrimPrefix(addr, "https://")
	addr = strings.TrimPrefix(addr, "http://")
	addr, _, _ = strings.Cut(addr, "/")
	return addr
}

func isDockerHub(hostport string) bool {
	host := hostport
	if !strings.HasPrefix(host, "[") {
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
	}
	switch host {
	case "docker.io", "registry-1.docker.io", "index.docker.io":
		return true
	}
	return false
}

func emptyCredential(cred auth.Credential) bool {
	return cred.Username == "" && cred.Password == "" && cred.AccessToken == "" && cred.RefreshToken == ""
}
