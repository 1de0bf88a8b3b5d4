//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meigma/mcworld/internal/leveldb/leveldbtest"
	"github.com/meigma/mcworld/internal/testutil"
	"github.com/meigma/mcworld/registry"
)

var (
	registryOnce sync.Once
	registryAddr string
	registryErr  error
)

// getRegistry returns the address of a registry:2 container shared by all
// tests in the package.
func getRegistry(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	registryOnce.Do(func() {
		registryAddr, registryErr = startRegistryContainer(context.Background())
	})
	if registryErr != nil {
		tb.Fatalf("start registry container: %v", registryErr)
	}
	return registryAddr
}

func startRegistryContainer(ctx context.Context) (string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "registry:2",
			ExposedPorts: []string{"5000/tcp"},
			WaitingFor:   wait.ForHTTP("/v2/").WithPort("5000/tcp").WithStatusCodeMatcher(isOKStatus),
		},
		Started: true,
	})
	if err != nil {
		return "", fmt.Errorf("start registry container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve registry host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5000/tcp")
	if err != nil {
		return "", fmt.Errorf("resolve registry port: %w", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port()), nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

func newTestClient(opts ...registry.Option) *registry.Client {
	return registry.New(append([]registry.Option{registry.WithPlainHTTP(true), registry.WithAnonymous()}, opts...)...)
}

// testRef returns a reference unique to the test name.
func testRef(addr, name, tag string) string {
	return fmt.Sprintf("%s/test/%s:%s", addr, name, tag)
}

// worldArchive builds a world with a table-backed store and a level.dat.
func worldArchive(tb testing.TB) []byte {
	tb.Helper()

	dir := tb.TempDir()
	w := leveldbtest.NewWriter(tb, dir+"/db")
	w.Table(0, 2, leveldbtest.Put("BiomeData", "biomes"), leveldbtest.Put("~local_player", "player"))
	w.Batch(leveldbtest.Put("Overworld", "ow"))
	w.Close()
	testutil.WriteFiles(tb, dir, map[string][]byte{
		"level.dat":     []byte("level"),
		"levelname.txt": []byte("Integration"),
	})
	return testutil.ZipDir(tb, dir)
}
