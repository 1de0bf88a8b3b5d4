//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/mcworld"
	"github.com/meigma/mcworld/registry"
)

var wantKeys = []mcworld.KeyRecord{
	{Name: "BiomeData", Size: 6},
	{Name: "Overworld", Size: 2},
	{Name: "~local_player", Size: 6},
}

func TestPushPullExtract(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	addr := getRegistry(t)
	client := newTestClient()
	ref := testRef(addr, "push-pull", "v1")
	archive := worldArchive(t)

	desc, err := client.Push(ctx, ref, archive, registry.PushWithWorldName("Integration"))
	require.NoError(t, err)

	world, err := client.Pull(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, archive, world.Bytes())
	assert.Equal(t, desc.Digest, world.Descriptor.Digest)
	assert.Equal(t, "Integration", world.Name)

	res, err := mcworld.New(mcworld.WithTempDir(t.TempDir())).ExtractFrom(world)
	require.NoError(t, err)
	assert.Equal(t, wantKeys, res.Keys)
}

func TestOpenLazy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	addr := getRegistry(t)
	client := newTestClient()
	ref := testRef(addr, "lazy", "v1")
	archive := worldArchive(t)

	_, err := client.Push(ctx, ref, archive)
	require.NoError(t, err)

	src, m, err := client.Open(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(len(archive)), m.Layer.Size)

	res, err := mcworld.New(mcworld.WithTempDir(t.TempDir())).ExtractFrom(src)
	require.NoError(t, err)
	assert.Equal(t, wantKeys, res.Keys)
}

func TestRepushSameContent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	addr := getRegistry(t)
	client := newTestClient()
	archive := worldArchive(t)

	_, err := client.Push(ctx, testRef(addr, "repush", "a"), archive)
	require.NoError(t, err)
	_, err = client.Push(ctx, testRef(addr, "repush", "b"), archive)
	require.NoError(t, err)

	a, err := client.Resolve(ctx, testRef(addr, "repush", "a"))
	require.NoError(t, err)
	b, err := client.Resolve(ctx, testRef(addr, "repush", "b"))
	require.NoError(t, err)
	assert.Equal(t, a.Layer.Digest, b.Layer.Digest)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	addr := getRegistry(t)

	_, err := newTestClient().Pull(ctx, testRef(addr, "missing-world", "v1"))
	require.ErrorIs(t, err, registry.ErrNotFound)

	ref := testRef(addr, "too-large", "v1")
	_, err = newTestClient().Push(ctx, ref, worldArchive(t))
	require.NoError(t, err)
	_, err = newTestClient(registry.WithMaxWorldSize(16)).Pull(ctx, ref)
	require.ErrorIs(t, err, registry.ErrTooLarge)
}
