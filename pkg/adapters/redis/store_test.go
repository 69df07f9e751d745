package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/flowgraph/pkg/adapters/redis"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func TestRedisDatastore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunDatastoreContract(t, redis.NewFromClient(client))
}

func TestRedisDatastore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)

	ds := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	path := domain.TaskPath{Flow: "F", Run: "1", Step: "start", Task: "1"}

	store, err := ds.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "foo", "bar"))

	tasks, err := ds.Tasks(ctx, "F", "1", "start")
	require.NoError(t, err)
	assert.Contains(t, tasks, "1")

	// Fast forward time in miniredis (for key expiration)
	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, "foo")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)

	items, err := store.Items(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRedisDatastore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	ds := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	store, err := ds.Open(ctx, domain.TaskPath{Flow: "F", Run: "9", Step: "start", Task: "1"})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "x", 1))

	assert.True(t, mr.Exists("custom:app:task:F/9/start/1:data"), "Expected data hash with custom prefix")
	assert.True(t, mr.Exists("custom:app:task:F/9/start/1:fp"), "Expected fingerprint hash with custom prefix")
	assert.True(t, mr.Exists("custom:app:tasks:F/9/start"), "Expected task index with custom prefix")
	assert.True(t, mr.Exists("custom:app:runs:F"), "Expected run index with custom prefix")
}
