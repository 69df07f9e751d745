package middleware_test

import (
	"context"
	"crypto/rand"
	"testing"

	"github.com/aretw0/flowgraph/pkg/adapters/memory"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/persistence/middleware"
	"github.com/aretw0/flowgraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taskPath = domain.TaskPath{Flow: "SecretFlow", Run: "r1", Step: "start", Task: "1"}

func generateKey(t *testing.T) []byte {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func encrypted(t *testing.T, ds ports.Datastore, cfg middleware.EncryptionConfig) ports.Datastore {
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(ds)
}

func TestEncryptionMiddleware_RoundTrip(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewDatastore()
	secure := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	store, err := secure.Open(ctx, taskPath)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "secret", "super-secret-value"))

	v, err := store.Load(ctx, "secret")
	require.NoError(t, err)
	assert.Equal(t, "super-secret-value", v)

	raw, err := underlying.Open(ctx, taskPath)
	require.NoError(t, err)
	blob, err := raw.LoadBlob(ctx, "secret")
	require.NoError(t, err)
	assert.NotContains(t, string(blob.Data), "super-secret-value")

	items, err := store.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, blob.Fingerprint, items[0].Fingerprint)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewDatastore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	old := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey})
	store, err := old.Open(ctx, taskPath)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "data", "encrypted-with-old-key"))

	rotated := encrypted(t, underlying, middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	store, err = rotated.Open(ctx, taskPath)
	require.NoError(t, err)
	v, err := store.Load(ctx, "data")
	require.NoError(t, err)
	assert.Equal(t, "encrypted-with-old-key", v)

	require.NoError(t, store.Save(ctx, "data", "encrypted-with-new-key"))

	store, err = old.Open(ctx, taskPath)
	require.NoError(t, err)
	_, err = store.Load(ctx, "data")
	assert.ErrorContains(t, err, "decryption failed with all available keys")
}

func TestEncryptionMiddleware_Passdown(t *testing.T) {
	ctx := context.Background()
	secure := encrypted(t, memory.NewDatastore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	from, err := secure.Open(ctx, taskPath)
	require.NoError(t, err)
	require.NoError(t, from.Save(ctx, "n", 7))

	child := taskPath
	child.Step, child.Task = "end", "2"
	to, err := secure.Open(ctx, child)
	require.NoError(t, err)
	require.NoError(t, to.Passdown(ctx, from, []string{"n"}))

	v, err := to.Load(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.ErrorIs(t, err, middleware.ErrInvalidKey)
}

func TestChain_ListsThrough(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewDatastore()
	redact, err := middleware.NewRedactionMiddleware([]string{"token"})
	require.NoError(t, err)
	encrypt, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	ds := middleware.Chain(underlying, redact, encrypt)

	store, err := ds.Open(ctx, taskPath)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "token", "abc"))
	require.NoError(t, store.Save(ctx, "plain", "visible"))

	v, err := store.Load(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, v)
	v, err = store.Load(ctx, "plain")
	require.NoError(t, err)
	assert.Equal(t, "visible", v)

	runs, err := ds.Runs(ctx, "SecretFlow")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, runs)
	tasks, err := ds.Tasks(ctx, "SecretFlow", "r1", "start")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, tasks)
}
