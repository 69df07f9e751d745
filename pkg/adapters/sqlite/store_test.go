package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/flowgraph/pkg/adapters/sqlite"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDatastore_Contract(t *testing.T) {
	ds, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	ports.RunDatastoreContract(t, ds)
}

func TestSQLiteDatastore_DurableAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "artifacts.db")
	path := domain.TaskPath{Flow: "F", Run: "1", Step: "start", Task: "1"}

	ds1, err := sqlite.Open(ctx, dbPath)
	require.NoError(t, err)
	store, err := ds1.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "x", map[string]any{"a": 1}))
	require.NoError(t, store.Save(ctx, "x", map[string]any{"a": 2}))
	require.NoError(t, ds1.Close())

	ds2, err := sqlite.Open(ctx, dbPath)
	require.NoError(t, err)
	defer ds2.Close()

	store, err = ds2.Open(ctx, path)
	require.NoError(t, err)
	v, err := store.Load(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 2}, v)

	items, err := store.Items(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1, "upsert keeps one row per artifact")
}
