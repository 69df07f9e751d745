package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDatastoreContract runs a suite of tests to verify that a Datastore implementation
// adheres to the defined interface contract.
func RunDatastoreContract(t *testing.T, ds Datastore) {
	ctx := context.Background()
	run := "contract-" + time.Now().Format("20060102150405.000000000")
	parent := domain.TaskPath{Flow: "ContractFlow", Run: run, Step: "start", Task: "1"}
	child := domain.TaskPath{Flow: "ContractFlow", Run: run, Step: "end", Task: "2"}

	t.Run("Save and Load", func(t *testing.T) {
		store, err := ds.Open(ctx, parent)
		require.NoError(t, err, "Open should not return error")

		require.NoError(t, store.Save(ctx, "foo", "bar"))
		require.NoError(t, store.Save(ctx, "count", 42))

		v, err := store.Load(ctx, "foo")
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, "bar", v)

		v, err = store.Load(ctx, "count")
		require.NoError(t, err)
		assert.Equal(t, 42, v)

		ok, err := store.Has(ctx, "foo")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		store, err := ds.Open(ctx, parent)
		require.NoError(t, err)

		_, err = store.Load(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrArtifactNotFound)

		ok, err := store.Has(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Items", func(t *testing.T) {
		store, err := ds.Open(ctx, parent)
		require.NoError(t, err)

		items, err := store.Items(ctx)
		require.NoError(t, err)
		names := map[string]string{}
		for _, it := range items {
			names[it.Name] = it.Fingerprint
		}
		assert.Contains(t, names, "foo")
		assert.Contains(t, names, "count")
		assert.NotEmpty(t, names["foo"])
	})

	t.Run("Reopen Sees Persisted Data", func(t *testing.T) {
		store, err := ds.Open(ctx, parent)
		require.NoError(t, err)
		v, err := store.Load(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, "bar", v)
	})

	t.Run("Passdown Copies Stored Form", func(t *testing.T) {
		from, err := ds.Open(ctx, parent)
		require.NoError(t, err)
		to, err := ds.Open(ctx, child)
		require.NoError(t, err)

		require.NoError(t, to.Passdown(ctx, from, []string{"foo"}))

		src, err := from.LoadBlob(ctx, "foo")
		require.NoError(t, err)
		dst, err := to.LoadBlob(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, src.Fingerprint, dst.Fingerprint)

		ok, err := to.Has(ctx, "count")
		require.NoError(t, err)
		assert.False(t, ok, "only named artifacts are copied")
	})

	t.Run("Passdown Missing Writes Nothing", func(t *testing.T) {
		from, err := ds.Open(ctx, parent)
		require.NoError(t, err)
		to, err := ds.Open(ctx, child)
		require.NoError(t, err)

		err = to.Passdown(ctx, from, []string{"count", "missing"})
		assert.ErrorIs(t, err, domain.ErrArtifactNotFound)

		ok, err := to.Has(ctx, "count")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Tasks and Runs", func(t *testing.T) {
		tasks, err := ds.Tasks(ctx, parent.Flow, run, "start")
		require.NoError(t, err)
		assert.Contains(t, tasks, "1")

		_, err = ds.Tasks(ctx, parent.Flow, run, "nowhere")
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)

		runs, err := ds.Runs(ctx, parent.Flow)
		require.NoError(t, err)
		assert.Contains(t, runs, run)
	})
}

// RunLockerContract verifies mutual exclusion and release for a DistributedLocker.
func RunLockerContract(t *testing.T, locker DistributedLocker) {
	ctx := context.Background()
	key := "contract-lock-" + time.Now().Format("150405.000000000")

	unlock, err := locker.Lock(ctx, key, time.Second)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(short, key, time.Second)
	assert.Error(t, err, "second Lock should not succeed while held")

	require.NoError(t, unlock(ctx))

	unlock2, err := locker.Lock(ctx, key, time.Second)
	require.NoError(t, err, "Lock should succeed after release")
	require.NoError(t, unlock2(ctx))
}
