package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/flowgraph/pkg/adapters/memory"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDatastore_Contract(t *testing.T) {
	ports.RunDatastoreContract(t, memory.NewDatastore())
}

func TestMemoryLocker_Contract(t *testing.T) {
	ports.RunLockerContract(t, memory.NewLocker())
}

func TestMemoryDatastore_LoadBlobReturnsCopy(t *testing.T) {
	ctx := context.Background()
	ds := memory.NewDatastore()
	store, err := ds.Open(ctx, domain.TaskPath{Flow: "F", Run: "1", Step: "start", Task: "1"})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "x", "abc"))

	blob, err := store.LoadBlob(ctx, "x")
	require.NoError(t, err)
	blob.Data[0] = 'X'

	v, err := store.Load(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}
