package runtime

import (
	"context"
	"testing"

	"github.com/aretw0/flowgraph/pkg/adapters/memory"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/dsl"
	"github.com/aretw0/flowgraph/pkg/graph"
	"github.com/aretw0/flowgraph/pkg/ports"
	"github.com/stretchr/testify/require"
)

// testGraph covers every kind of transition exercised by the runtime tests.
//
//	start -> (a, b) -> fanout --foreach--> each -> gather -> wide --parallel--> worker -> collect -> end
//	                                                         wide --parallel--> bad -> end
func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	spec, err := dsl.New("TestFlow").
		Add("start").Go("a", "b").
		Add("a").Go("fanout").
		Add("b").Go("fanout").
		Add("fanout").Join().Foreach("items", "each").
		Add("each").Go("gather").
		Add("gather").Join().Go("wide").
		Add("wide").Parallel("worker").
		Add("worker").Go("collect").
		Add("collect").Join().Go("end").
		Add("bad").Go("end").
		Add("forked").Go("worker", "bad").
		Add("end").
		Builder().Build()
	require.NoError(t, err)
	return graph.New(spec)
}

func openStore(t *testing.T, ds *memory.Datastore, step, task string) ports.ArtifactStore {
	t.Helper()
	store, err := ds.Open(context.Background(), domain.TaskPath{Flow: "TestFlow", Run: "1", Step: step, Task: task})
	require.NoError(t, err)
	return store
}

// branch stores the given artifacts in a fresh task of step.
func branch(t *testing.T, ds *memory.Datastore, step, task string, artifacts map[string]any) MergeInput {
	t.Helper()
	store := openStore(t, ds, step, task)
	for k, v := range artifacts {
		require.NoError(t, store.Save(context.Background(), k, v))
	}
	return MergeInput{Branch: step + "/" + task, Store: store}
}
