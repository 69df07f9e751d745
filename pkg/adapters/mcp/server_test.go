package mcp

import (
	"context"
	"testing"

	"github.com/aretw0/flowgraph"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/dsl"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFlow(t *testing.T) *flowgraph.Flow {
	t.Helper()
	spec := dsl.New("McpFlow").
		Add("start").Go("end").
		Add("end").
		Builder().MustBuild()
	f := flowgraph.New(spec).
		Handle("start", func(ctx context.Context, t *flowgraph.Task) error {
			t.Set("greeting", "hello")
			return t.Next(ctx, "end")
		}).
		Handle("end", func(context.Context, *flowgraph.Task) error { return nil })
	_, err := flowgraph.NewLocalRunner(f).Run(context.Background(), "r1", nil)
	require.NoError(t, err)
	return f
}

func TestServer_Introspection(t *testing.T) {
	s := NewServer(runFlow(t))
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	runs, err := s.handleListRuns(ctx, req, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, RunsResponse{Flow: "McpFlow", Runs: []string{"r1"}}, runs)

	tasks, err := s.handleListTasks(ctx, req, TaskArgs{Run: "r1", Step: "start"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, tasks.Tasks)

	arts, err := s.handleListArtifacts(ctx, req, TaskArgs{Run: "r1", Step: "start", Task: "1"})
	require.NoError(t, err)
	assert.Equal(t, "McpFlow/r1/start/1", arts.Path)
	var names []string
	for _, a := range arts.Artifacts {
		names = append(names, a.Name)
	}
	assert.Contains(t, names, "greeting")

	got, err := s.handleGetArtifact(ctx, req, TaskArgs{Run: "r1", Step: "start", Task: "1", Name: "greeting"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Value)
}

func TestServer_UnknownTask(t *testing.T) {
	s := NewServer(runFlow(t))
	ctx := context.Background()

	_, err := s.handleListArtifacts(ctx, mcp.CallToolRequest{}, TaskArgs{Run: "r1", Step: "start", Task: "9"})
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	_, err = s.handleGetArtifact(ctx, mcp.CallToolRequest{}, TaskArgs{Run: "r1", Step: "start", Task: "1"})
	assert.ErrorContains(t, err, "name is required")

	_, err = s.handleGetArtifact(ctx, mcp.CallToolRequest{}, TaskArgs{Run: "r1", Step: "start", Task: "1", Name: "nope"})
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}
