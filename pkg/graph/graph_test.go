package graph_test

import (
	"testing"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/dsl"
	"github.com/aretw0/flowgraph/pkg/flow"
	"github.com/aretw0/flowgraph/pkg/graph"
	"github.com/aretw0/flowgraph/pkg/ports/tests"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nestedSpec(t *testing.T) *flow.Spec {
	t.Helper()
	spec, err := dsl.New("Nested").
		Add("start").Go("a", "b").
		Add("a").Foreach("items", "each").
		Add("each").Go("inner_join").
		Add("inner_join").Join().Go("join").
		Add("b").Go("join").
		Add("join").Join().Go("fan").
		Add("fan").Parallel("worker").
		Add("worker").Go("collect").
		Add("collect").Join().Go("end").
		Add("end").
		Builder().Build()
	require.NoError(t, err)
	return spec
}

func TestGraph_Contract(t *testing.T) {
	g := graph.New(nestedSpec(t))
	tests.GraphContractTest(t, g, map[string]domain.NodeType{
		"start":      domain.NodeTypeSplitStatic,
		"a":          domain.NodeTypeSplitForeach,
		"each":       domain.NodeTypeLinear,
		"inner_join": domain.NodeTypeJoin,
		"b":          domain.NodeTypeLinear,
		"join":       domain.NodeTypeJoin,
		"fan":        domain.NodeTypeSplitParallel,
		"worker":     domain.NodeTypeLinear,
		"collect":    domain.NodeTypeJoin,
		"end":        domain.NodeTypeEnd,
	})
}

func TestGraph_DerivedFields(t *testing.T) {
	g := graph.New(nestedSpec(t))

	a, _ := g.Node("a")
	assert.Equal(t, "items", a.ForeachVar)
	assert.False(t, a.Unbounded)

	join, _ := g.Node("join")
	assert.Equal(t, domain.NodeTypeJoin, join.Type)
	assert.ElementsMatch(t, []string{"inner_join", "b"}, join.InFuncs)

	names := make([]string, 0)
	for _, n := range g.Nodes() {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"start", "a", "each", "inner_join", "b", "join", "fan", "worker", "collect", "end"}, names)

	mj, ok := g.MatchingJoin("start")
	require.True(t, ok)
	assert.Equal(t, "join", mj)
	mj, _ = g.MatchingJoin("a")
	assert.Equal(t, "inner_join", mj)

	assert.Equal(t, []string{"start", "a"}, g.SplitParents("each"))
	assert.Empty(t, g.SplitParents("end"))

	split, ok := g.JoinedSplit("inner_join")
	require.True(t, ok)
	assert.Equal(t, "a", split)
}

func TestGraph_ParallelNode(t *testing.T) {
	spec, err := dsl.New("P").
		Add("start").Parallel("worker").
		Add("worker").Go("join").
		Add("join").Join().Go("end").
		Add("end").
		Builder().Build()
	require.NoError(t, err)

	g := graph.New(spec)
	start, _ := g.Node("start")
	assert.Equal(t, domain.NodeTypeSplitParallel, start.Type)
	assert.Equal(t, domain.ArtifactParallelUBFIter, start.ForeachVar)
	assert.True(t, start.Unbounded)
	assert.NoError(t, g.Lint())
}

func TestLint_Valid(t *testing.T) {
	assert.NoError(t, graph.New(nestedSpec(t)).Lint())
}

func TestLint_ReportsEveryIssue(t *testing.T) {
	spec := flow.New("Broken")
	require.NoError(t, spec.AddStep(&flow.StepDecl{Name: "start", Next: []string{"missing"}}))
	require.NoError(t, spec.AddStep(&flow.StepDecl{Name: "dangling"}))
	require.NoError(t, spec.AddStep(&flow.StepDecl{Name: "orphan_join", Join: true, Next: []string{"dangling"}}))

	err := graph.New(spec).Lint()
	require.Error(t, err)
	issues := graph.LintErrors(err)

	var reasons []string
	for _, e := range issues {
		reasons = append(reasons, e.Error())
	}
	assert.Contains(t, reasons, `flow has no "end" step`)
	assert.Contains(t, reasons, `step "start": transition to unknown step "missing"`)
	assert.Contains(t, reasons, `step "dangling": step has no transitions`)
	assert.Contains(t, reasons, `step "orphan_join": join step has no inbound branches`)
	assert.Contains(t, reasons, `step "dangling": step is unreachable from "start"`)
}

func TestLint_ForeachSingleDestination(t *testing.T) {
	spec := flow.New("F")
	require.NoError(t, spec.AddStep(&flow.StepDecl{Name: "start", Foreach: "xs", Next: []string{"a", "b"}}))
	require.NoError(t, spec.AddStep(&flow.StepDecl{Name: "a", Next: []string{"join"}}))
	require.NoError(t, spec.AddStep(&flow.StepDecl{Name: "b", Next: []string{"join"}}))
	require.NoError(t, spec.AddStep(&flow.StepDecl{Name: "join", Join: true, Next: []string{"end"}}))
	require.NoError(t, spec.AddStep(&flow.StepDecl{Name: "end"}))

	err := graph.New(spec).Lint()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one destination")
}

func TestLint_UnboundedTopology(t *testing.T) {
	spec, err := dsl.New("U").
		Add("start").Parallel("worker").
		Add("worker").Go("after").
		Add("after").Go("end").
		Add("end").
		Builder().Build()
	require.NoError(t, err)

	lerr := graph.New(spec).Lint()
	require.Error(t, lerr)
	assert.Contains(t, lerr.Error(), "the join type isn't valid")
}

func TestLint_Cycle(t *testing.T) {
	spec, err := dsl.New("C").
		Add("start").Go("a").
		Add("a").Go("b").
		Add("b").Go("a").
		Add("end").
		Builder().Build()
	require.NoError(t, err)

	lerr := graph.New(spec).Lint()
	require.Error(t, lerr)
	assert.Contains(t, lerr.Error(), "part of a cycle")
}

func TestOutputSteps_Structure(t *testing.T) {
	g := graph.New(nestedSpec(t))
	steps, structure := g.OutputSteps()

	want := []any{
		"start",
		[]any{
			[]any{"a", []any{[]any{"each"}}, "inner_join"},
			[]any{"b"},
		},
		"join",
		"fan",
		[]any{[]any{"worker"}},
		"collect",
		"end",
	}
	if diff := cmp.Diff(want, structure); diff != "" {
		t.Errorf("structure mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, steps, 10)
	assert.Equal(t, "items", steps["a"].ForeachArtifact)
	assert.Equal(t, "inner_join", steps["a"].MatchingJoin)
	assert.Equal(t, domain.ArtifactParallelUBFIter, steps["fan"].ForeachArtifact)
	assert.Equal(t, "collect", steps["fan"].MatchingJoin)
	assert.Equal(t, []string{"worker"}, steps["fan"].Next)
}

func TestInfo(t *testing.T) {
	spec := nestedSpec(t)
	spec.File = "nested.go"
	spec.AddParameter(&flow.Parameter{Name: "alpha", Default: 0.5})
	spec.AddConfig(&flow.Config{Name: "settings"})
	spec.SetConstant("VERSION", 3)
	require.NoError(t, spec.AddDecorator(flow.NewDecorator("project", map[string]any{"name": "p"})))
	require.NoError(t, spec.AddDecorator(flow.NewDecorator("_internal", nil)))

	info := graph.New(spec).Info()
	assert.Equal(t, "Nested", info.Flow)
	assert.Equal(t, "nested.go", info.File)
	assert.Equal(t, []domain.VarInfo{{Name: "settings", Type: "Config"}, {Name: "alpha", Type: "Parameter"}}, info.Parameters)
	assert.Equal(t, []domain.VarInfo{{Name: "VERSION", Type: "int"}}, info.Constants)
	require.Len(t, info.Decorators, 1)
	assert.Equal(t, "project", info.Decorators[0].Name)
	assert.Len(t, info.Steps, 10)
}
