package flowgraph_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/flowgraph"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/dsl"
	"github.com/aretw0/flowgraph/pkg/flow"
	"github.com/aretw0/flowgraph/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearSpec() *flow.Spec {
	return dsl.New("TaskFlow").
		Add("start").Go("a").
		Add("a").Go("end").
		Add("end").
		Builder().MustBuild()
}

func noop(ctx context.Context, t *flowgraph.Task) error { return nil }

func TestRunTask_NoTransition(t *testing.T) {
	f := flowgraph.New(linearSpec()).
		Handle("start", noop).
		Handle("a", noop).
		Handle("end", noop)

	_, err := f.RunTask(context.Background(), flowgraph.TaskSpec{RunID: "r", Step: "start", TaskID: "1"})

	assert.ErrorIs(t, err, domain.ErrNoTransition)
	var stepErr *domain.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "start", stepErr.Step)
}

func TestRunTask_UndeclaredTarget(t *testing.T) {
	f := flowgraph.New(linearSpec()).
		Handle("start", func(ctx context.Context, t *flowgraph.Task) error { return t.Next(ctx, "end") }).
		Handle("a", noop).
		Handle("end", noop)

	_, err := f.RunTask(context.Background(), flowgraph.TaskSpec{RunID: "r", Step: "start", TaskID: "1"})

	assert.ErrorIs(t, err, &domain.InvalidNextError{Kind: domain.UndeclaredTarget})
}

func TestRunTask_InvalidNextIsNotWrapped(t *testing.T) {
	f := flowgraph.New(linearSpec()).
		Handle("start", func(ctx context.Context, t *flowgraph.Task) error {
			return t.Next(ctx, "a", flowgraph.NextArg("bogus", 1))
		}).
		Handle("a", noop).
		Handle("end", noop)

	_, err := f.RunTask(context.Background(), flowgraph.TaskSpec{RunID: "r", Step: "start", TaskID: "1"})

	var next *domain.InvalidNextError
	require.ErrorAs(t, err, &next)
	assert.Equal(t, domain.UnknownArgument, next.Kind)
	assert.Equal(t, "bogus", next.Arg)
	var stepErr *domain.StepError
	assert.False(t, errors.As(err, &stepErr))
}

func TestRunTask_InputsAndSplitIndex(t *testing.T) {
	spec := dsl.New("SplitFlow").
		Add("start").Foreach("items", "each").
		Add("each").Go("join").
		Add("join").Join().Go("end").
		Add("end").
		Builder().MustBuild()
	f := flowgraph.New(spec).
		Handle("start", func(ctx context.Context, t *flowgraph.Task) error {
			t.Set("items", []int{1, 2})
			return t.Next(ctx, "each", flowgraph.Foreach("items"))
		}).
		Handle("each", func(ctx context.Context, t *flowgraph.Task) error { return t.Next(ctx, "join") }).
		Handle("join", func(ctx context.Context, t *flowgraph.Task) error { return t.Next(ctx, "end") }).
		Handle("end", noop)
	ctx := context.Background()

	start, err := f.RunTask(ctx, flowgraph.TaskSpec{RunID: "r", Step: "start", TaskID: "1"})
	require.NoError(t, err)
	assert.Equal(t, 2, start.NumSplits)
	assert.Equal(t, []string{"1", "2"}, start.Transition.Values)

	_, err = f.RunTask(ctx, flowgraph.TaskSpec{RunID: "r", Step: "each", TaskID: "2"})
	assert.ErrorContains(t, err, "exactly one input")

	_, err = f.RunTask(ctx, flowgraph.TaskSpec{RunID: "r", Step: "each", TaskID: "2", InputPaths: []domain.TaskPath{start.Path}})
	assert.ErrorContains(t, err, "needs a split index")

	bad := 5
	_, err = f.RunTask(ctx, flowgraph.TaskSpec{RunID: "r", Step: "each", TaskID: "2", InputPaths: []domain.TaskPath{start.Path}, SplitIndex: &bad})
	assert.ErrorContains(t, err, "out of range")

	one := 1
	each, err := f.RunTask(ctx, flowgraph.TaskSpec{RunID: "r", Step: "each", TaskID: "3", InputPaths: []domain.TaskPath{start.Path}, SplitIndex: &one})
	require.NoError(t, err)
	require.Len(t, each.Stack, 1)
	assert.Equal(t, domain.ForeachFrame{Step: "start", Var: "items", Index: 1, NumSplits: 2, Value: "2"}, each.Stack[0])

	join, err := f.RunTask(ctx, flowgraph.TaskSpec{RunID: "r", Step: "join", TaskID: "4", InputPaths: []domain.TaskPath{each.Path}})
	require.NoError(t, err)
	assert.Empty(t, join.Stack)
}

func TestRunTask_Hooks(t *testing.T) {
	var events []string
	hooks := domain.LifecycleHooks{
		OnTaskStart: func(_ context.Context, e *domain.TaskEvent) { events = append(events, "start:"+e.Step) },
		OnTaskFinish: func(_ context.Context, e *domain.TaskEvent) {
			status := "ok"
			if e.Err != nil {
				status = "error"
			}
			events = append(events, "finish:"+e.Step+":"+status)
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			events = append(events, "next:"+e.Transition.Destinations[0])
		},
	}
	f := flowgraph.New(linearSpec(), flowgraph.WithLifecycleHooks(hooks)).
		Handle("start", func(ctx context.Context, t *flowgraph.Task) error { return t.Next(ctx, "a") }).
		Handle("a", func(ctx context.Context, t *flowgraph.Task) error { return errors.New("boom") }).
		Handle("end", noop)

	_, err := flowgraph.NewLocalRunner(f).Run(context.Background(), "r", nil)
	require.Error(t, err)

	assert.Equal(t, []string{
		"start:start", "next:a", "finish:start:ok",
		"start:a", "finish:a:error",
	}, events)
}

func TestTask_StringOutsideForeach(t *testing.T) {
	var name string
	f := flowgraph.New(linearSpec()).
		Handle("start", func(ctx context.Context, t *flowgraph.Task) error {
			name = t.String()
			return t.Next(ctx, "a")
		}).
		Handle("a", noop).
		Handle("end", noop)

	_, err := f.RunTask(context.Background(), flowgraph.TaskSpec{RunID: "r", Step: "start", TaskID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "<flow TaskFlow step start>", name)
}

func TestTask_GetMissing(t *testing.T) {
	var getErr error
	var has bool
	f := flowgraph.New(linearSpec()).
		Handle("start", func(ctx context.Context, t *flowgraph.Task) error {
			_, getErr = t.Get(ctx, "nope")
			t.Set("here", 1)
			has, _ = t.Has(ctx, "here")
			return t.Next(ctx, "a")
		}).
		Handle("a", noop).
		Handle("end", noop)

	_, err := f.RunTask(context.Background(), flowgraph.TaskSpec{RunID: "r", Step: "start", TaskID: "1"})
	require.NoError(t, err)
	assert.ErrorIs(t, getErr, domain.ErrArtifactNotFound)
	assert.True(t, has)
}

func TestTask_MergeOutsideJoin(t *testing.T) {
	f := flowgraph.New(linearSpec()).
		Handle("start", func(ctx context.Context, t *flowgraph.Task) error {
			return t.MergeArtifacts(ctx, nil)
		}).
		Handle("a", noop).
		Handle("end", noop)

	_, err := f.RunTask(context.Background(), flowgraph.TaskSpec{RunID: "r", Step: "start", TaskID: "1"})

	var usage *domain.MergeUsageError
	assert.ErrorAs(t, err, &usage)
}

func TestFlow_Check(t *testing.T) {
	f := flowgraph.New(linearSpec()).
		Handle("start", noop).
		HandleJoin("a", func(context.Context, *flowgraph.Task, flowgraph.Inputs) error { return nil }).
		Handle("ghost", noop)

	err := f.Check()
	issues := graph.LintErrors(err)
	require.Len(t, issues, 3)
	assert.ErrorContains(t, issues[0], "join body registered on a step that is not a join")
	assert.ErrorContains(t, issues[1], "step has no body")
	assert.ErrorContains(t, issues[2], "undeclared step")
}

func TestFlow_ProcessAppliesMutators(t *testing.T) {
	spec := dsl.New("MutatedFlow").
		Config(&flow.Config{Name: "settings", Default: map[string]any{"cpu": 2}}).
		Mutate(flow.NewFlowMutator("resources", func(_ context.Context, mf *flow.MutableFlow) error {
			cfg, _ := mf.Config("settings")
			cpu, _ := cfg.Get("cpu")
			for _, st := range mf.Steps() {
				if err := st.AddDecorator("resources", map[string]any{"cpu": cpu}, flow.DuplicateIgnore); err != nil {
					return err
				}
			}
			return nil
		})).
		Add("start").Go("end").
		Add("end").
		Builder().MustBuild()

	var mutated []string
	f := flowgraph.New(spec, flowgraph.WithLifecycleHooks(domain.LifecycleHooks{
		OnMutate: func(_ context.Context, e *domain.MutateEvent) { mutated = append(mutated, e.Decorator) },
	}))
	require.NoError(t, f.Process(context.Background(), map[string]any{"settings": map[string]any{"cpu": 8}}))

	start, ok := f.Graph().Node("start")
	require.True(t, ok)
	require.Len(t, start.Decorators, 1)
	assert.Equal(t, 8, start.Decorators[0].Attributes["cpu"])
	assert.Equal(t, []string{"resources"}, start.Decorators[0].InsertedBy)
	assert.Equal(t, []string{"resources"}, mutated)

	require.NoError(t, f.Process(context.Background(), nil), "a second call is a no-op")
}
