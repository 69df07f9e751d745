package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	hooks := m.Hooks()
	ctx := context.Background()
	base := domain.EventBase{Flow: "F", RunID: "r1"}

	hooks.OnTaskStart(ctx, &domain.TaskEvent{EventBase: base, Step: "start"})
	hooks.OnTaskFinish(ctx, &domain.TaskEvent{EventBase: base, Step: "start", Duration: time.Millisecond})
	hooks.OnTaskFinish(ctx, &domain.TaskEvent{EventBase: base, Step: "a", Err: errors.New("boom")})
	hooks.OnTransition(ctx, &domain.TransitionEvent{EventBase: base, Step: "start", Transition: domain.Transition{
		Destinations: []string{"a"}, Foreach: "items", Source: domain.SourceBounded, NumSplits: 3,
	}})
	hooks.OnTransition(ctx, &domain.TransitionEvent{EventBase: base, Step: "fan", Transition: domain.Transition{
		Destinations: []string{"w"}, Foreach: domain.ArtifactParallelUBFIter, Source: domain.SourceUnbounded, NumParallel: 4,
	}})
	hooks.OnMerge(ctx, &domain.MergeEvent{EventBase: base, Step: "join", Conflicts: []string{"x"}})
	hooks.OnMutate(ctx, &domain.MutateEvent{EventBase: base, Decorator: "tweak"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksStarted.WithLabelValues("F", "start")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksFinished.WithLabelValues("F", "start", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksFinished.WithLabelValues("F", "a", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("F", "start", "foreach")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("F", "fan", "parallel")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Merges.WithLabelValues("F", "join", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues("F", "tweak")))

	count, err := testutil.GatherAndCount(reg, "flowgraph_foreach_splits")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLogHooks_ChainWithMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	m := NewMetrics(nil)
	hooks := LogHooks(logger).Chain(m.Hooks())

	hooks.OnTaskStart(context.Background(), &domain.TaskEvent{EventBase: domain.EventBase{Flow: "F"}, Step: "start", TaskID: "1"})

	assert.Contains(t, buf.String(), `"msg":"task_start"`)
	assert.Contains(t, buf.String(), `"task_id":"1"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksStarted.WithLabelValues("F", "start")))
}
