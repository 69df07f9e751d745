package observability

import (
	"context"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors fed by the lifecycle hooks.
type Metrics struct {
	TasksStarted  *prometheus.CounterVec
	TasksFinished *prometheus.CounterVec
	TaskDuration  *prometheus.HistogramVec
	Transitions   *prometheus.CounterVec
	Splits        *prometheus.HistogramVec
	Merges        *prometheus.CounterVec
	Mutations     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TasksStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_tasks_started_total",
			Help: "Total number of tasks started",
		}, []string{"flow", "step"}),
		TasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_tasks_finished_total",
			Help: "Total number of tasks finished, by outcome",
		}, []string{"flow", "step", "status"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowgraph_task_duration_seconds",
			Help:    "Duration of task executions",
			Buckets: prometheus.DefBuckets,
		}, []string{"flow", "step"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_transitions_total",
			Help: "Total number of validated transitions, by kind",
		}, []string{"flow", "step", "kind"}),
		Splits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowgraph_foreach_splits",
			Help:    "Width of bounded foreach and parallel splits",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"flow", "step"}),
		Merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_merges_total",
			Help: "Total number of join merges, by outcome",
		}, []string{"flow", "step", "status"}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_mutations_total",
			Help: "Total number of mutators applied by the config pipeline",
		}, []string{"flow", "decorator"}),
	}
	if reg != nil {
		reg.MustRegister(m.TasksStarted, m.TasksFinished, m.TaskDuration,
			m.Transitions, m.Splits, m.Merges, m.Mutations)
	}
	return m
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTaskStart: func(_ context.Context, e *domain.TaskEvent) {
			m.TasksStarted.WithLabelValues(e.Flow, e.Step).Inc()
		},
		OnTaskFinish: func(_ context.Context, e *domain.TaskEvent) {
			status := "ok"
			if e.Err != nil {
				status = "error"
			}
			m.TasksFinished.WithLabelValues(e.Flow, e.Step, status).Inc()
			m.TaskDuration.WithLabelValues(e.Flow, e.Step).Observe(e.Duration.Seconds())
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(e.Flow, e.Step, transitionKind(e.Transition)).Inc()
			switch {
			case e.Transition.NumParallel > 0:
				m.Splits.WithLabelValues(e.Flow, e.Step).Observe(float64(e.Transition.NumParallel))
			case e.Transition.NumSplits > 0:
				m.Splits.WithLabelValues(e.Flow, e.Step).Observe(float64(e.Transition.NumSplits))
			}
		},
		OnMerge: func(_ context.Context, e *domain.MergeEvent) {
			status := "ok"
			switch {
			case len(e.Conflicts) > 0:
				status = "conflict"
			case len(e.Missing) > 0:
				status = "missing"
			}
			m.Merges.WithLabelValues(e.Flow, e.Step, status).Inc()
		},
		OnMutate: func(_ context.Context, e *domain.MutateEvent) {
			m.Mutations.WithLabelValues(e.Flow, e.Decorator).Inc()
		},
	}
}

func transitionKind(t domain.Transition) string {
	switch {
	case t.NumParallel > 0:
		return "parallel"
	case t.Unbounded():
		return "foreach_unbounded"
	case t.IsForeach():
		return "foreach"
	case len(t.Destinations) > 1:
		return "split"
	default:
		return "linear"
	}
}
