package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// LogHooks writes one structured record per lifecycle event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTaskStart: func(ctx context.Context, e *domain.TaskEvent) {
			logger.InfoContext(ctx, "task_start",
				"flow", e.Flow, "run_id", e.RunID, "step", e.Step, "task_id", e.TaskID, "type", e.NodeType)
		},
		OnTaskFinish: func(ctx context.Context, e *domain.TaskEvent) {
			if e.Err != nil {
				logger.ErrorContext(ctx, "task_finish",
					"flow", e.Flow, "run_id", e.RunID, "step", e.Step, "task_id", e.TaskID,
					"duration", e.Duration, "err", e.Err)
				return
			}
			logger.InfoContext(ctx, "task_finish",
				"flow", e.Flow, "run_id", e.RunID, "step", e.Step, "task_id", e.TaskID, "duration", e.Duration)
		},
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.InfoContext(ctx, "transition",
				"flow", e.Flow, "step", e.Step, "task_id", e.TaskID,
				"destinations", e.Transition.Destinations,
				"foreach", e.Transition.Foreach,
				"num_splits", e.Transition.NumSplits,
				"num_parallel", e.Transition.NumParallel)
		},
		OnMerge: func(ctx context.Context, e *domain.MergeEvent) {
			logger.InfoContext(ctx, "merge",
				"flow", e.Flow, "step", e.Step, "merged", e.Merged,
				"conflicts", e.Conflicts, "missing", e.Missing)
		},
		OnMutate: func(ctx context.Context, e *domain.MutateEvent) {
			logger.InfoContext(ctx, "mutate", "flow", e.Flow, "decorator", e.Decorator, "step", e.Step)
		},
	}
}
