package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTaskStart  EventType = "task_start"
	EventTaskFinish EventType = "task_finish"
	EventTransition EventType = "transition"
	EventMerge      EventType = "merge"
	EventMutate     EventType = "mutate"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Flow      string    `json:"flow"`
	RunID     string    `json:"run_id,omitempty"`
}

// TaskEvent represents the start or end of one task.
type TaskEvent struct {
	EventBase
	Step     string        `json:"step"`
	TaskID   string        `json:"task_id"`
	NodeType NodeType      `json:"node_type"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// TransitionEvent is emitted once a step's next() call has been validated.
type TransitionEvent struct {
	EventBase
	Step       string     `json:"step"`
	TaskID     string     `json:"task_id"`
	Transition Transition `json:"transition"`
}

// MergeEvent reports the outcome of a join merge.
type MergeEvent struct {
	EventBase
	Step      string   `json:"step"`
	Merged    []string `json:"merged,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
	Missing   []string `json:"missing,omitempty"`
}

// MutateEvent is emitted for every mutator applied by the config pipeline.
type MutateEvent struct {
	EventBase
	Decorator string `json:"decorator"`
	// Step is empty for flow-level mutators.
	Step string `json:"step,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTaskStart  func(context.Context, *TaskEvent)
	OnTaskFinish func(context.Context, *TaskEvent)
	OnTransition func(context.Context, *TransitionEvent)
	OnMerge      func(context.Context, *MergeEvent)
	OnMutate     func(context.Context, *MutateEvent)
}

// Chain returns hooks that call h first and then other.
func (h LifecycleHooks) Chain(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTaskStart:  chain(h.OnTaskStart, other.OnTaskStart),
		OnTaskFinish: chain(h.OnTaskFinish, other.OnTaskFinish),
		OnTransition: chain(h.OnTransition, other.OnTransition),
		OnMerge:      chain(h.OnMerge, other.OnMerge),
		OnMutate:     chain(h.OnMutate, other.OnMutate),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
