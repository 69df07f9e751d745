package flowgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/flowgraph/internal/runtime"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// StepRef names a step in Next.
type StepRef string

func (s StepRef) StepName() string { return string(s) }

// NextOption is a keyword argument of Next.
type NextOption struct {
	Key   string
	Value any
}

// Foreach fans out over the named artifact, one task per element.
func Foreach(artifact string) NextOption {
	return NextOption{Key: runtime.OptionForeach, Value: artifact}
}

// NumParallel fans out to n workers of the destination step.
func NumParallel(n int) NextOption {
	return NextOption{Key: runtime.OptionNumParallel, Value: n}
}

// NextArg builds an arbitrary keyword argument, for callers forwarding
// options they do not inspect.
func NextArg(key string, value any) NextOption {
	return NextOption{Key: key, Value: value}
}

// Task is the handle a step body receives. It is only valid during the body.
type Task struct {
	flow *Flow
	node *domain.StepNode
	path domain.TaskPath

	state     *runtime.State
	foreach   *runtime.ForeachContext
	validator *runtime.Validator
	merger    *runtime.Merger
	params    []string

	logger *slog.Logger
}

// Step returns the step name.
func (t *Task) Step() string { return t.path.Step }

// TaskID returns the task id.
func (t *Task) TaskID() string { return t.path.Task }

// RunID returns the run id.
func (t *Task) RunID() string { return t.path.Run }

// NodeType returns the type of the step in the graph.
func (t *Task) NodeType() domain.NodeType { return t.node.Type }

// Path returns the datastore path of the task.
func (t *Task) Path() domain.TaskPath { return t.path }

// Logger returns a logger enriched with the task coordinates.
func (t *Task) Logger() *slog.Logger { return t.logger }

// Next declares the transition of the task. It must be called exactly once in
// every step but end. Arguments are step names, StepRefs or NextOptions.
func (t *Task) Next(ctx context.Context, args ...any) error {
	call := runtime.Call{Options: map[string]any{}}
	for _, arg := range args {
		if opt, ok := arg.(NextOption); ok {
			call.Options[opt.Key] = opt.Value
			continue
		}
		call.Destinations = append(call.Destinations, arg)
	}
	tr, err := t.validator.Validate(ctx, call)
	if err != nil {
		return err
	}
	if hook := t.flow.hooks.OnTransition; hook != nil {
		hook(ctx, &domain.TransitionEvent{
			EventBase:  t.flow.eventBase(domain.EventTransition, t.path.Run),
			Step:       t.path.Step,
			TaskID:     t.path.Task,
			Transition: tr,
		})
	}
	return nil
}

// MergeOption restricts MergeArtifacts.
type MergeOption func(*runtime.MergeOptions)

// Include merges only the named artifacts. Internal artifacts may be included.
func Include(names ...string) MergeOption {
	return func(o *runtime.MergeOptions) { o.Include = append(o.Include, names...) }
}

// Exclude skips the named artifacts.
func Exclude(names ...string) MergeOption {
	return func(o *runtime.MergeOptions) { o.Exclude = append(o.Exclude, names...) }
}

// MergeArtifacts copies into this join task every artifact the branches agree
// on and that the task has not set itself.
func (t *Task) MergeArtifacts(ctx context.Context, inputs Inputs, opts ...MergeOption) error {
	var mo runtime.MergeOptions
	for _, opt := range opts {
		opt(&mo)
	}
	mi := make([]runtime.MergeInput, len(inputs))
	for i, in := range inputs {
		mi[i] = runtime.MergeInput{Branch: in.path.String(), Store: in.store}
	}
	res, err := t.merger.Merge(ctx, mi, mo)

	if hook := t.flow.hooks.OnMerge; hook != nil {
		ev := &domain.MergeEvent{
			EventBase: t.flow.eventBase(domain.EventMerge, t.path.Run),
			Step:      t.path.Step,
		}
		var (
			unhandled *domain.UnhandledInMergeArtifactsError
			missing   *domain.MissingInMergeArtifactsError
		)
		switch {
		case res != nil:
			ev.Merged = res.Merged
		case errors.As(err, &unhandled):
			ev.Conflicts = unhandled.Artifacts
		case errors.As(err, &missing):
			ev.Missing = missing.Missing
		}
		hook(ctx, ev)
	}
	return err
}

// Index returns the index of the innermost foreach, and false outside any foreach.
func (t *Task) Index() (int, bool) {
	return t.foreach.CurrentIndex()
}

// Input returns the element of the innermost foreach, or nil.
func (t *Task) Input(ctx context.Context) (any, error) {
	return t.foreach.CurrentInput(ctx)
}

// ForeachStack returns one entry per enclosing foreach, outermost first.
func (t *Task) ForeachStack(ctx context.Context) ([]domain.StackEntry, error) {
	return t.foreach.Stack(ctx)
}

// Get resolves an artifact. Missing artifacts fail with domain.ErrArtifactNotFound.
func (t *Task) Get(ctx context.Context, name string) (any, error) {
	return t.state.Get(ctx, name)
}

// Set assigns an artifact. It is persisted when the body returns successfully.
func (t *Task) Set(name string, value any) {
	t.state.Set(name, value)
}

// Has reports whether an artifact resolves.
func (t *Task) Has(ctx context.Context, name string) (bool, error) {
	return t.state.Has(ctx, name)
}

// Param returns the value of a flow parameter or config.
func (t *Task) Param(ctx context.Context, name string) (any, error) {
	if !slices.Contains(t.params, name) {
		return nil, fmt.Errorf("flow %s has no parameter %q", t.flow.Name, name)
	}
	return t.state.Get(ctx, name)
}

// String renders the task as <flow F step s[0,1] (input: x)>.
func (t *Task) String() string {
	frames := t.foreach.Frames()
	if len(frames) == 0 {
		return fmt.Sprintf("<flow %s step %s>", t.flow.Name, t.path.Step)
	}
	idx := make([]string, len(frames))
	for i, fr := range frames {
		idx[i] = strconv.Itoa(fr.Index)
	}
	index := strings.Join(idx, ",")

	in, err := t.foreach.CurrentInput(context.Background())
	if err != nil || in == nil {
		return fmt.Sprintf("<flow %s step %s[%s]>", t.flow.Name, t.path.Step, index)
	}
	s := fmt.Sprint(in)
	if len([]rune(s)) > 20 {
		s = string([]rune(s)[:20]) + "..."
	}
	return fmt.Sprintf("<flow %s step %s[%s] (input: %s)>", t.flow.Name, t.path.Step, index, s)
}

// Input is one inbound branch of a join, readable but not writable.
type Input struct {
	path  domain.TaskPath
	state *runtime.State
	store ports.ArtifactStore
}

// Step returns the step of the branch task.
func (in *Input) Step() string { return in.path.Step }

// Path returns the datastore path of the branch task.
func (in *Input) Path() domain.TaskPath { return in.path }

// Get resolves an artifact of the branch.
func (in *Input) Get(ctx context.Context, name string) (any, error) {
	return in.state.Get(ctx, name)
}

// Inputs are the branches of a join, in branch order.
type Inputs []*Input

// ByStep returns the branch coming from step, for static splits.
func (ins Inputs) ByStep(step string) (*Input, bool) {
	for _, in := range ins {
		if in.path.Step == step {
			return in, true
		}
	}
	return nil, false
}
