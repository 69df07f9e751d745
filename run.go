package flowgraph

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/aretw0/flowgraph/internal/logging"
	"github.com/aretw0/flowgraph/internal/runtime"
	"github.com/aretw0/flowgraph/pkg/artifact"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// TaskSpec addresses one task to execute.
type TaskSpec struct {
	RunID  string
	Step   string
	TaskID string
	// InputPaths are the tasks this one follows: none for start, one for
	// ordinary steps, one per branch for joins.
	InputPaths []domain.TaskPath
	// SplitIndex selects the element of a foreach parent.
	SplitIndex *int
	// Params are the raw parameter and config options of the run (start only).
	Params map[string]any
	// Stack overrides the foreach stack derived from the inputs.
	Stack domain.ForeachStack
}

// TaskResult is what a scheduler needs to continue after a task.
type TaskResult struct {
	Path       domain.TaskPath
	Transition domain.Transition
	// NumSplits is the width of a foreach transition, bounded or not.
	NumSplits int
	Stack     domain.ForeachStack
}

// bookkeeping artifacts describe a single task and are never passed down.
var bookkeeping = []string{
	domain.ArtifactTransition,
	domain.ArtifactForeachVar,
	domain.ArtifactForeachNumSplits,
	domain.ArtifactForeachValues,
	domain.ArtifactUnboundedForeach,
	domain.ArtifactForeachStack,
	domain.ArtifactTaskOK,
	domain.ArtifactControlMapperTasks,
	domain.ArtifactControlIsMapperZero,
}

// RunTask executes one task: it prepares the artifact namespace, runs the body,
// checks the declared transition against the graph and persists the results.
func (f *Flow) RunTask(ctx context.Context, spec TaskSpec) (_ *TaskResult, err error) {
	node, err := f.node(spec.Step)
	if err != nil {
		return nil, err
	}
	path := domain.TaskPath{Flow: f.Name, Run: spec.RunID, Step: spec.Step, Task: spec.TaskID}
	logger := logging.ForTask(f.logger, f.Name, spec.RunID, spec.Step, spec.TaskID)

	if f.locker != nil {
		unlock, err := f.locker.Lock(ctx, path.String(), f.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to lock task %s: %w", path, err)
		}
		defer func() {
			if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
				logger.Warn("Failed to release task lock", "err", uerr)
			}
		}()
	}

	start := time.Now()
	if hook := f.hooks.OnTaskStart; hook != nil {
		hook(ctx, &domain.TaskEvent{
			EventBase: f.eventBase(domain.EventTaskStart, spec.RunID),
			Step:      spec.Step,
			TaskID:    spec.TaskID,
			NodeType:  node.Type,
		})
	}
	defer func() {
		if hook := f.hooks.OnTaskFinish; hook != nil {
			hook(ctx, &domain.TaskEvent{
				EventBase: f.eventBase(domain.EventTaskFinish, spec.RunID),
				Step:      spec.Step,
				TaskID:    spec.TaskID,
				NodeType:  node.Type,
				Duration:  time.Since(start),
				Err:       err,
			})
		}
	}()

	own, err := f.datastore.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open datastore of %s: %w", path, err)
	}
	inputs := make([]ports.ArtifactStore, len(spec.InputPaths))
	for i, p := range spec.InputPaths {
		if inputs[i], err = f.datastore.Open(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to open datastore of %s: %w", p, err)
		}
	}
	if err := f.checkInputs(node, spec); err != nil {
		return nil, err
	}

	stack := spec.Stack
	if stack == nil {
		if stack, err = f.deriveStack(ctx, node, spec, inputs); err != nil {
			return nil, err
		}
	}

	// Saved before the body so a join never merges the stacks of its branches.
	if err := own.Save(ctx, domain.ArtifactForeachStack, stack); err != nil {
		return nil, fmt.Errorf("failed to save foreach stack: %w", err)
	}

	var parent ports.ArtifactStore
	if node.Type != domain.NodeTypeJoin && len(inputs) == 1 {
		parent = inputs[0]
	}
	state := runtime.NewState(own, parent)

	params, err := f.prepareNamespace(ctx, node, own, inputs, spec.Params)
	if err != nil {
		return nil, err
	}

	vopts := runtime.ValidatorOptions{
		IncludeForeachStack:  f.settings.IncludeForeachStack,
		MaxForeachValueChars: f.settings.MaxForeachValueChars,
		Logger:               logger,
	}
	task := &Task{
		flow:      f,
		node:      node,
		path:      path,
		state:     state,
		foreach:   runtime.NewForeachContext(stack, state),
		validator: runtime.NewValidator(f.graph, spec.Step, state, vopts),
		merger:    runtime.NewMerger(f.graph, spec.Step, state, logger),
		params:    params,
		logger:    logger,
	}

	logger.Debug("Task started", "inputs", len(inputs), "depth", len(stack))
	if err := f.runBody(ctx, task, node, spec, inputs); err != nil {
		logger.Error("Task failed", "err", err)
		return nil, err
	}

	tr, ok := task.validator.Transition()
	if !ok && node.Type != domain.NodeTypeEnd {
		return nil, &domain.StepError{Step: spec.Step, Task: spec.TaskID, Err: domain.ErrNoTransition}
	}
	if ok {
		if err := checkDeclared(node, tr); err != nil {
			return nil, err
		}
	}

	res := &TaskResult{Path: path, Transition: tr, Stack: stack}
	if tr.IsForeach() {
		if res.NumSplits, err = splitWidth(ctx, tr, state); err != nil {
			return nil, err
		}
	}

	if err := f.persist(ctx, task, res, spec.InputPaths); err != nil {
		return nil, err
	}
	if parent != nil {
		if err := passdown(ctx, own, parent); err != nil {
			return nil, fmt.Errorf("failed to pass down artifacts of %s: %w", spec.InputPaths[0], err)
		}
	}

	logger.Debug("Task finished",
		"destinations", tr.Destinations,
		"num_splits", res.NumSplits,
		"duration", time.Since(start))
	return res, nil
}

func (f *Flow) checkInputs(node *domain.StepNode, spec TaskSpec) error {
	switch {
	case node.Type == domain.NodeTypeStart || node.Name == domain.StartStep:
		if len(spec.InputPaths) != 0 {
			return fmt.Errorf("step %q takes no inputs, got %d", node.Name, len(spec.InputPaths))
		}
	case node.Type == domain.NodeTypeJoin:
		if len(spec.InputPaths) == 0 {
			return fmt.Errorf("join step %q needs at least one input", node.Name)
		}
	default:
		if len(spec.InputPaths) != 1 {
			return fmt.Errorf("step %q takes exactly one input, got %d", node.Name, len(spec.InputPaths))
		}
	}
	return nil
}

// deriveStack computes the foreach stack of a task from its inputs: a child of
// a foreach pushes a level, the join closing a foreach pops one.
func (f *Flow) deriveStack(ctx context.Context, node *domain.StepNode, spec TaskSpec, inputs []ports.ArtifactStore) (domain.ForeachStack, error) {
	if len(inputs) == 0 {
		return domain.ForeachStack{}, nil
	}
	var stack domain.ForeachStack
	if err := loadInto(ctx, inputs[0], domain.ArtifactForeachStack, &stack); err != nil {
		return nil, err
	}

	if node.Type == domain.NodeTypeJoin {
		if s, ok := f.graph.JoinedSplit(node.Name); ok {
			if sn, _ := f.graph.Node(s); sn != nil && (sn.Type == domain.NodeTypeSplitForeach || sn.Type == domain.NodeTypeSplitParallel) {
				stack = stack.Pop()
			}
		}
		return stack, nil
	}

	var tr domain.Transition
	if err := loadInto(ctx, inputs[0], domain.ArtifactTransition, &tr); err != nil {
		return nil, err
	}
	if !tr.IsForeach() {
		return stack, nil
	}
	split := spec.SplitIndex
	if split == nil {
		return nil, fmt.Errorf("step %q follows a foreach and needs a split index", node.Name)
	}
	width, err := splitWidth(ctx, tr, runtime.NewState(inputs[0], nil))
	if err != nil {
		return nil, err
	}
	if *split < 0 || (width > 0 && *split >= width) {
		return nil, fmt.Errorf("split index %d out of range for foreach %q with %d splits", *split, tr.Foreach, width)
	}
	frame := domain.ForeachFrame{
		Step:      spec.InputPaths[0].Step,
		Var:       tr.Foreach,
		Index:     *split,
		NumSplits: width,
		Unbounded: tr.Unbounded(),
	}
	if *split < len(tr.Values) {
		frame.Value = tr.Values[*split]
	}
	return stack.Push(frame), nil
}

// prepareNamespace seeds the task store before the body runs and returns the
// names readable through Task.Param.
func (f *Flow) prepareNamespace(ctx context.Context, node *domain.StepNode, own ports.ArtifactStore, inputs []ports.ArtifactStore, options map[string]any) ([]string, error) {
	var names []string
	for _, c := range f.spec.Configs() {
		names = append(names, c.Name)
	}
	for _, p := range f.spec.Parameters() {
		names = append(names, p.Name)
	}

	switch {
	case len(inputs) == 0:
		values, err := f.spec.ResolveParameters(options)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if err := own.Save(ctx, name, values[name]); err != nil {
				return nil, fmt.Errorf("failed to save parameter %q: %w", name, err)
			}
		}
		for _, c := range f.spec.Constants() {
			if err := own.Save(ctx, c.Name, c.Value); err != nil {
				return nil, fmt.Errorf("failed to save constant %q: %w", c.Name, err)
			}
		}
		if err := own.Save(ctx, domain.ArtifactGraphInfo, f.graph.Info()); err != nil {
			return nil, fmt.Errorf("failed to save graph info: %w", err)
		}
	case node.Type == domain.NodeTypeJoin:
		carried := slices.Clone(names)
		for _, c := range f.spec.Constants() {
			carried = append(carried, c.Name)
		}
		var present []string
		for _, name := range carried {
			ok, err := inputs[0].Has(ctx, name)
			if err != nil {
				return nil, err
			}
			if ok {
				present = append(present, name)
			}
		}
		if err := own.Passdown(ctx, inputs[0], present); err != nil {
			return nil, fmt.Errorf("failed to pass down parameters: %w", err)
		}
	}
	return names, nil
}

func (f *Flow) runBody(ctx context.Context, task *Task, node *domain.StepNode, spec TaskSpec, stores []ports.ArtifactStore) error {
	var err error
	if fn, ok := f.joins[node.Name]; ok {
		inputs := make(Inputs, len(stores))
		for i, s := range stores {
			inputs[i] = &Input{path: spec.InputPaths[i], state: runtime.NewState(s, nil), store: s}
		}
		err = fn(ctx, task, inputs)
	} else if fn, ok := f.steps[node.Name]; ok {
		err = fn(ctx, task)
	} else {
		return fmt.Errorf("step %q of flow %s has no body", node.Name, f.Name)
	}
	if err == nil {
		return nil
	}
	var next *domain.InvalidNextError
	if errors.As(err, &next) {
		return err
	}
	return &domain.StepError{Step: spec.Step, Task: spec.TaskID, Err: err}
}

// checkDeclared verifies that the transition taken at runtime is the one the
// graph was derived from.
func checkDeclared(node *domain.StepNode, tr domain.Transition) error {
	fail := func(format string, args ...any) error {
		return &domain.InvalidNextError{Kind: domain.UndeclaredTarget, Step: node.Name, Msg: fmt.Sprintf(format, args...)}
	}
	got := slices.Sorted(slices.Values(tr.Destinations))
	want := slices.Sorted(slices.Values(node.OutFuncs))
	if !slices.Equal(got, want) {
		return fail("next() went to %v but the step declares %v", tr.Destinations, node.OutFuncs)
	}
	switch {
	case tr.NumParallel > 0 && node.Type != domain.NodeTypeSplitParallel:
		return fail("num_parallel used in a step not declared as a parallel split")
	case tr.NumParallel == 0 && node.Type == domain.NodeTypeSplitParallel:
		return fail("step is declared as a parallel split but next() has no num_parallel")
	case tr.NumParallel == 0 && tr.IsForeach() && (node.Type != domain.NodeTypeSplitForeach || tr.Foreach != node.ForeachVar):
		return fail("next() iterates %q but the step declares foreach %q", tr.Foreach, node.ForeachVar)
	case !tr.IsForeach() && node.Type == domain.NodeTypeSplitForeach:
		return fail("step is declared as a foreach over %q but next() has no foreach", node.ForeachVar)
	}
	return nil
}

// splitWidth resolves how many tasks a foreach transition spawns.
func splitWidth(ctx context.Context, tr domain.Transition, r runtime.Resolver) (int, error) {
	switch {
	case tr.NumParallel > 0:
		return tr.NumParallel, nil
	case !tr.Unbounded():
		return tr.NumSplits, nil
	}
	src, err := r.Get(ctx, tr.Foreach)
	if err != nil {
		return 0, err
	}
	if sized, ok := src.(domain.Sized); ok {
		return sized.NumSplits(), nil
	}
	return 0, fmt.Errorf("unbounded foreach input %q (%T) does not report its width", tr.Foreach, src)
}

func (f *Flow) persist(ctx context.Context, task *Task, res *TaskResult, inputPaths []domain.TaskPath) error {
	tr, stack := res.Transition, res.Stack
	own := task.state.Own()
	for _, name := range task.state.Assigned() {
		v, _ := task.state.Local(name)
		if err := own.Save(ctx, name, v); err != nil {
			return fmt.Errorf("failed to save artifact %q: %w", name, err)
		}
	}

	marks := map[string]any{
		domain.ArtifactTransition:   tr,
		domain.ArtifactForeachStack: stack,
	}
	if tr.IsForeach() {
		marks[domain.ArtifactForeachVar] = tr.Foreach
		marks[domain.ArtifactForeachNumSplits] = res.NumSplits
		marks[domain.ArtifactUnboundedForeach] = tr.Unbounded()
		if len(tr.Values) > 0 {
			marks[domain.ArtifactForeachValues] = tr.Values
		}
	}
	if top, ok := stack.Top(); ok && top.Unbounded && task.node.Type != domain.NodeTypeJoin {
		marks[domain.ArtifactControlIsMapperZero] = top.Index == 0
	}
	if task.node.Type == domain.NodeTypeJoin && len(inputPaths) > 0 && f.closesUnbounded(ctx, task.node.Name, inputPaths[0]) {
		paths := make([]string, len(inputPaths))
		for i, p := range inputPaths {
			paths[i] = p.String()
		}
		marks[domain.ArtifactControlMapperTasks] = paths
	}
	for _, name := range slices.Sorted(maps.Keys(marks)) {
		if err := own.Save(ctx, name, marks[name]); err != nil {
			return fmt.Errorf("failed to save %q: %w", name, err)
		}
	}
	return own.Save(ctx, domain.ArtifactTaskOK, true)
}

// closesUnbounded reports whether a join task closes a split whose width was
// resolved at runtime.
func (f *Flow) closesUnbounded(ctx context.Context, join string, first domain.TaskPath) bool {
	store, err := f.datastore.Open(ctx, first)
	if err != nil {
		return false
	}
	var stack domain.ForeachStack
	if err := loadInto(ctx, store, domain.ArtifactForeachStack, &stack); err != nil {
		return false
	}
	top, ok := stack.Top()
	if !ok || !top.Unbounded {
		return false
	}
	s, ok := f.graph.JoinedSplit(join)
	return ok && s == top.Step
}

// passdown copies every parent artifact the task did not produce itself.
func passdown(ctx context.Context, own ports.ArtifactStore, parent ports.ArtifactStore) error {
	items, err := parent.Items(ctx)
	if err != nil {
		return err
	}
	var names []string
	for _, it := range items {
		if slices.Contains(bookkeeping, it.Name) || it.Name == domain.ArtifactGraphInfo {
			continue
		}
		ok, err := own.Has(ctx, it.Name)
		if err != nil {
			return err
		}
		if !ok {
			names = append(names, it.Name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return own.Passdown(ctx, parent, names)
}

// loadInto decodes a bookkeeping artifact; a missing one leaves out untouched.
func loadInto(ctx context.Context, store ports.BlobStore, name string, out any) error {
	blob, err := store.LoadBlob(ctx, name)
	if errors.Is(err, domain.ErrArtifactNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load %q: %w", name, err)
	}
	if err := artifact.DecodeInto(blob, out); err != nil {
		return fmt.Errorf("failed to decode %q: %w", name, err)
	}
	return nil
}

