package flowgraph

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/google/uuid"
)

// Executor runs a single task on behalf of a scheduler.
type Executor interface {
	Execute(ctx context.Context, spec TaskSpec) (*TaskResult, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, spec TaskSpec) (*TaskResult, error)

func (fn ExecutorFunc) Execute(ctx context.Context, spec TaskSpec) (*TaskResult, error) {
	return fn(ctx, spec)
}

// LocalRunner executes a whole run, one task at a time.
// It is the reference scheduler: splits fan out into queued tasks and joins
// wait until every branch of the split they close has arrived.
type LocalRunner struct {
	flow   *Flow
	Output io.Writer
	// Executor runs each task. Defaults to Flow.RunTask in this process.
	Executor Executor
}

// NewLocalRunner creates a runner for f. Progress lines go to Output when set.
func NewLocalRunner(f *Flow) *LocalRunner {
	return &LocalRunner{flow: f}
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID string
	// Tasks lists every executed task in execution order.
	Tasks []domain.TaskPath
	// End is the task of the end step.
	End domain.TaskPath
}

// scope is one open split on the way to its join.
type scope struct {
	join     string
	key      string
	expected int
	ordinal  int
}

type pending struct {
	step   string
	inputs []domain.TaskPath
	split  *int
	scopes []scope
}

type barrier struct {
	arrived map[int]domain.TaskPath
	scopes  []scope
}

// Run executes the flow from start to end. An empty runID gets a random one.
// params carries parameter and config options.
func (r *LocalRunner) Run(ctx context.Context, runID string, params map[string]any) (*RunResult, error) {
	f := r.flow
	if err := f.Process(ctx, params); err != nil {
		return nil, err
	}
	if err := f.Check(); err != nil {
		return nil, err
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	f.logger.Info("Run started", "flow", f.Name, "run_id", runID)

	exec := r.Executor
	if exec == nil {
		exec = ExecutorFunc(f.RunTask)
	}

	res := &RunResult{RunID: runID}
	queue := []pending{{step: domain.StartStep}}
	barriers := make(map[string]*barrier)
	seq := 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		cur := queue[0]
		queue = queue[1:]
		seq++

		spec := TaskSpec{
			RunID:      runID,
			Step:       cur.step,
			TaskID:     strconv.Itoa(seq),
			InputPaths: cur.inputs,
			SplitIndex: cur.split,
		}
		if cur.step == domain.StartStep {
			spec.Params = params
		}
		r.printf("[%s/%s/%s] Task is starting.\n", runID, spec.Step, spec.TaskID)
		out, err := exec.Execute(ctx, spec)
		if err != nil {
			r.printf("[%s/%s/%s] Task failed: %v\n", runID, spec.Step, spec.TaskID, err)
			return res, err
		}
		res.Tasks = append(res.Tasks, out.Path)
		r.printf("[%s/%s/%s] Task finished successfully.\n", runID, spec.Step, spec.TaskID)

		if cur.step == domain.EndStep {
			res.End = out.Path
			continue
		}

		next, err := r.successors(cur, out, barriers)
		if err != nil {
			return res, err
		}
		queue = append(queue, next...)
	}

	if len(barriers) > 0 {
		return res, fmt.Errorf("run %s finished with %d joins still waiting for branches", runID, len(barriers))
	}
	if res.End == (domain.TaskPath{}) {
		return res, fmt.Errorf("run %s never reached the %q step", runID, domain.EndStep)
	}
	f.logger.Info("Run finished", "flow", f.Name, "run_id", runID, "tasks", len(res.Tasks))
	return res, nil
}

func (r *LocalRunner) successors(cur pending, out *TaskResult, barriers map[string]*barrier) ([]pending, error) {
	g := r.flow.graph
	tr := out.Transition
	node, _ := g.Node(cur.step)
	from := []domain.TaskPath{out.Path}

	if node.Type.IsSplit() {
		join, ok := g.MatchingJoin(cur.step)
		if !ok {
			return nil, fmt.Errorf("split step %q has no matching join", cur.step)
		}
		var next []pending
		if tr.IsForeach() {
			if out.NumSplits < 1 {
				return nil, fmt.Errorf("foreach in step %q resolved to %d splits", cur.step, out.NumSplits)
			}
			for i := range out.NumSplits {
				sc := scope{join: join, key: out.Path.String(), expected: out.NumSplits, ordinal: i}
				next = append(next, pending{step: tr.Destinations[0], inputs: from, split: &i, scopes: push(cur.scopes, sc)})
			}
			return next, nil
		}
		for i, dst := range tr.Destinations {
			sc := scope{join: join, key: out.Path.String(), expected: len(tr.Destinations), ordinal: i}
			next = append(next, pending{step: dst, inputs: from, scopes: push(cur.scopes, sc)})
		}
		return next, nil
	}

	var next []pending
	for _, dst := range tr.Destinations {
		dn, _ := g.Node(dst)
		if dn.Type != domain.NodeTypeJoin {
			next = append(next, pending{step: dst, inputs: from, scopes: cur.scopes})
			continue
		}
		if len(cur.scopes) == 0 {
			return nil, fmt.Errorf("step %q reached join %q outside any split", cur.step, dst)
		}
		top := cur.scopes[len(cur.scopes)-1]
		if top.join != dst {
			return nil, fmt.Errorf("step %q reached join %q but the enclosing split closes at %q", cur.step, dst, top.join)
		}
		b, ok := barriers[top.key]
		if !ok {
			b = &barrier{arrived: make(map[int]domain.TaskPath), scopes: cur.scopes[:len(cur.scopes)-1]}
			barriers[top.key] = b
		}
		b.arrived[top.ordinal] = out.Path
		if len(b.arrived) < top.expected {
			continue
		}
		delete(barriers, top.key)
		inputs := make([]domain.TaskPath, 0, top.expected)
		for _, i := range slices.Sorted(maps.Keys(b.arrived)) {
			inputs = append(inputs, b.arrived[i])
		}
		next = append(next, pending{step: dst, inputs: inputs, scopes: b.scopes})
	}
	return next, nil
}

func push(scopes []scope, sc scope) []scope {
	out := make([]scope, len(scopes), len(scopes)+1)
	copy(out, scopes)
	return append(out, sc)
}

func (r *LocalRunner) printf(format string, args ...any) {
	if r.Output == nil {
		return
	}
	fmt.Fprintf(r.Output, format, args...)
}
