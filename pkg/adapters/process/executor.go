// Package process runs every task of a run in its own operating system
// process, by invoking the step command of a flow binary.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os/exec"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/flowgraph"
	"github.com/aretw0/flowgraph/pkg/domain"
)

// Executor launches `<command> <args> step STEP ...` for every task and reads
// the transition the child prints on stdout.
type Executor struct {
	flow    string
	command string
	args    []string
	baseDir string
	env     []string
	options map[string]any
}

var _ flowgraph.Executor = (*Executor)(nil)

// Option configures the executor.
type Option func(*Executor)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) Option {
	return func(e *Executor) {
		e.baseDir = dir
	}
}

// WithEnv adds KEY=VALUE pairs to the environment of every child.
func WithEnv(kv ...string) Option {
	return func(e *Executor) {
		e.env = append(e.env, kv...)
	}
}

// WithRunOptions passes parameter and config options to every task, so each
// child processes the same configs as the parent.
func WithRunOptions(opts map[string]any) Option {
	return func(e *Executor) {
		e.options = opts
	}
}

// NewExecutor creates an executor for the flow named flow. command and args
// start the flow binary; the step arguments are appended to them.
func NewExecutor(flow, command string, args []string, opts ...Option) *Executor {
	e := &Executor{
		flow:    flow,
		command: command,
		args:    args,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// stepOutput mirrors what the step command prints.
type stepOutput struct {
	Path         string              `json:"path"`
	Transition   domain.Transition   `json:"transition"`
	NumSplits    int                 `json:"num_splits"`
	ForeachStack domain.ForeachStack `json:"foreach_stack"`
}

// Execute runs one task in a child process.
func (e *Executor) Execute(ctx context.Context, spec flowgraph.TaskSpec) (*flowgraph.TaskResult, error) {
	args, err := e.commandArgs(spec)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.command, args...)
	cmd.Dir = e.baseDir
	cmd.Env = append(cmd.Environ(), e.env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("task %s/%s/%s failed: %w. Stderr: %s",
			spec.RunID, spec.Step, spec.TaskID, err, strings.TrimSpace(stderr.String()))
	}

	var out stepOutput
	if err := json.Unmarshal(lastObject(stdout.Bytes()), &out); err != nil {
		return nil, fmt.Errorf("task %s/%s/%s printed an invalid result: %w", spec.RunID, spec.Step, spec.TaskID, err)
	}
	path, ok := domain.ParseTaskPath(out.Path, e.flow)
	if !ok {
		return nil, fmt.Errorf("task %s/%s/%s printed an invalid path %q", spec.RunID, spec.Step, spec.TaskID, out.Path)
	}
	return &flowgraph.TaskResult{
		Path:       path,
		Transition: out.Transition,
		NumSplits:  out.NumSplits,
		Stack:      out.ForeachStack,
	}, nil
}

// lastObject skips whatever the step body printed before the result.
func lastObject(out []byte) []byte {
	out = bytes.TrimSpace(out)
	if i := bytes.LastIndex(out, []byte("\n{")); i >= 0 {
		return out[i+1:]
	}
	return out
}

func (e *Executor) commandArgs(spec flowgraph.TaskSpec) ([]string, error) {
	args := slices.Clone(e.args)
	args = append(args, "step", spec.Step, "--run-id", spec.RunID, "--task-id", spec.TaskID)

	if len(spec.InputPaths) > 0 {
		inputs := make([]string, len(spec.InputPaths))
		for i, p := range spec.InputPaths {
			inputs[i] = p.Run + "/" + p.Step + "/" + p.Task
		}
		args = append(args, "--input-paths", strings.Join(inputs, ","))
	}
	if spec.SplitIndex != nil {
		args = append(args, "--split-index", strconv.Itoa(*spec.SplitIndex))
	}
	if len(spec.Stack) > 0 {
		raw, err := json.Marshal(spec.Stack)
		if err != nil {
			return nil, fmt.Errorf("failed to encode foreach stack: %w", err)
		}
		args = append(args, "--stack", string(raw))
	}

	options := make(map[string]any, len(e.options)+len(spec.Params))
	maps.Copy(options, e.options)
	maps.Copy(options, spec.Params)
	for _, name := range slices.Sorted(maps.Keys(options)) {
		raw, err := json.Marshal(options[name])
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", name, err)
		}
		args = append(args, "--param", name+"="+string(raw))
	}
	return args, nil
}
