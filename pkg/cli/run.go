package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/flowgraph"
	internalcli "github.com/aretw0/flowgraph/internal/cli"
	"github.com/aretw0/flowgraph/pkg/adapters/process"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/spf13/cobra"
)

func runOptions(cmd *cobra.Command) (map[string]any, error) {
	rawParams, _ := cmd.Flags().GetStringArray("param")
	rawConfigs, _ := cmd.Flags().GetStringArray("config")
	params, err := internalcli.ParseParams(rawParams)
	if err != nil {
		return nil, err
	}
	configs, err := internalcli.ParseConfigs(rawConfigs)
	if err != nil {
		return nil, err
	}
	return internalcli.MergeOptions(params, configs), nil
}

func addRunOptionFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("param", "p", nil, "Parameter value as name=value (repeatable)")
	cmd.Flags().StringArray("config", nil, "Config file as name=path (repeatable)")
}

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the flow locally from start to end",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := runOptions(cmd)
			if err != nil {
				return err
			}
			runID, _ := cmd.Flags().GetString("run-id")

			sc := internalcli.NewSignalContext(cmd.Context())
			defer sc.Cancel()

			out := cmd.OutOrStdout()
			runner := flowgraph.NewLocalRunner(a.flow)
			runner.Output = out
			if isolated, _ := cmd.Flags().GetBool("isolated"); isolated {
				if runner.Executor, err = a.processExecutor(cmd, opts); err != nil {
					return err
				}
			}
			res, err := runner.Run(sc, runID, opts)
			if sig := sc.Signal(); sig != nil {
				internalcli.SystemMessage(out, "Run interrupted by %v", sig)
			}
			if err != nil {
				return err
			}
			internalcli.SystemMessage(out, "Done! Run %s finished with %d tasks.", res.RunID, len(res.Tasks))
			return nil
		},
	}
	addRunOptionFlags(cmd)
	cmd.Flags().String("run-id", "", "Run id (random when empty)")
	cmd.Flags().Bool("isolated", false, "Run every task in its own process")
	return cmd
}

// processExecutor re-executes this binary for every task, with the same
// settings and datastore.
func (a *app) processExecutor(cmd *cobra.Command, opts map[string]any) (*process.Executor, error) {
	if a.settings.Datastore == "memory" {
		return nil, fmt.Errorf("--isolated needs a datastore shared between processes, not %q", a.settings.Datastore)
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate the flow binary: %w", err)
	}
	var args []string
	if a.root.HasParent() {
		args = append(args, a.root.Name())
	}
	if path, _ := cmd.Flags().GetString("settings"); path != "" {
		args = append(args, "--settings", path)
	}
	args = append(args, "--datastore", a.settings.Datastore)
	return process.NewExecutor(a.flow.Name, exe, args, process.WithRunOptions(opts)), nil
}

// stepOutput is printed by the step command so an external scheduler can
// continue the run.
type stepOutput struct {
	Path         string              `json:"path"`
	Transition   domain.Transition   `json:"transition"`
	NumSplits    int                 `json:"num_splits,omitempty"`
	ForeachStack domain.ForeachStack `json:"foreach_stack"`
}

func newStepCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step STEP",
		Short: "Execute a single task of a run",
		Long: `Executes one task and prints its transition as JSON.
External schedulers use it to drive a run task by task: the transition names
the next steps and, for foreach splits, the number of child tasks.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := runOptions(cmd)
			if err != nil {
				return err
			}
			spec := flowgraph.TaskSpec{Step: args[0], Params: opts}
			spec.RunID, _ = cmd.Flags().GetString("run-id")
			spec.TaskID, _ = cmd.Flags().GetString("task-id")
			if spec.RunID == "" || spec.TaskID == "" {
				return fmt.Errorf("--run-id and --task-id are required")
			}

			inputs, _ := cmd.Flags().GetStringSlice("input-paths")
			for _, in := range inputs {
				p, ok := domain.ParseTaskPath(in, a.flow.Name)
				if !ok {
					return fmt.Errorf("invalid input path %q, expected run/step/task", in)
				}
				spec.InputPaths = append(spec.InputPaths, p)
			}
			if cmd.Flags().Changed("split-index") {
				idx, _ := cmd.Flags().GetInt("split-index")
				spec.SplitIndex = &idx
			}
			if raw, _ := cmd.Flags().GetString("stack"); strings.TrimSpace(raw) != "" {
				if err := json.Unmarshal([]byte(raw), &spec.Stack); err != nil {
					return fmt.Errorf("invalid --stack: %w", err)
				}
			}

			if err := a.flow.Process(ctx, opts); err != nil {
				return err
			}
			res, err := a.flow.RunTask(ctx, spec)
			if err != nil {
				return err
			}
			return internalcli.WriteValue(cmd.OutOrStdout(), stepOutput{
				Path:         res.Path.String(),
				Transition:   res.Transition,
				NumSplits:    res.NumSplits,
				ForeachStack: res.Stack,
			}, "json")
		},
	}
	addRunOptionFlags(cmd)
	cmd.Flags().String("run-id", "", "Run id")
	cmd.Flags().String("task-id", "", "Task id")
	cmd.Flags().StringSlice("input-paths", nil, "Input tasks as run/step/task (comma separated)")
	cmd.Flags().Int("split-index", 0, "Element of the parent foreach this task handles")
	cmd.Flags().String("stack", "", "Foreach stack override as JSON")
	return cmd
}
