package cli

import (
	"errors"
	"fmt"

	internalcli "github.com/aretw0/flowgraph/internal/cli"
	"github.com/aretw0/flowgraph/internal/presentation/graph"
	"github.com/aretw0/flowgraph/internal/presentation/tui"
	"github.com/aretw0/flowgraph/pkg/domain"
	fgraph "github.com/aretw0/flowgraph/pkg/graph"
	"github.com/spf13/cobra"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Describe the flow and its steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.flow.Info(cmd.Context())
			if err != nil {
				return err
			}
			render := tui.NewRenderer()
			out, err := render(tui.FlowMarkdown(info))
			if err != nil {
				return err
			}
			tui.PrintBanner(cmd.OutOrStdout())
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newGraphCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the flow as a Mermaid diagram",
		Long: `Prints the step graph in Mermaid syntax.
With --run, steps that ran in that run are highlighted and the last step that
left no successful task is marked as failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, _ := cmd.Flags().GetString("run")
			var overlay *graph.GraphOverlay
			if runID != "" {
				var err error
				if overlay, err = a.overlay(cmd, runID); err != nil {
					return err
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(a.flow.Nodes(), overlay))
			return nil
		},
	}
	cmd.Flags().String("run", "", "Highlight the steps of this run")
	return cmd
}

func (a *app) overlay(cmd *cobra.Command, runID string) (*graph.GraphOverlay, error) {
	ctx := cmd.Context()
	ds := a.flow.Datastore()
	overlay := &graph.GraphOverlay{}
	for _, n := range a.flow.Nodes() {
		tasks, err := ds.Tasks(ctx, a.flow.Name, runID, n.Name)
		if errors.Is(err, domain.ErrTaskNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ok := true
		for _, id := range tasks {
			store, err := ds.Open(ctx, domain.TaskPath{Flow: a.flow.Name, Run: runID, Step: n.Name, Task: id})
			if err != nil {
				return nil, err
			}
			done, err := store.Has(ctx, domain.ArtifactTaskOK)
			if err != nil {
				return nil, err
			}
			ok = ok && done
		}
		if ok {
			overlay.VisitedNodes = append(overlay.VisitedNodes, n.Name)
		} else {
			overlay.FailedNode = n.Name
		}
	}
	return overlay, nil
}

func newInfoCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the graph record of the flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			info, err := a.flow.Info(cmd.Context())
			if err != nil {
				return err
			}
			return internalcli.WriteValue(cmd.OutOrStdout(), info, format)
		},
	}
	cmd.Flags().StringP("format", "f", "json", "Output format: json or yaml")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the flow graph and step bodies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.flow.Process(cmd.Context(), nil); err != nil {
				return err
			}
			if err := a.flow.Check(); err != nil {
				issues := fgraph.LintErrors(err)
				if issues == nil {
					return err
				}
				for _, issue := range issues {
					fmt.Fprintf(cmd.ErrOrStderr(), "  - %v\n", issue)
				}
				return fmt.Errorf("flow %s has %d issue(s)", a.flow.Name, len(issues))
			}
			internalcli.SystemMessage(cmd.OutOrStdout(), "The graph looks good!")
			return nil
		},
	}
}
