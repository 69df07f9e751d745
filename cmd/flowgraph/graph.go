package main

import (
	"context"
	"fmt"

	"github.com/aretw0/flowgraph/internal/presentation/graph"
	"github.com/aretw0/flowgraph/pkg/artifact"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph FLOW RUN",
	Short: "Export the graph recorded with a run",
	Long: `Reads the graph record saved by the start task of a run and outputs a
Mermaid diagram (graph TD) with the steps that ran highlighted.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		info, err := loadGraphInfo(cmd.Context(), b.Datastore, args[0], args[1])
		if err != nil {
			return err
		}
		nodes := nodesFromInfo(info)
		overlay := &graph.GraphOverlay{}
		for _, n := range nodes {
			if _, err := b.Datastore.Tasks(cmd.Context(), args[0], args[1], n.Name); err == nil {
				overlay.VisitedNodes = append(overlay.VisitedNodes, n.Name)
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(nodes, overlay))
		return nil
	},
}

func loadGraphInfo(ctx context.Context, ds ports.Datastore, flow, run string) (*domain.GraphInfo, error) {
	tasks, err := ds.Tasks(ctx, flow, run, domain.StartStep)
	if err != nil {
		return nil, fmt.Errorf("run %s/%s has no start task: %w", flow, run, err)
	}
	store, err := ds.Open(ctx, domain.TaskPath{Flow: flow, Run: run, Step: domain.StartStep, Task: tasks[0]})
	if err != nil {
		return nil, err
	}
	blob, err := store.LoadBlob(ctx, domain.ArtifactGraphInfo)
	if err != nil {
		return nil, err
	}
	var info domain.GraphInfo
	if err := artifact.DecodeInto(blob, &info); err != nil {
		return nil, fmt.Errorf("invalid graph record: %w", err)
	}
	return &info, nil
}

// nodesFromInfo rebuilds the step list in graph order from a persisted record.
func nodesFromInfo(info *domain.GraphInfo) []*domain.StepNode {
	var nodes []*domain.StepNode
	seen := make(map[string]bool)
	var walk func([]any)
	walk = func(items []any) {
		for _, it := range items {
			switch v := it.(type) {
			case string:
				st, ok := info.Steps[v]
				if !ok || seen[v] {
					continue
				}
				seen[v] = true
				nodes = append(nodes, &domain.StepNode{
					Name:       st.Name,
					Type:       st.Type,
					OutFuncs:   st.Next,
					ForeachVar: st.ForeachArtifact,
					Doc:        st.Doc,
				})
			case []any:
				walk(v)
			}
		}
	}
	walk(info.GraphStructure)
	return nodes
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
