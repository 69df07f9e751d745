package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/flowgraph/internal/presentation/graph"
	"github.com/aretw0/flowgraph/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []*domain.StepNode
		overlay  *graph.GraphOverlay
		contains []string
	}{
		{
			name: "Node Shapes",
			nodes: []*domain.StepNode{
				{Name: "start", Type: domain.NodeTypeStart},
				{Name: "fan", Type: domain.NodeTypeSplitStatic},
				{Name: "each", Type: domain.NodeTypeSplitForeach},
				{Name: "workers", Type: domain.NodeTypeSplitParallel},
				{Name: "join", Type: domain.NodeTypeJoin},
				{Name: "train", Type: domain.NodeTypeLinear},
				{Name: "end", Type: domain.NodeTypeEnd},
			},
			contains: []string{
				`start(("start"))`,
				`fan{"fan"}`,
				`each[/"each"/]`,
				`workers[["workers"]]`,
				`join{{"join"}}`,
				`train["train"]`,
				`end(("end"))`,
			},
		},
		{
			name: "ID Sanitization",
			nodes: []*domain.StepNode{
				{Name: "load.data", Type: domain.NodeTypeLinear},
				{Name: "hyphen-ated", Type: domain.NodeTypeLinear},
			},
			contains: []string{
				`load_data["load.data"]`,
				`hyphen_ated["hyphen-ated"]`,
			},
		},
		{
			name: "Edge Labels",
			nodes: []*domain.StepNode{
				{Name: "start", Type: domain.NodeTypeSplitForeach, ForeachVar: "items", OutFuncs: []string{"each"}},
				{Name: "spawn", Type: domain.NodeTypeSplitParallel, OutFuncs: []string{"worker"}},
				{Name: "a", Type: domain.NodeTypeLinear, OutFuncs: []string{"b"}},
			},
			contains: []string{
				`start -- "foreach items" --> each`,
				`spawn -. "parallel" .-> worker`,
				`a --> b`,
			},
		},
		{
			name: "Overlay",
			nodes: []*domain.StepNode{
				{Name: "start", Type: domain.NodeTypeStart, OutFuncs: []string{"end"}},
				{Name: "end", Type: domain.NodeTypeEnd},
			},
			overlay: &graph.GraphOverlay{VisitedNodes: []string{"start", "start"}, FailedNode: "end"},
			contains: []string{
				"class start visited;",
				"class end failed;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.nodes, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			if tt.overlay != nil && strings.Count(got, "class start visited;") != 1 {
				t.Errorf("visited nodes must be deduplicated:\n%v", got)
			}
		})
	}
}
