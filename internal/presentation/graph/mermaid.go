package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// GraphOverlay contains run data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	FailedNode   string
}

// GenerateMermaid produces a Mermaid flowchart from the graph nodes.
// Shapes follow the node type:
//   - start and end: ((Circle))
//   - join: {{Hexagon}}
//   - foreach split: [/Parallelogram/]
//   - parallel split: [[Subroutine]]
//   - static split: {Rhombus}
//   - linear: [Rectangle]
//
// Foreach edges are labelled with the iterated artifact.
func GenerateMermaid(nodes []*domain.StepNode, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range nodes {
		safeID := sanitizeMermaidID(node.Name)

		opener, closer := "[", "]"
		switch node.Type {
		case domain.NodeTypeStart, domain.NodeTypeEnd:
			opener, closer = "((", "))"
		case domain.NodeTypeJoin:
			opener, closer = "{{", "}}"
		case domain.NodeTypeSplitForeach:
			opener, closer = "[/", "/]"
		case domain.NodeTypeSplitParallel:
			opener, closer = "[[", "]]"
		case domain.NodeTypeSplitStatic:
			opener, closer = "{", "}"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, node.Name, closer)

		for _, to := range node.OutFuncs {
			arrow := "-->"
			switch node.Type {
			case domain.NodeTypeSplitForeach:
				arrow = fmt.Sprintf("-- \"foreach %s\" -->", strings.ReplaceAll(node.ForeachVar, "\"", "'"))
			case domain.NodeTypeSplitParallel:
				arrow = "-. \"parallel\" .->"
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", safeID, arrow, sanitizeMermaidID(to))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light fills in both themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.FailedNode != "" {
			fmt.Fprintf(&sb, "    class %s failed;\n", sanitizeMermaidID(overlay.FailedNode))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
