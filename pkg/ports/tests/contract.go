package tests

import (
	"testing"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// GraphContractTest is a reusable test suite that verifies if an implementation complies with ports.Graph.
// want maps every expected step name to its node type.
func GraphContractTest(t *testing.T, g ports.Graph, want map[string]domain.NodeType) {
	t.Helper()

	// 1. Node (Success)
	t.Run("Node_Success", func(t *testing.T) {
		for name, typ := range want {
			n, ok := g.Node(name)
			if !ok {
				t.Fatalf("node %s not found", name)
			}
			if n.Type != typ {
				t.Errorf("type mismatch for %s. got %q, want %q", name, n.Type, typ)
			}
		}
	})

	// 2. Node (NotFound)
	t.Run("Node_NotFound", func(t *testing.T) {
		if _, ok := g.Node("non-existent-step"); ok {
			t.Error("expected no node for non-existent step")
		}
	})

	// 3. Nodes
	t.Run("Nodes", func(t *testing.T) {
		nodes := g.Nodes()
		if len(nodes) != len(want) {
			t.Errorf("expected %d nodes, got %d", len(want), len(nodes))
		}
		for _, n := range nodes {
			if _, ok := want[n.Name]; !ok {
				t.Errorf("unexpected node %s in list", n.Name)
			}
			if n.Type != domain.NodeTypeEnd && len(n.OutFuncs) == 0 {
				t.Errorf("node %s has no out_funcs", n.Name)
			}
			if n.Type == domain.NodeTypeEnd && len(n.OutFuncs) != 0 {
				t.Errorf("end node has out_funcs %v", n.OutFuncs)
			}
		}
	})
}
