package ports

import "github.com/aretw0/flowgraph/pkg/domain"

// Graph is the read-only view of a derived flow graph.
// The engine queries topology through it but never mutates it; a new graph
// is derived from the flow definition instead.
type Graph interface {
	// Node returns the step with the given (case-sensitive) name.
	Node(name string) (*domain.StepNode, bool)

	// Nodes returns every step in declaration order.
	Nodes() []*domain.StepNode
}
