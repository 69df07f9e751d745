// Package graph derives the step graph of a flow definition.
//
// A Graph is immutable: when decorators change, a new graph is derived from
// the flow definition instead of editing this one.
package graph

import (
	"slices"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/flow"
	"github.com/aretw0/flowgraph/pkg/ports"
)

// Graph is the derived topology of a flow.
type Graph struct {
	spec  *flow.Spec
	nodes []*domain.StepNode
	index map[string]*domain.StepNode

	// matchingJoin maps a split step to the join closing it.
	matchingJoin map[string]string
	// splitParents lists the open splits enclosing a step, outermost first.
	splitParents map[string][]string
}

var _ ports.Graph = (*Graph)(nil)

// New derives the graph of spec.
func New(spec *flow.Spec) *Graph {
	g := &Graph{
		spec:         spec,
		index:        make(map[string]*domain.StepNode),
		matchingJoin: make(map[string]string),
		splitParents: make(map[string][]string),
	}
	for _, decl := range spec.Steps() {
		n := &domain.StepNode{
			Name:     decl.Name,
			Type:     nodeType(decl),
			OutFuncs: slices.Clone(decl.Next),
			InFuncs:  []string{},
			Doc:      decl.Doc,
		}
		if n.OutFuncs == nil {
			n.OutFuncs = []string{}
		}
		switch n.Type {
		case domain.NodeTypeSplitForeach:
			n.ForeachVar = decl.Foreach
		case domain.NodeTypeSplitParallel:
			n.ForeachVar = domain.ArtifactParallelUBFIter
			n.Unbounded = true
		}
		for _, d := range decl.Decorators {
			n.Decorators = append(n.Decorators, d.Ref())
		}
		g.nodes = append(g.nodes, n)
		g.index[n.Name] = n
	}
	for _, n := range g.nodes {
		for _, out := range n.OutFuncs {
			if dst, ok := g.index[out]; ok {
				dst.InFuncs = append(dst.InFuncs, n.Name)
			}
		}
	}
	if start, ok := g.index[domain.StartStep]; ok {
		g.traverse(start, map[string]bool{start.Name: true}, nil)
	}
	return g
}

// nodeType applies the type precedence: end, join, parallel, foreach, static split, start, linear.
func nodeType(decl *flow.StepDecl) domain.NodeType {
	switch {
	case decl.Name == domain.EndStep:
		return domain.NodeTypeEnd
	case decl.Join:
		return domain.NodeTypeJoin
	case decl.Parallel:
		return domain.NodeTypeSplitParallel
	case decl.Foreach != "":
		return domain.NodeTypeSplitForeach
	case len(decl.Next) > 1:
		return domain.NodeTypeSplitStatic
	case decl.Name == domain.StartStep:
		return domain.NodeTypeStart
	default:
		return domain.NodeTypeLinear
	}
}

func (g *Graph) traverse(n *domain.StepNode, seen map[string]bool, parents []string) {
	switch {
	case n.Type.IsSplit():
		g.splitParents[n.Name] = parents
		parents = append(slices.Clone(parents), n.Name)
	case n.Type == domain.NodeTypeJoin:
		if len(parents) > 0 {
			g.matchingJoin[parents[len(parents)-1]] = n.Name
			parents = parents[:len(parents)-1]
		}
		g.splitParents[n.Name] = parents
	default:
		g.splitParents[n.Name] = parents
	}
	for _, out := range n.OutFuncs {
		dst, ok := g.index[out]
		if !ok || seen[out] {
			continue
		}
		seen[out] = true
		g.traverse(dst, seen, parents)
	}
}

// Node returns the step with the given name.
func (g *Graph) Node(name string) (*domain.StepNode, bool) {
	n, ok := g.index[name]
	return n, ok
}

// Nodes returns every step in declaration order.
func (g *Graph) Nodes() []*domain.StepNode {
	return slices.Clone(g.nodes)
}

// Spec returns the definition the graph was derived from.
func (g *Graph) Spec() *flow.Spec { return g.spec }

// MatchingJoin returns the join closing a split step.
func (g *Graph) MatchingJoin(split string) (string, bool) {
	j, ok := g.matchingJoin[split]
	return j, ok
}

// SplitParents returns the open splits enclosing a step, outermost first.
func (g *Graph) SplitParents(step string) []string {
	return slices.Clone(g.splitParents[step])
}

// JoinedSplit returns the split a join step closes.
func (g *Graph) JoinedSplit(join string) (string, bool) {
	for split, j := range g.matchingJoin {
		if j == join {
			return split, true
		}
	}
	return "", false
}
