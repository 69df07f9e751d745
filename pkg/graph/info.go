package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// OutputSteps returns the per-step records and the nested structure of the
// graph. Splits appear as a list of branches after the split step, each branch
// running up to (not including) the matching join.
func (g *Graph) OutputSteps() (map[string]domain.StepInfo, []any) {
	steps := make(map[string]domain.StepInfo, len(g.nodes))
	visited := make(map[string]bool)

	var block func(from, until string) []any
	block = func(from, until string) []any {
		var out []any
		cur := from
		for cur != "" && cur != until && !visited[cur] {
			n, ok := g.index[cur]
			if !ok {
				break
			}
			visited[cur] = true
			steps[cur] = g.stepInfo(n)
			out = append(out, cur)

			if n.Type.IsSplit() {
				join := g.matchingJoin[cur]
				branches := make([]any, 0, len(n.OutFuncs))
				for _, b := range n.OutFuncs {
					branches = append(branches, block(b, join))
				}
				out = append(out, branches)
				cur = join
				continue
			}
			if n.Type == domain.NodeTypeEnd || len(n.OutFuncs) == 0 {
				break
			}
			cur = n.OutFuncs[0]
		}
		if out == nil {
			out = []any{}
		}
		return out
	}

	return steps, block(domain.StartStep, "")
}

func (g *Graph) stepInfo(n *domain.StepNode) domain.StepInfo {
	info := domain.StepInfo{
		Name:       n.Name,
		Type:       n.Type,
		Doc:        n.Doc,
		Next:       n.OutFuncs,
		Decorators: n.Decorators,
	}
	if n.Type == domain.NodeTypeSplitForeach || n.Type == domain.NodeTypeSplitParallel {
		info.ForeachArtifact = n.ForeachVar
	}
	if n.Type.IsSplit() {
		info.MatchingJoin = g.matchingJoin[n.Name]
	}
	return info
}

// Info builds the persisted graph record: parameters, constants, steps,
// structure and the flow decorators (including mutators).
func (g *Graph) Info() *domain.GraphInfo {
	spec := g.spec
	steps, structure := g.OutputSteps()

	info := &domain.GraphInfo{
		Flow:           spec.Name,
		File:           spec.File,
		Parameters:     []domain.VarInfo{},
		Constants:      []domain.VarInfo{},
		Steps:          steps,
		GraphStructure: structure,
		Doc:            spec.Doc,
		Decorators:     []domain.DecoratorRef{},
	}
	for _, c := range spec.Configs() {
		info.Parameters = append(info.Parameters, domain.VarInfo{Name: c.Name, Type: "Config"})
	}
	for _, p := range spec.Parameters() {
		info.Parameters = append(info.Parameters, domain.VarInfo{Name: p.Name, Type: "Parameter"})
	}
	for _, c := range spec.Constants() {
		info.Constants = append(info.Constants, domain.VarInfo{Name: c.Name, Type: fmt.Sprintf("%T", c.Value)})
	}
	for _, d := range spec.Decorators() {
		if strings.HasPrefix(d.Name, "_") {
			continue
		}
		info.Decorators = append(info.Decorators, d.Ref())
	}
	for _, m := range spec.FlowMutators() {
		info.Decorators = append(info.Decorators, domain.DecoratorRef{
			Name:              m.DecoratorName(),
			Attributes:        map[string]any{},
			StaticallyDefined: m.StaticallyDefined(),
			InsertedBy:        m.InsertedBy(),
		})
	}
	return info
}
