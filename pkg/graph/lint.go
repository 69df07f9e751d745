package graph

import (
	"fmt"

	"github.com/aretw0/flowgraph/pkg/domain"
)

// LintIssue is a single structural problem of a graph.
type LintIssue struct {
	Step   string
	Reason string
}

func (e *LintIssue) Error() string {
	if e.Step == "" {
		return e.Reason
	}
	return fmt.Sprintf("step %q: %s", e.Step, e.Reason)
}

// LintError represents multiple lint failures.
type LintError struct {
	Errors []error
}

func (e *LintError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d lint errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// LintErrors returns all issues if err is a LintError. Otherwise returns nil.
func LintErrors(err error) []error {
	if aggr, ok := err.(*LintError); ok {
		return aggr.Errors
	}
	return nil
}

// Lint checks the structural invariants of the graph and reports every violation.
func (g *Graph) Lint() error {
	var errs []error
	issue := func(step, format string, args ...any) {
		errs = append(errs, &LintIssue{Step: step, Reason: fmt.Sprintf(format, args...)})
	}

	if _, ok := g.index[domain.StartStep]; !ok {
		issue("", "flow has no %q step", domain.StartStep)
	}
	if _, ok := g.index[domain.EndStep]; !ok {
		issue("", "flow has no %q step", domain.EndStep)
	}

	for _, n := range g.nodes {
		for _, out := range n.OutFuncs {
			if _, ok := g.index[out]; !ok {
				issue(n.Name, "transition to unknown step %q", out)
			}
		}
		switch {
		case n.Type == domain.NodeTypeEnd && len(n.OutFuncs) > 0:
			issue(n.Name, "the end step cannot have transitions")
		case n.Type != domain.NodeTypeEnd && len(n.OutFuncs) == 0:
			issue(n.Name, "step has no transitions")
		}
		if (n.Type == domain.NodeTypeSplitForeach || n.Type == domain.NodeTypeSplitParallel) && len(n.OutFuncs) != 1 {
			issue(n.Name, "a %s split must have exactly one destination, got %d", n.Type, len(n.OutFuncs))
		}
		if n.Type == domain.NodeTypeJoin && len(n.InFuncs) == 0 {
			issue(n.Name, "join step has no inbound branches")
		}
		if n.Type == domain.NodeTypeSplitParallel && len(n.OutFuncs) == 1 {
			g.lintUnbounded(n, issue)
		}
	}

	// Reachability from start
	if start, ok := g.index[domain.StartStep]; ok {
		visited := map[string]bool{start.Name: true}
		queue := []string{start.Name}
		for len(queue) > 0 {
			cur := g.index[queue[0]]
			queue = queue[1:]
			for _, out := range cur.OutFuncs {
				if _, ok := g.index[out]; ok && !visited[out] {
					visited[out] = true
					queue = append(queue, out)
				}
			}
		}
		for _, n := range g.nodes {
			if !visited[n.Name] {
				issue(n.Name, "step is unreachable from %q", domain.StartStep)
			}
		}
	}

	if cycle := g.findCycle(); cycle != "" {
		issue(cycle, "step is part of a cycle")
	}

	if len(errs) > 0 {
		return &LintError{Errors: errs}
	}
	return nil
}

// lintUnbounded enforces the single-join topology after an unbounded split.
func (g *Graph) lintUnbounded(n *domain.StepNode, issue func(string, string, ...any)) {
	dst, ok := g.index[n.OutFuncs[0]]
	if !ok {
		return
	}
	if len(dst.OutFuncs) != 1 {
		issue(dst.Name, "unbounded foreach is supported only over a single step followed by a join")
		return
	}
	if join, ok := g.index[dst.OutFuncs[0]]; ok && join.Type != domain.NodeTypeJoin {
		issue(dst.Name, "unbounded foreach found for %s -> %s; the join type isn't valid", dst.Name, join.Name)
	}
}

func (g *Graph) findCycle() string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.nodes))
	var visit func(name string) string
	visit = func(name string) string {
		color[name] = grey
		for _, out := range g.index[name].OutFuncs {
			if _, ok := g.index[out]; !ok {
				continue
			}
			switch color[out] {
			case grey:
				return out
			case white:
				if c := visit(out); c != "" {
					return c
				}
			}
		}
		color[name] = black
		return ""
	}
	for _, n := range g.nodes {
		if color[n.Name] == white {
			if c := visit(n.Name); c != "" {
				return c
			}
		}
	}
	return ""
}
