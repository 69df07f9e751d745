package tui

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
// When stdout is not a terminal the markdown is returned untouched.
func NewRenderer() func(string) (string, error) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// FlowMarkdown describes a flow: its doc, parameters, constants and steps in
// graph order.
func FlowMarkdown(info *domain.GraphInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", info.Flow)
	if info.Doc != "" {
		fmt.Fprintf(&sb, "%s\n\n", info.Doc)
	}

	if len(info.Parameters) > 0 {
		sb.WriteString("## Parameters\n\n")
		for _, p := range info.Parameters {
			fmt.Fprintf(&sb, "- **%s** (%s)\n", p.Name, p.Type)
		}
		sb.WriteString("\n")
	}
	if len(info.Constants) > 0 {
		sb.WriteString("## Constants\n\n")
		for _, c := range info.Constants {
			fmt.Fprintf(&sb, "- **%s** (%s)\n", c.Name, c.Type)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Steps\n\n")
	for _, name := range stepOrder(info) {
		st := info.Steps[name]
		fmt.Fprintf(&sb, "### %s\n\n", name)
		fmt.Fprintf(&sb, "*%s*", st.Type)
		if st.ForeachArtifact != "" {
			fmt.Fprintf(&sb, " over `%s`", st.ForeachArtifact)
		}
		sb.WriteString("\n\n")
		if st.Doc != "" {
			fmt.Fprintf(&sb, "%s\n\n", st.Doc)
		}
		if len(st.Next) > 0 {
			fmt.Fprintf(&sb, "=> %s\n\n", strings.Join(st.Next, ", "))
		}
		if st.MatchingJoin != "" {
			fmt.Fprintf(&sb, "Joined by %s.\n\n", st.MatchingJoin)
		}
	}
	return sb.String()
}

// stepOrder flattens the graph structure; steps outside it follow by name.
func stepOrder(info *domain.GraphInfo) []string {
	var out []string
	seen := make(map[string]bool)
	var walk func([]any)
	walk = func(items []any) {
		for _, it := range items {
			switch v := it.(type) {
			case string:
				if !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			case []any:
				walk(v)
			}
		}
	}
	walk(info.GraphStructure)

	var rest []string
	for name := range info.Steps {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
