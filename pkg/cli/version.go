package cli

import (
	"fmt"
	"strings"

	"github.com/aretw0/flowgraph"
	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of flowgraph",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (flowgraph version %s)\n", a.flow.Name, strings.TrimSpace(flowgraph.Version))
		},
	}
}
