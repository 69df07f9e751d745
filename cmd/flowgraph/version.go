package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/flowgraph"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of flowgraph",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "flowgraph version %s\n", strings.TrimSpace(flowgraph.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
