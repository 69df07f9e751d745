package main

import (
	"fmt"
	"os"

	"github.com/aretw0/flowgraph/internal/cli"
	"github.com/aretw0/flowgraph/internal/settings"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flowgraph",
	Short: "Inspect the runs and artifacts recorded by flowgraph flows",
	Long: `flowgraph reads the datastore shared by every flow binary and lets you browse
runs, tasks and artifacts without loading the flow code.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("settings", "", "Settings file")
	rootCmd.PersistentFlags().String("datastore", "", "Datastore override: local, redis or sqlite")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logs")
}

// openBackend resolves the settings and datastore of the current command.
func openBackend(cmd *cobra.Command) (*cli.Backend, error) {
	path, _ := cmd.Flags().GetString("settings")
	s, err := settings.Load(path)
	if err != nil {
		return nil, err
	}
	if ds, _ := cmd.Flags().GetString("datastore"); ds != "" {
		s.Datastore = ds
	}
	debug, _ := cmd.Flags().GetBool("debug")
	logger, err := cli.CreateLogger(s.LogLevel, debug)
	if err != nil {
		return nil, err
	}
	return cli.OpenBackend(cmd.Context(), s, logger)
}
