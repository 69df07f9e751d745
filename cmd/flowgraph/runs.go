package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs FLOW",
	Short: "List the recorded runs of a flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		runs, err := b.Datastore.Runs(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Fprintln(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks FLOW RUN STEP",
	Short: "List the task ids of a step",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		tasks, err := b.Datastore.Tasks(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return err
		}
		for _, id := range tasks {
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s/%s/%s\n", args[0], args[1], args[2], id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd, tasksCmd)
}
