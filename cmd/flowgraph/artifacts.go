package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/flowgraph/internal/cli"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
	"github.com/spf13/cobra"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Browse the artifacts of a task",
}

var artifactsLsCmd = &cobra.Command{
	Use:   "ls FLOW/RUN/STEP/TASK",
	Short: "List artifacts with their fingerprints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		store, err := openTask(cmd.Context(), b.Datastore, args[0])
		if err != nil {
			return err
		}
		items, err := store.Items(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tFINGERPRINT\tBRANCH")
		for _, it := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\n", it.Name, it.Fingerprint, it.Branch)
		}
		return w.Flush()
	},
}

var artifactsGetCmd = &cobra.Command{
	Use:   "get FLOW/RUN/STEP/TASK NAME",
	Short: "Print the value of an artifact",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		b, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		store, err := openTask(cmd.Context(), b.Datastore, args[0])
		if err != nil {
			return err
		}
		v, err := store.Load(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		return cli.WriteValue(cmd.OutOrStdout(), v, format)
	},
}

var artifactsDiffCmd = &cobra.Command{
	Use:   "diff OLD NEW",
	Short: "Compare the artifacts of two tasks by fingerprint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		b, err := openBackend(cmd)
		if err != nil {
			return err
		}
		defer b.Close()

		var listings [2][]domain.ArtifactRecord
		for i, p := range args {
			store, err := openTask(cmd.Context(), b.Datastore, p)
			if err != nil {
				return err
			}
			if listings[i], err = store.Items(cmd.Context()); err != nil {
				return err
			}
		}
		return cli.WriteValue(cmd.OutOrStdout(), domain.Diff(listings[0], listings[1]), format)
	},
}

// openTask opens an existing task; unknown tasks are reported instead of created.
func openTask(ctx context.Context, ds ports.Datastore, raw string) (ports.ArtifactStore, error) {
	path, ok := domain.ParseTaskPath(raw, "")
	if !ok {
		return nil, fmt.Errorf("invalid task path %q, expected flow/run/step/task", raw)
	}
	tasks, err := ds.Tasks(ctx, path.Flow, path.Run, path.Step)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, id := range tasks {
		if id == path.Task {
			return ds.Open(ctx, path)
		}
	}
	return nil, fmt.Errorf("%s: %w", path, domain.ErrTaskNotFound)
}

func init() {
	artifactsGetCmd.Flags().StringP("format", "f", "json", "Output format: json or yaml")
	artifactsDiffCmd.Flags().StringP("format", "f", "json", "Output format: json or yaml")
	artifactsCmd.AddCommand(artifactsLsCmd, artifactsGetCmd, artifactsDiffCmd)
	rootCmd.AddCommand(artifactsCmd)
}
