// Package cli turns a flow into a command line program.
//
// A flow binary only needs:
//
//	func main() {
//		cli.Main(flowgraph.New(spec).Handle(...))
//	}
//
// The commands load the ambient settings, choose the datastore and forward
// lifecycle events to the structured log and the metrics registry.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/flowgraph"
	internalcli "github.com/aretw0/flowgraph/internal/cli"
	"github.com/aretw0/flowgraph/internal/settings"
	"github.com/aretw0/flowgraph/pkg/observability"
	"github.com/aretw0/flowgraph/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// app holds what the persistent pre-run prepared for a command.
type app struct {
	flow     *flowgraph.Flow
	root     *cobra.Command
	settings settings.Settings
	logger   *slog.Logger
	backend  *internalcli.Backend
	registry *prometheus.Registry
}

// Main runs the command line of f and exits with a non-zero status on failure.
func Main(f *flowgraph.Flow) {
	if err := NewRootCommand(f).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree of f.
func NewRootCommand(f *flowgraph.Flow) *cobra.Command {
	a := &app{flow: f}

	root := &cobra.Command{
		Use:           f.Name,
		Short:         fmt.Sprintf("Run and inspect the %s flow", f.Name),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.backend == nil {
				return nil
			}
			return a.backend.Close()
		},
	}
	root.PersistentFlags().String("settings", "", "Settings file (defaults to $"+settings.EnvConfigFile+" or .flowgraph/config.yaml)")
	root.PersistentFlags().String("datastore", "", "Datastore override: memory, local, redis or sqlite")
	root.PersistentFlags().Bool("debug", false, "Enable debug logs")

	root.AddCommand(
		newShowCmd(a),
		newGraphCmd(a),
		newInfoCmd(a),
		newCheckCmd(a),
		newRunCmd(a),
		newStepCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newVersionCmd(a),
	)
	a.root = root
	return root
}

// MainRegistry runs a program hosting every flow of reg, one subcommand per flow.
func MainRegistry(name string, reg *registry.Registry) {
	if err := NewRegistryCommand(name, reg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRegistryCommand builds a command whose subcommands are the command trees
// of the registered flows.
func NewRegistryCommand(name string, reg *registry.Registry) *cobra.Command {
	root := &cobra.Command{
		Use:           name,
		Short:         "Run and inspect the registered flows",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	for _, flowName := range reg.Names() {
		f, _ := reg.Get(flowName)
		root.AddCommand(NewRootCommand(f))
	}
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("settings")
	s, err := settings.Load(path)
	if err != nil {
		return err
	}
	if ds, _ := cmd.Flags().GetString("datastore"); ds != "" {
		s.Datastore = ds
	}
	debug, _ := cmd.Flags().GetBool("debug")
	logger, err := internalcli.CreateLogger(s.LogLevel, debug)
	if err != nil {
		return err
	}

	backend, err := internalcli.OpenBackend(cmd.Context(), s, logger)
	if err != nil {
		return err
	}

	a.settings = s
	a.logger = logger
	a.backend = backend
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(a.registry)

	opts := []flowgraph.Option{
		flowgraph.WithSettings(s),
		flowgraph.WithLogger(logger),
		flowgraph.WithDatastore(backend.Datastore),
		flowgraph.WithLifecycleHooks(a.flow.Hooks().
			Chain(observability.LogHooks(logger)).
			Chain(metrics.Hooks())),
	}
	if backend.Locker != nil {
		opts = append(opts, flowgraph.WithLocker(backend.Locker, flowgraph.DefaultLockTTL))
	}
	a.flow.Configure(opts...)
	return nil
}
