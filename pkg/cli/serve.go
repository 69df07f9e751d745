package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	internalcli "github.com/aretw0/flowgraph/internal/cli"
	httpAdapter "github.com/aretw0/flowgraph/pkg/adapters/http"
	"github.com/aretw0/flowgraph/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only HTTP inspection server",
		Long: `Exposes the graph, the recorded runs and their artifacts as a JSON API,
plus Prometheus metrics on /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetString("port")
			out := cmd.OutOrStdout()

			insp, err := internalcli.Redacted(a.flow, a.settings.RedactPatterns)
			if err != nil {
				return err
			}
			handler := httpAdapter.NewHandler(insp,
				httpAdapter.WithLogger(a.logger),
				httpAdapter.WithMetrics(a.registry),
			)
			srv := &http.Server{
				Addr:              ":" + port,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErrors := make(chan error, 1)
			go func() {
				internalcli.SystemMessage(out, "Serving %s on %s", a.flow.Name, srv.Addr)
				serverErrors <- srv.ListenAndServe()
			}()

			sc := internalcli.NewSignalContext(cmd.Context())
			defer sc.Cancel()

			select {
			case err := <-serverErrors:
				return fmt.Errorf("server error: %w", err)
			case <-sc.Done():
				internalcli.SystemMessage(out, "Start shutdown... Signal: %v", sc.Signal())

				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					a.logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
					if err := srv.Close(); err != nil {
						return fmt.Errorf("error killing server: %w", err)
					}
				}
				internalcli.SystemMessage(out, "Server stopped gracefully")
				return nil
			}
		},
	}
	cmd.Flags().StringP("port", "P", "8080", "Port to listen on")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Exposes the graph, the recorded runs and their artifacts as MCP tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			transport, _ := cmd.Flags().GetString("transport")
			port, _ := cmd.Flags().GetInt("port")

			insp, err := internalcli.Redacted(a.flow, a.settings.RedactPatterns)
			if err != nil {
				return err
			}
			srv := mcp.NewServer(insp, mcp.WithLogger(a.logger))
			switch transport {
			case "stdio":
				a.logger.Info("Starting MCP Server (Stdio)")
				return srv.ServeStdio()
			case "sse":
				a.logger.Info("Starting MCP Server (SSE)", "port", port)
				sc := internalcli.NewSignalContext(cmd.Context())
				defer sc.Cancel()
				if err := srv.ServeSSE(sc, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				a.logger.Info("MCP Server stopped gracefully")
				return nil
			default:
				return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
			}
		},
	}
	cmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	cmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
	return cmd
}
