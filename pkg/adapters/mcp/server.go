package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aretw0/flowgraph"
	"github.com/aretw0/flowgraph/internal/logging"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const graphURI = "flowgraph://graph"

// TaskArgs addresses one task of a run.
type TaskArgs struct {
	Run  string `json:"run" jsonschema_description:"Run id"`
	Step string `json:"step" jsonschema_description:"Step name"`
	Task string `json:"task,omitempty" jsonschema_description:"Task id"`
	Name string `json:"name,omitempty" jsonschema_description:"Artifact name"`
}

// RunsResponse lists the recorded runs of the flow.
type RunsResponse struct {
	Flow string   `json:"flow"`
	Runs []string `json:"runs"`
}

// TasksResponse lists the tasks of one step.
type TasksResponse struct {
	Run   string   `json:"run"`
	Step  string   `json:"step"`
	Tasks []string `json:"tasks"`
}

// ArtifactsResponse lists the artifacts of one task.
type ArtifactsResponse struct {
	Path      string                  `json:"path"`
	Artifacts []domain.ArtifactRecord `json:"artifacts"`
}

// ArtifactResponse carries one decoded artifact.
type ArtifactResponse struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Server exposes read-only introspection of a flow as an MCP server.
type Server struct {
	inspector ports.Inspector
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new MCP Server instance.
func NewServer(insp ports.Inspector, opts ...Option) *Server {
	s := &Server{
		inspector: insp,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("flowgraph-mcp", strings.TrimSpace(flowgraph.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the graph record of the flow: parameters, constants, steps and structure."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		info, err := s.inspector.Info(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("info failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(info)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List the recorded runs of the flow."),
		mcp.WithOutputSchema[RunsResponse](),
	), mcp.NewStructuredToolHandler(s.handleListRuns))

	s.mcpServer.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List the task ids of a step in a run."),
		mcp.WithString("run", mcp.Required(), mcp.Description("Run id")),
		mcp.WithString("step", mcp.Required(), mcp.Description("Step name")),
		mcp.WithOutputSchema[TasksResponse](),
	), mcp.NewStructuredToolHandler(s.handleListTasks))

	s.mcpServer.AddTool(mcp.NewTool("list_artifacts",
		mcp.WithDescription("List the artifacts of a task with their fingerprints."),
		mcp.WithString("run", mcp.Required(), mcp.Description("Run id")),
		mcp.WithString("step", mcp.Required(), mcp.Description("Step name")),
		mcp.WithString("task", mcp.Required(), mcp.Description("Task id")),
		mcp.WithOutputSchema[ArtifactsResponse](),
	), mcp.NewStructuredToolHandler(s.handleListArtifacts))

	s.mcpServer.AddTool(mcp.NewTool("get_artifact",
		mcp.WithDescription("Load one artifact of a task."),
		mcp.WithString("run", mcp.Required(), mcp.Description("Run id")),
		mcp.WithString("step", mcp.Required(), mcp.Description("Step name")),
		mcp.WithString("task", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Artifact name")),
		mcp.WithOutputSchema[ArtifactResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetArtifact))
}

func (s *Server) handleListRuns(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (RunsResponse, error) {
	info, err := s.inspector.Info(ctx)
	if err != nil {
		return RunsResponse{}, err
	}
	runs, err := s.inspector.Datastore().Runs(ctx, info.Flow)
	if err != nil {
		return RunsResponse{}, fmt.Errorf("list runs failed: %w", err)
	}
	return RunsResponse{Flow: info.Flow, Runs: runs}, nil
}

func (s *Server) handleListTasks(ctx context.Context, _ mcp.CallToolRequest, args TaskArgs) (TasksResponse, error) {
	info, err := s.inspector.Info(ctx)
	if err != nil {
		return TasksResponse{}, err
	}
	tasks, err := s.inspector.Datastore().Tasks(ctx, info.Flow, args.Run, args.Step)
	if err != nil {
		return TasksResponse{}, fmt.Errorf("list tasks failed: %w", err)
	}
	return TasksResponse{Run: args.Run, Step: args.Step, Tasks: tasks}, nil
}

func (s *Server) handleListArtifacts(ctx context.Context, _ mcp.CallToolRequest, args TaskArgs) (ArtifactsResponse, error) {
	path, store, err := s.open(ctx, args)
	if err != nil {
		return ArtifactsResponse{}, err
	}
	items, err := store.Items(ctx)
	if err != nil {
		return ArtifactsResponse{}, fmt.Errorf("list artifacts failed: %w", err)
	}
	return ArtifactsResponse{Path: path.String(), Artifacts: items}, nil
}

func (s *Server) handleGetArtifact(ctx context.Context, _ mcp.CallToolRequest, args TaskArgs) (ArtifactResponse, error) {
	if args.Name == "" {
		return ArtifactResponse{}, errors.New("artifact name is required")
	}
	path, store, err := s.open(ctx, args)
	if err != nil {
		return ArtifactResponse{}, err
	}
	v, err := store.Load(ctx, args.Name)
	if err != nil {
		return ArtifactResponse{}, fmt.Errorf("load %s failed: %w", args.Name, err)
	}
	return ArtifactResponse{Path: path.String(), Name: args.Name, Value: v}, nil
}

// open checks the task exists before opening its store, so a typo never creates one.
func (s *Server) open(ctx context.Context, args TaskArgs) (domain.TaskPath, ports.ArtifactStore, error) {
	info, err := s.inspector.Info(ctx)
	if err != nil {
		return domain.TaskPath{}, nil, err
	}
	path := domain.TaskPath{Flow: info.Flow, Run: args.Run, Step: args.Step, Task: args.Task}
	tasks, err := s.inspector.Datastore().Tasks(ctx, path.Flow, path.Run, path.Step)
	if err != nil {
		return path, nil, err
	}
	if !slices.Contains(tasks, path.Task) {
		return path, nil, fmt.Errorf("%s: %w", path, domain.ErrTaskNotFound)
	}
	store, err := s.inspector.Datastore().Open(ctx, path)
	if err != nil {
		return path, nil, err
	}
	return path, store, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(graphURI, "Flow Graph",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.inspector.Nodes())
		if err != nil {
			return nil, fmt.Errorf("failed to encode graph: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      graphURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
