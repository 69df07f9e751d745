package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/aretw0/flowgraph"
	"github.com/aretw0/flowgraph/internal/logging"
	"github.com/aretw0/flowgraph/pkg/domain"
	"github.com/aretw0/flowgraph/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes read-only introspection of a flow and its runs.
type Server struct {
	Inspector ports.Inspector
	logger    *slog.Logger
	gatherer  prometheus.Gatherer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics serves the gatherer on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewHandler creates the HTTP handler for a flow.
func NewHandler(insp ports.Inspector, opts ...Option) http.Handler {
	s := &Server{Inspector: insp, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	r.Get("/nodes", s.GetNodes)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.ListRuns)
		r.Get("/{run}/steps/{step}/tasks", s.ListTasks)
		r.Get("/{run}/steps/{step}/tasks/{task}/artifacts", s.ListArtifacts)
		r.Get("/{run}/steps/{step}/tasks/{task}/artifacts/{name}", s.GetArtifact)
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.Inspector.Info(r.Context())
	if err != nil {
		s.fail(w, "GetInfo", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "flowgraph-http",
		"version": strings.TrimSpace(flowgraph.Version),
		"flow":    info.Flow,
	})
}

// GetGraph handles GET /graph and returns the persisted graph record.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	info, err := s.Inspector.Info(r.Context())
	if err != nil {
		s.fail(w, "GetGraph", err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// GetNodes handles GET /nodes.
func (s *Server) GetNodes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Inspector.Nodes())
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	info, err := s.Inspector.Info(r.Context())
	if err != nil {
		s.fail(w, "ListRuns", err)
		return
	}
	runs, err := s.Inspector.Datastore().Runs(r.Context(), info.Flow)
	if err != nil {
		s.fail(w, "ListRuns", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"flow": info.Flow, "runs": runs})
}

// ListTasks handles GET /runs/{run}/steps/{step}/tasks.
func (s *Server) ListTasks(w http.ResponseWriter, r *http.Request) {
	info, err := s.Inspector.Info(r.Context())
	if err != nil {
		s.fail(w, "ListTasks", err)
		return
	}
	run, step := chi.URLParam(r, "run"), chi.URLParam(r, "step")
	tasks, err := s.Inspector.Datastore().Tasks(r.Context(), info.Flow, run, step)
	if err != nil {
		s.fail(w, "ListTasks", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": run, "step": step, "tasks": tasks})
}

// ListArtifacts handles GET /runs/{run}/steps/{step}/tasks/{task}/artifacts.
func (s *Server) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	store, ok := s.open(w, r, "ListArtifacts")
	if !ok {
		return
	}
	items, err := store.Items(r.Context())
	if err != nil {
		s.fail(w, "ListArtifacts", err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

// GetArtifact handles GET /runs/{run}/steps/{step}/tasks/{task}/artifacts/{name}.
func (s *Server) GetArtifact(w http.ResponseWriter, r *http.Request) {
	store, ok := s.open(w, r, "GetArtifact")
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	v, err := store.Load(r.Context(), name)
	if err != nil {
		s.fail(w, "GetArtifact", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"name": name, "value": v})
}

func (s *Server) open(w http.ResponseWriter, r *http.Request, op string) (ports.ArtifactStore, bool) {
	info, err := s.Inspector.Info(r.Context())
	if err != nil {
		s.fail(w, op, err)
		return nil, false
	}
	path := domain.TaskPath{
		Flow: info.Flow,
		Run:  chi.URLParam(r, "run"),
		Step: chi.URLParam(r, "step"),
		Task: chi.URLParam(r, "task"),
	}
	tasks, err := s.Inspector.Datastore().Tasks(r.Context(), path.Flow, path.Run, path.Step)
	if err != nil {
		s.fail(w, op, err)
		return nil, false
	}
	if !slices.Contains(tasks, path.Task) {
		s.fail(w, op, domain.ErrTaskNotFound)
		return nil, false
	}
	store, err := s.Inspector.Datastore().Open(r.Context(), path)
	if err != nil {
		s.fail(w, op, err)
		return nil, false
	}
	return store, true
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrTaskNotFound) || errors.Is(err, domain.ErrArtifactNotFound) {
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "op", op, "err", err)
	} else {
		s.logger.Warn("Request failed", "op", op, "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}
