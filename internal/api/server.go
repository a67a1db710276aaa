package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dgallion1/docsplit/internal/config"
	"github.com/dgallion1/docsplit/internal/contentgraph"
	"github.com/dgallion1/docsplit/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NodeStore reads and removes emitted records in the content graph.
type NodeStore interface {
	GetNode(ctx context.Context, id string) (*contentgraph.NodeResponse, error)
	DeleteNode(ctx context.Context, id string) error
}

// Server is the HTTP API server for docsplit.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	nodes        NodeStore
	metrics      http.Handler
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. nodes and metrics may be
// nil, which disables the record and metrics endpoints.
func NewServer(orch *pipeline.Orchestrator, nodes NodeStore, metrics http.Handler, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		nodes:        nodes,
		metrics:      metrics,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.DocsplitAPIKey, s.log))

		r.Post("/api/runs", s.handleStartRun)
		r.Get("/api/runs/{runID}/status", s.handleRunStatus)
		r.Post("/api/transform", s.handleTransform)
		r.Get("/api/stats", s.handleStats)

		r.Get("/api/records", s.handleGetRecord)
		r.Delete("/api/records", s.handleDeleteRecord)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
