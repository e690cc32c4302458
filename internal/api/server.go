// Package api exposes the enrichment pipeline to an external
// orchestrator over HTTP: upload a document, issue commands against
// it, poll runs, download the enriched result.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dhalloran/pagesense/internal/capability"
	"github.com/dhalloran/pagesense/internal/config"
	"github.com/dhalloran/pagesense/internal/pipeline"
)

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	caps   capability.Client
	stats  *capability.CallStats
	docs   *DocStore
	runs   *pipeline.RunStore
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(caps capability.Client, stats *capability.CallStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		caps:  caps,
		stats: stats,
		docs:  NewDocStore(cfg.DocTTL),
		runs:  pipeline.NewRunStore(cfg.RunTTL),
		log:   log,
		cfg:   cfg,
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

	// Authenticated endpoints (auth optional when no key configured).
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/documents", s.handleUpload)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Post("/api/documents/{docID}/commands", s.handleCommand)
		r.Get("/api/documents/{docID}/announcements", s.handleAnnouncements)
		r.Get("/api/runs/{runID}", s.handleRunStatus)
		r.Get("/api/stats/capability", s.handleCapabilityStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// StartJanitor evicts expired documents and runs until ctx is
// cancelled.
func (s *Server) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.docs.Cleanup()
				s.runs.Cleanup()
			}
		}
	}()
}
