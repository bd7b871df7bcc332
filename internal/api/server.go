// Package api exposes the analysis service over HTTP: project management,
// triggering analysis runs and querying the extracted graph and findings.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/archscope-hq/archscope/internal/config"
	"github.com/archscope-hq/archscope/internal/jobs"
	"github.com/archscope-hq/archscope/internal/model"
	archnats "github.com/archscope-hq/archscope/internal/nats"
)

// Store is the persistence surface the API needs. Satisfied by db.Store;
// narrowed to an interface so handlers can be tested against a mock.
type Store interface {
	Ping(ctx context.Context) error
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*model.Project, error)
	ListProjects(ctx context.Context, limit, offset int) ([]model.Project, error)
	GetFilesForProject(ctx context.Context, projectID uuid.UUID) ([]model.File, error)
	ListFindings(ctx context.Context, projectID uuid.UUID, category, severity string) ([]model.Finding, error)
}

// JobQueue enqueues analysis jobs. Satisfied by jobs.Repository.
type JobQueue interface {
	Create(ctx context.Context, job *jobs.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*jobs.Job, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*jobs.Job, error)
}

// Server represents the API server
type Server struct {
	cfg    *config.Config
	store  Store
	queue  JobQueue
	nats   *archnats.Client
	router *chi.Mux
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, store Store, queue JobQueue, natsClient *archnats.Client) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		store:  store,
		queue:  queue,
		nats:   natsClient,
		router: chi.NewRouter(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.healthCheck)
	s.router.Get("/ready", s.readyCheck)

	// API v1
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", s.createProject)
			r.Get("/", s.listProjects)
			r.Get("/{projectID}", s.getProject)
			r.Post("/{projectID}/analyze", s.analyzeProject)
			r.Get("/{projectID}/files", s.listFiles)
			r.Get("/{projectID}/findings", s.listFindings)
			r.Get("/{projectID}/jobs", s.listJobs)
		})

		r.Get("/jobs/{jobID}", s.getJob)
	})
}

// Health check handlers
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) readyCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
