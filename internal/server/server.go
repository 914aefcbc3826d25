// Package server exposes the project bootstrap, analysis and report operations over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/techopsonedev/onedev/apimodels"
	"github.com/techopsonedev/onedev/internal/analyzer"
	"github.com/techopsonedev/onedev/internal/config"
	"github.com/techopsonedev/onedev/internal/gitlab"
	"github.com/techopsonedev/onedev/internal/pipeline"
	"github.com/techopsonedev/onedev/internal/readme"
	"github.com/techopsonedev/onedev/internal/report"
)

// GitLab is the subset of *gitlab.Client the handlers use.
type GitLab interface {
	ValidateToken(ctx context.Context) (*apimodels.User, error)
	CreateProject(ctx context.Context, name, description, branch string) (*apimodels.Project, error)
	CommitFiles(ctx context.Context, projectID int, branch, message string, files []gitlab.File) (*apimodels.Commit, error)
	TriggerPipeline(ctx context.Context, projectID int, ref string) (*apimodels.Pipeline, error)
}

// GitLabFactory builds a client for the token of one request.
type GitLabFactory func(token string) (GitLab, error)

type Summarizer interface {
	Summarize(ctx context.Context, project, pipeline string) analyzer.Summary
}

// Component status values reported by /api/health.
const (
	StatusConnected = "connected"
	StatusDemo      = "demo"
)

type Server struct {
	cfg        *config.Config
	server     *http.Server
	gitlab     GitLabFactory
	summarizer Summarizer
	builder    *pipeline.Builder
	readme     *readme.Generator
	report     *report.Renderer

	version   string
	storage   string
	inference string
	now       func() time.Time
}

type Option func(*Server)

func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithComponentStatus sets the storage and inference status shown by the
// health endpoint.
func WithComponentStatus(storage, inference string) Option {
	return func(s *Server) {
		s.storage = storage
		s.inference = inference
	}
}

func New(cfg *config.Config, gitlab GitLabFactory, summarizer Summarizer, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		gitlab:     gitlab,
		summarizer: summarizer,
		builder:    pipeline.NewBuilder(&cfg.Pipeline, &cfg.Storage, cfg.GitLab.GroupDisplayName),
		readme:     readme.NewGenerator(&cfg.GitLab, &cfg.Storage, &cfg.Pipeline),
		report:     report.NewRenderer(&cfg.Report, cfg.GitLab.GroupDisplayName),
		version:    "dev",
		storage:    StatusDemo,
		inference:  StatusDemo,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "PUT", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

		r.Post("/auth/gitlab", s.handleAuth)
		r.Route("/projects", func(r chi.Router) {
			r.Post("/create-only", s.handleCreateProject)
			r.Post("/generate-yml", s.handleGenerate)
			r.Post("/preview-yml", s.handlePreview)
			r.Post("/trigger-pipeline", s.handleTrigger)
		})
		r.Post("/ai/analyze/{projectID}", s.handleAnalyze)
		r.Get("/reports/pdf/{projectID}", s.handleReport)
		r.Get("/health", s.handleHealth)
	})

	r.Handle("/*", http.FileServer(http.Dir(s.cfg.Server.StaticDir)))
	return r
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response wrapper to capture status code
		rw := &responseWriter{ResponseWriter: w}

		next.ServeHTTP(rw, r)

		slog.Info("HTTP request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) Run() error {
	// Create a channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "address", s.server.Addr, "version", s.version)
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info("Starting shutdown", "signal", sig)

		// Give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	return nil
}

// Custom response writer to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}
