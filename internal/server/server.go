// Package server exposes the playground service over HTTP for the editor:
// project and file routes under /api/v1 plus a websocket streaming the
// sandbox console.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"playground-go/internal/config"
	"playground-go/internal/playground"
)

// Sandboxes hands out the sandbox pipeline of a project.
type Sandboxes interface {
	Pipeline(projectID, template string) (*playground.Pipeline, error)

	// Running returns the pipeline if one exists, or nil.
	Running(projectID string) *playground.Pipeline

	Stop(projectID string) error
}

// Templates lists the starter templates a project can be created from.
type Templates interface {
	Names() []string
}

// Server routes HTTP requests to the playground service.
type Server struct {
	svc       *playground.Service
	sandboxes Sandboxes
	templates Templates
	auth      *Authenticator
	cfg       config.ServerConfig
	logger    playground.Logger
	router    chi.Router
}

// New builds a Server and its routes.
func New(svc *playground.Service, sandboxes Sandboxes, templates Templates, auth *Authenticator, cfg config.ServerConfig, logger playground.Logger) *Server {
	if logger == nil {
		logger = playground.NewNopLogger()
	}
	s := &Server{
		svc:       svc,
		sandboxes: sandboxes,
		templates: templates,
		auth:      auth,
		cfg:       cfg,
		logger:    logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Get("/templates", s.handleListTemplates)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.Post("/", s.handleCreateProject)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", s.handleGetProject)
				r.Put("/", s.handleUpdateProject)
				r.Delete("/", s.handleDeleteProject)
				r.Post("/duplicate", s.handleDuplicateProject)
				r.Put("/star", s.handleStarProject)

				r.Get("/tree", s.handleTree)
				r.Get("/mount", s.handleMount)

				r.Post("/files", s.handleAddFile)
				r.Put("/files/content", s.handleSaveFile)
				r.Put("/files/rename", s.handleRenameFile)
				r.Delete("/files", s.handleDeleteFile)

				r.Get("/console", s.handleConsole)
			})
		})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
