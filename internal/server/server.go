// Package server exposes the question-answering pipeline over HTTP.
package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/kyleking/energy-expert/internal/config"
	"github.com/kyleking/energy-expert/internal/logging"
	"github.com/kyleking/energy-expert/internal/pipeline"
	"github.com/kyleking/energy-expert/internal/schema"
	"github.com/kyleking/energy-expert/internal/storage"
)

const (
	maxBodyBytes    = 64 << 10
	shutdownTimeout = 10 * time.Second
)

// Answerer runs the pipeline for one question
type Answerer interface {
	Run(ctx context.Context, question string) (*pipeline.Outcome, error)
}

// History is the part of the history store the HTTP surface needs
type History interface {
	ListEntries(ctx context.Context, limit int) ([]storage.Entry, error)
	SaveFeedback(ctx context.Context, id uuid.UUID, rating int, comment string) error
}

// Server routes HTTP requests to the pipeline
type Server struct {
	cfg      config.ServerConfig
	answerer Answerer
	catalog  schema.Catalog
	history  History
	router   chi.Router
}

// New creates a Server. history may be nil when recording is disabled.
func New(cfg config.ServerConfig, answerer Answerer, catalog schema.Catalog, history History) *Server {
	s := &Server{
		cfg:      cfg,
		answerer: answerer,
		catalog:  catalog,
		history:  history,
	}

	s.router = s.routes()

	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(RateLimiter(RateLimitConfig{
			RequestsPerSecond: s.cfg.RateLimitRPS,
			Burst:             s.cfg.RateLimitBurst,
		}))

		r.Post("/query", s.handleQuery)
		r.Get("/schema", s.handleSchema)
		r.Get("/history", s.handleHistory)
		r.Post("/history/{id}/feedback", s.handleFeedback)
	})

	return r
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logging.Infof("HTTP server listening on %s", s.cfg.Addr)

		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}

		return nil
	case <-ctx.Done():
	}

	logging.Infof("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
