package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/urlfinder/internal/config"
	"github.com/JakeFAU/urlfinder/internal/executor"
	"github.com/JakeFAU/urlfinder/internal/metrics"
	"github.com/JakeFAU/urlfinder/internal/progress"
	"github.com/JakeFAU/urlfinder/internal/progress/sinks"
)

// BatchTracker answers progress queries for recent batches.
type BatchTracker interface {
	Get(id uuid.UUID) (sinks.BatchStatus, bool)
	List() []sinks.BatchStatus
}

// Server wires HTTP handlers to the resolver and progress plumbing.
type Server struct {
	router   chi.Router
	resolver executor.Resolver
	emitter  progress.Emitter
	tracker  BatchTracker
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. emitter and
// tracker may be nil.
func NewServer(
	res executor.Resolver,
	emitter progress.Emitter,
	tracker BatchTracker,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		resolver: res,
		emitter:  emitter,
		tracker:  tracker,
		cfg:      cfg,
		logger:   logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	if timeout := cfg.RequestTimeout(); timeout > 0 {
		r.Use(timeoutMiddleware(timeout))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/resolve", s.resolve)
		r.Route("/batches", func(r chi.Router) {
			r.Get("/", s.listBatches)
			r.Get("/{batch_id}", s.getBatch)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type backendLister interface {
	Backends() []string
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.resolver == nil {
		writeError(w, http.StatusServiceUnavailable, "resolver not configured")
		return
	}
	body := map[string]any{"status": "ready"}
	if lister, ok := s.resolver.(backendLister); ok {
		body["backends"] = lister.Backends()
	}
	writeJSON(w, http.StatusOK, body)
}
