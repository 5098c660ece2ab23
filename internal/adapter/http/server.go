package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/incident-radar-service/internal/domain"
	"github.com/couchcryptid/incident-radar-service/internal/observability"
	"github.com/couchcryptid/incident-radar-service/internal/radar"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:generate mockgen -source=server.go -destination=mocks/mock_runtime.go -package=mocks Runtime

// Runtime is the control surface of the radar exposed over HTTP.
type Runtime interface {
	State(ctx context.Context) (radar.Snapshot, error)
	PushPosition(ctx context.Context, s domain.Sample) error
	Create(ctx context.Context, d radar.Draft) (domain.Incident, error)
	HandleAlert(ctx context.Context, id string, action radar.AlertAction) error
	SetCategories(ctx context.Context, categories []domain.Category) error
	SetSound(ctx context.Context, enabled bool) error
	CheckReadiness(ctx context.Context) error
}

// Options configure the control API.
type Options struct {
	// RateLimit is the sustained request rate allowed per client on /api routes.
	RateLimit float64
	RateBurst int
}

// Server exposes health, readiness and metrics endpoints plus the radar
// control API under /api.
type Server struct {
	httpServer *http.Server
	limiter    *clientLimiter
	logger     *slog.Logger
}

// NewServer creates an HTTP server for rt.
func NewServer(addr string, rt Runtime, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 10
	}

	s := &Server{
		limiter: newClientLimiter(opts.RateLimit, opts.RateBurst, metrics, logger),
		logger:  logger,
	}
	h := &handlers{rt: rt, validate: newValidator(), logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(rt))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(s.limiter.middleware)

		api.Get("/state", h.state)
		api.Post("/position", h.position)
		api.Post("/occurrences", h.create)
		api.Post("/alerts/{id}/{action}", h.alert)
		api.Put("/categories", h.categories)
		api.Put("/sound", h.sound)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.close()
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
