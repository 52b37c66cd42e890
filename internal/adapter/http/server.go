package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/wastewater-dashboard/internal/domain"
	"github.com/couchcryptid/wastewater-dashboard/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DashboardBuilder produces the dashboard for a date window.
// It is implemented by *pipeline.Pipeline.
type DashboardBuilder interface {
	Build(ctx context.Context, window domain.DateWindow) (*pipeline.Dashboard, error)
	DefaultWindow() domain.DateWindow
}

// Server exposes the dashboard page, its JSON, chart and CSV views, and the
// health, readiness and metrics endpoints.
type Server struct {
	httpServer *http.Server
	dashboards DashboardBuilder
	logger     *slog.Logger
}

// NewServer creates an HTTP server with all dashboard and operational routes.
func NewServer(addr string, dashboards DashboardBuilder, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			// Long enough for both sheet downloads plus retries.
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		dashboards: dashboards,
		logger:     logger,
	}

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(requestLogger(logger))
		r.Get("/", s.handlePage)
		r.Get("/api/dashboard", s.handleAPI)
		r.Get("/chart.png", s.handleChart)
		r.Get("/dados_carga_viral.csv", s.handleExport)
	})

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
