package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"sec-agent/internal/metrics"
	"sec-agent/internal/middleware"
)

// RouterConfig holds the router level settings.
type RouterConfig struct {
	CORSAllowedOrigins []string
	RateLimit          middleware.RateLimitConfig
	// RequestTimeout bounds each API request when non-zero.
	RequestTimeout time.Duration
}

// NewRouter mounts h under chi with the standard middleware stack. The rate
// limiter sweeper stops when ctx is done.
func NewRouter(ctx context.Context, h *Handler, cfg RouterConfig, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger, m))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit.RequestsPerSecond > 0 {
			r.Use(middleware.NewRateLimiter(ctx, cfg.RateLimit).Handler)
		}
		if cfg.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
		}
		r.Post("/security/analyze", h.Analyze)
		r.Post("/security/query", h.Query)
		r.Get("/security/scheduled_report/{type}", h.ScheduledReport)
	})
	return r
}
