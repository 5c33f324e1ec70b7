// Package httptransport assembles the public router. Handlers register their
// own routes; this package only owns the shared middleware stack.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vcissuer/internal/platform/middleware"
)

const defaultRequestTimeout = 30 * time.Second

// Routes is implemented by every feature handler.
type Routes interface {
	Register(r chi.Router)
}

type RouterConfig struct {
	RequestTimeout time.Duration
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(cfg RouterConfig, logger *slog.Logger, routes ...Routes) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}
	for _, routes := range routes {
		routes.Register(r)
	}
	return r
}
