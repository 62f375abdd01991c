// Package httpserver provides HTTP routing.
package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/usagemesh-go/internal/server/httpserver/handler"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler serves every route.
	Handler *handler.Handler

	Logger *slog.Logger

	// Metrics records per-request metrics. Nil disables them.
	Metrics RequestObserver

	// RateLimit is requests per second per client IP. Zero disables it.
	RateLimit float64
	RateBurst int

	// EnableAudit enables the access log.
	EnableAudit bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		RateLimit:   100,
		RateBurst:   200,
		EnableAudit: true,
	}
}

// NewRouter creates the HTTP router with all routes and middleware.
//
// Probes and /metrics skip rate limiting and the access log.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	var h http.Handler = cfg.Handler

	if cfg.Metrics != nil {
		h = Metrics(cfg.Metrics)(h)
	}

	probes := Chain(h, Recover(log), RequestID())

	api := []Middleware{Recover(log), RequestID()}
	if cfg.RateLimit > 0 {
		api = append(api, RateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	if cfg.EnableAudit {
		api = append(api, Audit(log))
	}
	business := Chain(h, api...)

	mux := http.NewServeMux()
	mux.Handle("GET /health", probes)
	mux.Handle("GET /ready", probes)
	mux.Handle("GET /metrics", probes)

	mux.Handle("GET /usage/v1", business)
	mux.Handle("POST /stats/v1/record", business)
	mux.Handle("GET /stats/v1/local", business)

	mux.Handle("GET /admin/v1/cluster/nodes", business)
	mux.Handle("GET /admin/v1/license", business)
	mux.Handle("GET /admin/v1/status/summary", business)

	return mux
}
