// Package handler provides HTTP request handlers.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/core/service"
	"github.com/yndnr/usagemesh-go/internal/license"
	"github.com/yndnr/usagemesh-go/internal/server/clusterserver"
	"github.com/yndnr/usagemesh-go/internal/stats"
	"github.com/yndnr/usagemesh-go/internal/telemetry/logger"
)

// UsageProducer answers usage queries for one feature.
type UsageProducer interface {
	Feature() string
	Availability() service.Availability
	Usage(ctx context.Context) (domain.UsageRecord, error)
}

// MemberLister lists the current cluster members.
type MemberLister interface {
	Members() []clusterserver.Member
}

// CheckpointLister lists the node ids with a saved checkpoint.
type CheckpointLister interface {
	Nodes(ctx context.Context) ([]string, error)
}

// Config wires the handler to its collaborators.
type Config struct {
	NodeID   string
	Usage    UsageProducer
	Recorder *stats.Recorder
	Cluster  MemberLister

	// Checkpoints feeds the status summary. Optional.
	Checkpoints CheckpointLister

	// License returns the installed license, or nil.
	License func() *license.State

	// Ready reports whether the node can serve traffic. Nil means always ready.
	Ready func() error

	// Metrics serves GET /metrics. Nil leaves the route unregistered.
	Metrics http.Handler

	// FetchTimeout bounds one usage query. Zero means no extra deadline.
	FetchTimeout time.Duration

	Logger  *slog.Logger
	Started time.Time
}

// Handler is the main HTTP handler that routes requests to the endpoint handlers.
type Handler struct {
	cfg    Config
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a new Handler.
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Started.IsZero() {
		cfg.Started = time.Now()
	}
	if cfg.License == nil {
		cfg.License = func() *license.State { return nil }
	}

	h := &Handler{
		cfg:    cfg,
		logger: cfg.Logger,
		mux:    http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)
	if h.cfg.Metrics != nil {
		h.mux.Handle("GET /metrics", h.cfg.Metrics)
	}

	// Usage
	h.mux.HandleFunc("GET /usage/v1", h.handleUsage)

	// Local stats
	h.mux.HandleFunc("POST /stats/v1/record", h.handleRecordStats)
	h.mux.HandleFunc("GET /stats/v1/local", h.handleLocalStats)

	// Admin
	h.mux.HandleFunc("GET /admin/v1/cluster/nodes", h.handleClusterNodes)
	h.mux.HandleFunc("GET /admin/v1/license", h.handleLicense)
	h.mux.HandleFunc("GET /admin/v1/status/summary", h.handleStatusSummary)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := logger.RequestIDFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(requestID, data)); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	WriteError(w, logger.RequestIDFromContext(r.Context()), status, code, message)
}

// WriteError writes an error envelope. Middleware outside this package
// uses it so every error shares one shape.
func WriteError(w http.ResponseWriter, requestID string, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(requestID, code, message))
}

// handleServiceError converts service errors to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		h.logger.Debug("request failed",
			"code", de.Code,
			"area", de.Area(),
			"path", r.URL.Path,
			"request_id", logger.RequestIDFromContext(r.Context()))
		h.writeError(w, r, de.Status(), de.Code, err.Error())
		return
	}

	logger.L(r.Context()).Error("internal error", "error", err, "path", r.URL.Path)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternalServer.Code, domain.ErrInternalServer.Message)
}

// ErrorCodeToHTTPStatus maps error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	return domain.StatusForCode(code)
}
