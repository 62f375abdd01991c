// Package localserver provides the local management handler.
package localserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/server/httpserver"
	"github.com/yndnr/usagemesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/usagemesh-go/internal/telemetry/logger"
)

// Actions are the operations only the local socket exposes. A nil action
// answers 503.
type Actions struct {
	// ReloadLicense re-reads the configured license file.
	ReloadLicense func() error

	// Checkpoint saves the node's counters.
	Checkpoint func(ctx context.Context) error

	// Shutdown starts a graceful shutdown and returns immediately.
	Shutdown func()
}

// ActionResponse is the response body of a local action.
type ActionResponse struct {
	Action string `json:"action"`
	Done   bool   `json:"done"`
}

type localHandler struct {
	actions Actions
	logger  *slog.Logger
}

// NewHandler serves the local actions and sends every other request to api.
func NewHandler(api http.Handler, actions Actions, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &localHandler{actions: actions, logger: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /local/v1/license/reload", h.reloadLicense)
	mux.HandleFunc("POST /local/v1/checkpoint", h.checkpoint)
	mux.HandleFunc("POST /local/v1/shutdown", h.shutdown)
	mux.Handle("/", api)

	return httpserver.Chain(mux,
		httpserver.Recover(log),
		httpserver.RequestID(),
		httpserver.Audit(log),
	)
}

func (h *localHandler) reloadLicense(w http.ResponseWriter, r *http.Request) {
	if h.actions.ReloadLicense == nil {
		h.unavailable(w, r, "license reload")
		return
	}
	if err := h.actions.ReloadLicense(); err != nil {
		h.fail(w, r, err)
		return
	}
	h.done(w, r, "license reload")
}

func (h *localHandler) checkpoint(w http.ResponseWriter, r *http.Request) {
	if h.actions.Checkpoint == nil {
		h.unavailable(w, r, "checkpoint")
		return
	}
	if err := h.actions.Checkpoint(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	h.done(w, r, "checkpoint")
}

func (h *localHandler) shutdown(w http.ResponseWriter, r *http.Request) {
	if h.actions.Shutdown == nil {
		h.unavailable(w, r, "shutdown")
		return
	}
	logger.L(r.Context()).Info("shutdown requested over local socket")
	h.done(w, r, "shutdown")
	h.actions.Shutdown()
}

func (h *localHandler) done(w http.ResponseWriter, r *http.Request, action string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := handler.NewResponse(logger.RequestIDFromContext(r.Context()), ActionResponse{Action: action, Done: true})
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *localHandler) unavailable(w http.ResponseWriter, r *http.Request, action string) {
	handler.WriteError(w, logger.RequestIDFromContext(r.Context()), http.StatusServiceUnavailable,
		domain.ErrServiceUnavailable.Code, action+" is not available on this node")
}

func (h *localHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrInternalServer.Code
	if domain.IsDomainError(err, "") {
		code = domain.GetErrorCode(err)
	} else {
		h.logger.Error("local action failed", "path", r.URL.Path, "error", err)
	}
	handler.WriteError(w, logger.RequestIDFromContext(r.Context()), handler.ErrorCodeToHTTPStatus(code), code, err.Error())
}
