// Package handler provides the usage endpoint.
package handler

import (
	"context"
	"net/http"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
)

// handleUsage handles GET /usage/v1.
//
// The optional "feature" query parameter must name the served feature.
func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Usage == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, domain.ErrServiceUnavailable.Code, "usage service not configured")
		return
	}

	feature := h.cfg.Usage.Feature()
	if want := r.URL.Query().Get("feature"); want != "" && want != feature {
		h.handleServiceError(w, r, domain.ErrUnknownFeature.WithDetails(want))
		return
	}

	ctx := r.Context()
	if h.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.FetchTimeout)
		defer cancel()
	}

	record, err := h.cfg.Usage.Usage(ctx)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, UsageResponse{
		Feature:   feature,
		Available: record.Available,
		Enabled:   record.Enabled,
		Stats:     record.Stats,
	})
}
