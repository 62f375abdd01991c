// Package handler provides the health and readiness probes.
package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
)

// ProbeResponse is the body of GET /health and GET /ready.
type ProbeResponse struct {
	Status    string `json:"status"`
	NodeID    string `json:"node_id,omitempty"`
	Feature   string `json:"feature,omitempty"`
	UptimeSec int64  `json:"uptime_sec"`
}

func (h *Handler) probe(status string) ProbeResponse {
	p := ProbeResponse{
		Status:    status,
		NodeID:    h.cfg.NodeID,
		UptimeSec: int64(time.Since(h.cfg.Started).Seconds()),
	}
	if h.cfg.Usage != nil {
		p.Feature = h.cfg.Usage.Feature()
	}
	return p
}

// handleHealth handles GET /health. It answers as long as the process can
// serve HTTP at all.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.probe("healthy"))
}

// handleReady handles GET /ready. A node that has not joined the cluster or
// restored its checkpoint reports 503 with the reason.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Ready != nil {
		if err := h.cfg.Ready(); err != nil {
			h.writeError(w, r, http.StatusServiceUnavailable, domain.ErrServiceUnavailable.Code, err.Error())
			return
		}
	}
	h.writeJSON(w, r, http.StatusOK, h.probe("ready"))
}
