// Package handler provides the admin endpoints.
package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/infra/buildinfo"
	"github.com/yndnr/usagemesh-go/internal/server/clusterserver"
	"github.com/yndnr/usagemesh-go/internal/telemetry/logger"
)

// handleClusterNodes handles GET /admin/v1/cluster/nodes.
func (h *Handler) handleClusterNodes(w http.ResponseWriter, r *http.Request) {
	members := h.members()
	h.writeJSON(w, r, http.StatusOK, ClusterNodesResponse{
		NodeID:  h.cfg.NodeID,
		Members: members,
		Count:   len(members),
	})
}

// handleLicense handles GET /admin/v1/license.
func (h *Handler) handleLicense(w http.ResponseWriter, r *http.Request) {
	state := h.cfg.License()
	if state == nil {
		h.handleServiceError(w, r, domain.ErrLicenseNotLoaded)
		return
	}

	resp := LicenseResponse{Summary: state.Summary()}
	if h.cfg.Usage != nil {
		resp.Feature = h.cfg.Usage.Feature()
		resp.FeatureAllowed = state.IsFeatureAllowed(resp.Feature)
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleStatusSummary handles GET /admin/v1/status/summary.
func (h *Handler) handleStatusSummary(w http.ResponseWriter, r *http.Request) {
	sum := StatusSummary{
		Info:          buildinfo.Get(),
		NodeID:        h.cfg.NodeID,
		Licensed:      h.cfg.License() != nil,
		Members:       len(h.members()),
		StartedAt:     h.cfg.Started.UTC(),
		UptimeSeconds: int64(time.Since(h.cfg.Started).Seconds()),
	}
	if h.cfg.Usage != nil {
		avail := h.cfg.Usage.Availability()
		sum.Feature = h.cfg.Usage.Feature()
		sum.Available = avail.Available
		sum.Enabled = avail.Enabled
	}
	if h.cfg.Recorder != nil {
		sum.LocalPaths = h.cfg.Recorder.Len()
	}
	if h.cfg.Checkpoints != nil {
		nodes, err := h.cfg.Checkpoints.Nodes(r.Context())
		if err != nil {
			logger.L(r.Context()).Warn("list checkpoints failed", "error", err)
		} else {
			sum.Checkpointed = nodes
		}
	}
	h.writeJSON(w, r, http.StatusOK, sum)
}

func (h *Handler) members() []clusterserver.Member {
	if h.cfg.Cluster == nil {
		return []clusterserver.Member{}
	}
	members := h.cfg.Cluster.Members()
	if members == nil {
		members = []clusterserver.Member{}
	}
	return members
}
