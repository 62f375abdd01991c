// Package handler provides the local stats endpoints.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/stats"
)

// maxRecordBody limits the POST /stats/v1/record body.
const maxRecordBody = 1 << 20

// handleRecordStats handles POST /stats/v1/record.
func (h *Handler) handleRecordStats(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Recorder == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, domain.ErrServiceUnavailable.Code, "stats recorder not configured")
		return
	}

	var req RecordStatsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBody)).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, domain.ErrBadRequest.Code, "invalid request body")
		return
	}
	if err := validateRecord(&req); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	rec := h.cfg.Recorder
	for path, n := range req.Counters {
		rec.Add(path, n)
	}
	for path, v := range req.Timings {
		rec.Observe(path, v)
	}
	for _, q := range req.Queries {
		rec.RecordQuery(stats.ParseClient(q.Client), q.Paging, q.Failed)
		if q.LatencyMs != nil {
			rec.Observe(stats.LatencyPath, *q.LatencyMs)
		}
	}
	for _, f := range req.Features {
		rec.RecordFeature(f)
	}

	h.writeJSON(w, r, http.StatusOK, RecordStatsResponse{
		Recorded: len(req.Counters) + len(req.Timings) + len(req.Queries) + len(req.Features),
		Paths:    rec.Len(),
	})
}

// handleLocalStats handles GET /stats/v1/local.
//
// format=flat adds the dotted-path counters next to the tree.
func (h *Handler) handleLocalStats(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Recorder == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, domain.ErrServiceUnavailable.Code, "stats recorder not configured")
		return
	}

	resp := LocalStatsResponse{
		NodeID: h.cfg.NodeID,
		Stats:  domain.EmptyTree(),
	}
	if snap := h.cfg.Recorder.Snapshot(); snap != nil {
		resp.Stats = snap.ToTree()
		if r.URL.Query().Get("format") == "flat" {
			resp.Counters = snap.ToMap()
		}
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

func validateRecord(req *RecordStatsRequest) error {
	for path, n := range req.Counters {
		if err := validatePath(path); err != nil {
			return err
		}
		if n < 0 {
			return domain.ErrInvalidArgument.WithDetailsf("counter %q: negative increment", path)
		}
		if isExtremeSegment(lastSegment(path)) {
			return domain.ErrInvalidArgument.WithDetailsf("counter %q: min and max leaves are reserved for timings", path)
		}
	}
	for path, v := range req.Timings {
		if err := validatePath(path); err != nil {
			return err
		}
		if v < 0 {
			return domain.ErrInvalidArgument.WithDetailsf("timing %q: negative sample", path)
		}
	}
	for _, q := range req.Queries {
		if q.LatencyMs != nil && *q.LatencyMs < 0 {
			return domain.ErrInvalidArgument.WithDetails("query latency_ms must not be negative")
		}
	}
	for _, f := range req.Features {
		if f == "" || strings.Contains(f, domain.PathSeparator) {
			return domain.ErrInvalidArgument.WithDetailsf("feature %q: not a single path segment", f)
		}
		if isExtremeSegment(f) {
			return domain.ErrInvalidArgument.WithDetailsf("feature %q: reserved name", f)
		}
	}
	return nil
}

// validatePath rejects empty paths and empty segments.
func validatePath(path string) error {
	if path == "" {
		return domain.ErrMissingArgument.WithDetails("counter path is required")
	}
	for _, seg := range strings.Split(path, domain.PathSeparator) {
		if seg == "" {
			return domain.ErrInvalidArgument.WithDetailsf("counter path %q has an empty segment", path)
		}
	}
	return nil
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, domain.PathSeparator); i >= 0 {
		return path[i+1:]
	}
	return path
}

// isExtremeSegment reports whether seg is merged as a min or max across
// nodes instead of being summed.
func isExtremeSegment(seg string) bool {
	return seg == domain.SuffixMin || seg == domain.SuffixMax
}
