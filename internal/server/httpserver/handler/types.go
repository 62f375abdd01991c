// Package handler provides request and response types.
package handler

import (
	"time"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/infra/buildinfo"
	"github.com/yndnr/usagemesh-go/internal/license"
	"github.com/yndnr/usagemesh-go/internal/server/clusterserver"
)

// CodeOK is the code of every successful response.
const CodeOK = "OK"

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      CodeOK,
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// UsageResponse is the response body for GET /usage/v1.
type UsageResponse struct {
	Feature   string      `json:"feature"`
	Available bool        `json:"available"`
	Enabled   bool        `json:"enabled"`
	Stats     domain.Tree `json:"stats"`
}

// QueryRecord describes one executed query.
type QueryRecord struct {
	Client    string `json:"client"`
	Paging    bool   `json:"paging,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
	LatencyMs *int64 `json:"latency_ms,omitempty"`
}

// RecordStatsRequest is the request body for POST /stats/v1/record.
type RecordStatsRequest struct {
	// Counters are added to the counter at each path.
	Counters map[string]int64 `json:"counters,omitempty"`

	// Timings are observed as samples at each path.
	Timings map[string]int64 `json:"timings,omitempty"`

	Queries  []QueryRecord `json:"queries,omitempty"`
	Features []string      `json:"features,omitempty"`
}

// RecordStatsResponse is the response body for POST /stats/v1/record.
type RecordStatsResponse struct {
	Recorded int `json:"recorded"`
	Paths    int `json:"paths"`
}

// LocalStatsResponse is the response body for GET /stats/v1/local.
type LocalStatsResponse struct {
	NodeID   string           `json:"node_id"`
	Stats    domain.Tree      `json:"stats"`
	Counters map[string]int64 `json:"counters,omitempty"`
}

// ClusterNodesResponse is the response body for GET /admin/v1/cluster/nodes.
type ClusterNodesResponse struct {
	NodeID  string                 `json:"node_id"`
	Members []clusterserver.Member `json:"members"`
	Count   int                    `json:"count"`
}

// LicenseResponse is the response body for GET /admin/v1/license.
type LicenseResponse struct {
	license.Summary
	Feature        string `json:"feature"`
	FeatureAllowed bool   `json:"feature_allowed"`
}

// StatusSummary is the response body for GET /admin/v1/status/summary.
type StatusSummary struct {
	buildinfo.Info
	NodeID        string    `json:"node_id"`
	Feature       string    `json:"feature"`
	Available     bool      `json:"available"`
	Enabled       bool      `json:"enabled"`
	Licensed      bool      `json:"licensed"`
	Members       int       `json:"members"`
	LocalPaths    int       `json:"local_paths"`
	Checkpointed  []string  `json:"checkpointed_nodes,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds int64     `json:"uptime_seconds"`
}
