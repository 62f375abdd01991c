// Package clusterserver provides the NodeStats RPC handler.
package clusterserver

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/telemetry/logger"
)

// StatsSource provides the local node's counters. Snapshot returns nil when
// nothing has been recorded.
type StatsSource interface {
	Snapshot() *domain.Counters
}

// Handler serves the NodeStats RPC for the local node.
type Handler struct {
	nodeID string
	source StatsSource
	logger *slog.Logger
}

// NewHandler creates a new RPC handler.
func NewHandler(nodeID string, source StatsSource, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		nodeID: nodeID,
		source: source,
		logger: logger,
	}
}

// Local returns the local node's stats response.
func (h *Handler) Local(withStats bool) domain.NodeStatsResponse {
	resp := domain.NodeStatsResponse{NodeID: h.nodeID}
	if withStats && h.source != nil {
		resp.Stats = h.source.Snapshot()
	}
	return resp
}

// NodeStats handles the NodeStats RPC.
func (h *Handler) NodeStats(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	resp := h.Local(includeStats(req.Msg))

	h.logger.Debug("node stats served",
		"from", logger.PeerFromContext(ctx),
		"include_stats", includeStats(req.Msg),
		"paths", resp.Stats.Len())

	msg, err := encodeNodeStats(resp)
	if err != nil {
		h.logger.Warn("node stats not encodable", "error", err)
		return nil, connect.NewError(connect.CodeOutOfRange, err)
	}
	return connect.NewResponse(msg), nil
}

// Mount returns the path prefix and handler of the cluster service.
func (h *Handler) Mount(opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(NodeStatsProcedure, connect.NewUnaryHandler(
		NodeStatsProcedure,
		h.NodeStats,
		opts...,
	))
	return "/" + ServiceName + "/", mux
}

func connectHandlerOptions(logger *slog.Logger) []connect.HandlerOption {
	return []connect.HandlerOption{
		connect.WithInterceptors(ServerInterceptors(logger)...),
	}
}
