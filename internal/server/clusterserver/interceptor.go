// Package clusterserver provides the RPC interceptors.
package clusterserver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/yndnr/usagemesh-go/internal/telemetry/logger"
)

var errPanic = errors.New("internal server error: panic recovered")

// ServerInterceptors returns the handler-side chain: panic recovery, then
// the caller's node id moved from the request header into the context,
// then logging.
func ServerInterceptors(log *slog.Logger) []connect.Interceptor {
	if log == nil {
		log = slog.Default()
	}
	return []connect.Interceptor{
		recoverPanics(log),
		identifyPeer(),
		logCalls(log, "server"),
	}
}

// ClientInterceptors returns the client-side chain used by the fetcher.
// Every request carries nodeID so peers can attribute fan-out calls.
func ClientInterceptors(nodeID string, log *slog.Logger) []connect.Interceptor {
	if log == nil {
		log = slog.Default()
	}
	return []connect.Interceptor{
		stampNodeID(nodeID),
		logCalls(log, "client"),
	}
}

func recoverPanics(log *slog.Logger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (resp connect.AnyResponse, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("cluster rpc panic recovered",
						"method", req.Spec().Procedure,
						"peer", req.Header().Get(NodeIDHeader),
						"panic", r)
					resp, err = nil, connect.NewError(connect.CodeInternal, errPanic)
				}
			}()
			return next(ctx, req)
		}
	}
}

func identifyPeer() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if id := req.Header().Get(NodeIDHeader); id != "" {
				ctx = logger.WithPeer(ctx, id)
			}
			return next(ctx, req)
		}
	}
}

func stampNodeID(nodeID string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient && nodeID != "" {
				req.Header().Set(NodeIDHeader, nodeID)
			}
			return next(ctx, req)
		}
	}
}

// logCalls logs failures at warn and successful calls at debug.
func logCalls(log *slog.Logger, side string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			attrs := []any{
				"side", side,
				"method", req.Spec().Procedure,
				"addr", req.Peer().Addr,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if peer := logger.PeerFromContext(ctx); peer != "" {
				attrs = append(attrs, "peer", peer)
			}
			if err != nil {
				log.Warn("cluster rpc failed", append(attrs, "code", connect.CodeOf(err).String(), "error", err)...)
			} else {
				log.Debug("cluster rpc", attrs...)
			}
			return resp, err
		}
	}
}
