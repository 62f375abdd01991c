// Package logger provides context-scoped logging.
package logger

import "context"

type ctxKey int

const (
	loggerCtxKey ctxKey = iota
	requestIDCtxKey
	peerCtxKey
)

// WithLogger stores l in ctx.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, l)
}

// FromContext returns the logger stored in ctx, or Default.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerCtxKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithRequestID stores the request ID of an HTTP call in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey, id)
}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey).(string)
	return id
}

// WithPeer stores the node ID of the cluster peer that issued an RPC.
func WithPeer(ctx context.Context, nodeID string) context.Context {
	return context.WithValue(ctx, peerCtxKey, nodeID)
}

// PeerFromContext returns the peer node ID stored in ctx, or "".
func PeerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(peerCtxKey).(string)
	return id
}

// L returns the logger from ctx with request_id and peer attached when
// present.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)
	var attrs []any
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if peer := PeerFromContext(ctx); peer != "" {
		attrs = append(attrs, "peer", peer)
	}
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}
