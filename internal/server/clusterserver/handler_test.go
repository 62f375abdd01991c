// Package clusterserver tests the NodeStats RPC handler.
package clusterserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/telemetry/logger"
)

// staticSource serves a fixed counter set.
type staticSource struct {
	counters *domain.Counters
	calls    atomic.Int32
}

func (s *staticSource) Snapshot() *domain.Counters {
	s.calls.Add(1)
	if s.counters == nil {
		return nil
	}
	return s.counters.Clone()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startNode serves a NodeStats handler and returns its RPC address.
func startNode(t *testing.T, nodeID string, counters map[string]int64) string {
	t.Helper()
	var c *domain.Counters
	if counters != nil {
		c = domain.CountersFromMap(counters)
	}
	h := NewHandler(nodeID, &staticSource{counters: c}, testLogger())

	mux := http.NewServeMux()
	mux.Handle(h.Mount(connectHandlerOptions(testLogger())...))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestHandler_NodeStats(t *testing.T) {
	addr := startNode(t, "umnode-a", map[string]int64{"features.join": 2})

	client := connect.NewClient[structpb.Struct, structpb.Struct](
		http.DefaultClient,
		"http://"+addr+NodeStatsProcedure,
		connect.WithInterceptors(ClientInterceptors("umnode-caller", testLogger())...),
	)

	t.Run("include stats", func(t *testing.T) {
		res, err := client.CallUnary(context.Background(), connect.NewRequest(newNodeStatsRequest(true)))
		if err != nil {
			t.Fatalf("CallUnary() error = %v", err)
		}
		resp, err := decodeNodeStats(res.Msg)
		if err != nil {
			t.Fatalf("decodeNodeStats() error = %v", err)
		}
		if resp.NodeID != "umnode-a" {
			t.Errorf("NodeID = %q, want umnode-a", resp.NodeID)
		}
		if v, _ := resp.Stats.Get("features.join"); v != 2 {
			t.Errorf("features.join = %d, want 2", v)
		}
	})

	t.Run("without stats", func(t *testing.T) {
		res, err := client.CallUnary(context.Background(), connect.NewRequest(newNodeStatsRequest(false)))
		if err != nil {
			t.Fatalf("CallUnary() error = %v", err)
		}
		resp, err := decodeNodeStats(res.Msg)
		if err != nil {
			t.Fatalf("decodeNodeStats() error = %v", err)
		}
		if resp.Stats != nil {
			t.Errorf("Stats = %v, want nil", resp.Stats.ToMap())
		}
	})
}

func TestHandler_Local(t *testing.T) {
	src := &staticSource{}
	h := NewHandler("umnode-a", src, nil)

	resp := h.Local(true)
	if resp.NodeID != "umnode-a" || resp.Stats != nil {
		t.Errorf("Local(true) = %+v, want absent stats", resp)
	}
	if src.calls.Load() != 1 {
		t.Errorf("Snapshot calls = %d, want 1", src.calls.Load())
	}

	h.Local(false)
	if src.calls.Load() != 1 {
		t.Error("Local(false) should not read the stats source")
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	panicking := connect.NewUnaryHandler(
		NodeStatsProcedure,
		func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
			panic("boom")
		},
		connectHandlerOptions(testLogger())...,
	)
	srv := httptest.NewServer(panicking)
	defer srv.Close()

	client := connect.NewClient[structpb.Struct, structpb.Struct](http.DefaultClient, srv.URL+NodeStatsProcedure)
	_, err := client.CallUnary(context.Background(), connect.NewRequest(newNodeStatsRequest(true)))
	if connect.CodeOf(err) != connect.CodeInternal {
		t.Errorf("code = %v, want %v", connect.CodeOf(err), connect.CodeInternal)
	}
}

func TestServerInterceptors_Peer(t *testing.T) {
	var seen atomic.Value
	h := connect.NewUnaryHandler(
		NodeStatsProcedure,
		func(ctx context.Context, _ *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
			seen.Store(logger.PeerFromContext(ctx))
			msg, err := encodeNodeStats(domain.NodeStatsResponse{NodeID: "umnode-a"})
			if err != nil {
				return nil, err
			}
			return connect.NewResponse(msg), nil
		},
		connectHandlerOptions(testLogger())...,
	)
	srv := httptest.NewServer(h)
	defer srv.Close()

	tests := []struct {
		name   string
		caller string
		want   string
	}{
		{"stamped caller", "umnode-caller", "umnode-caller"},
		{"anonymous caller", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := connect.NewClient[structpb.Struct, structpb.Struct](
				http.DefaultClient,
				srv.URL+NodeStatsProcedure,
				connect.WithInterceptors(ClientInterceptors(tt.caller, testLogger())...),
			)
			if _, err := client.CallUnary(context.Background(), connect.NewRequest(newNodeStatsRequest(false))); err != nil {
				t.Fatalf("CallUnary() error = %v", err)
			}
			if got, _ := seen.Load().(string); got != tt.want {
				t.Errorf("peer = %q, want %q", got, tt.want)
			}
		})
	}
}
