// Package clusterserver provides the collection round over cluster members.
package clusterserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
)

// FailureObserver counts failed node requests.
type FailureObserver interface {
	ObserveNodeFailure(nodeID string)
}

type statsClient = connect.Client[structpb.Struct, structpb.Struct]

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// NodeID identifies the local node on outgoing requests.
	NodeID string

	// Members lists the nodes to ask.
	Members Membership

	// Local serves the local member without a network round trip.
	Local *Handler

	// HTTPClient is used for remote members. Defaults to a plain client.
	HTTPClient *http.Client

	// Scheme is "http" or "https".
	Scheme string

	NodeTimeout     time.Duration
	RequireAllNodes bool
	Metrics         FailureObserver
	Logger          *slog.Logger
}

// Fetcher runs collection rounds over the cluster membership.
type Fetcher struct {
	cfg FetcherConfig

	mu      sync.Mutex
	clients map[string]nodeClient
}

// nodeClient is a cached RPC client of one node.
type nodeClient struct {
	addr   string
	client *statsClient
}

// NewFetcher creates a new fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	if cfg.NodeTimeout <= 0 {
		cfg.NodeTimeout = DefaultNodeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Fetcher{
		cfg:     cfg,
		clients: make(map[string]nodeClient),
	}
}

type nodeResult struct {
	member Member
	resp   domain.NodeStatsResponse
	err    error
}

// FetchNodeStats asks every member for its stats and returns the responses
// sorted by node id. Failed nodes are logged and left out. The round fails
// when ctx ends first, when there are no members, or when any node failed
// and RequireAllNodes is set.
func (f *Fetcher) FetchNodeStats(ctx context.Context) ([]domain.NodeStatsResponse, error) {
	members := f.cfg.Members.Members()
	if len(members) == 0 {
		return nil, domain.ErrCollectionFailed.WithDetails("no cluster members")
	}
	f.pruneClients(members)

	results := make(chan nodeResult, len(members))
	var wg sync.WaitGroup
	for _, m := range members {
		wg.Add(1)
		go func(m Member) {
			defer wg.Done()
			resp, err := f.fetchOne(ctx, m)
			results <- nodeResult{member: m, resp: resp, err: err}
		}(m)
	}
	wg.Wait()
	close(results)

	if err := ctx.Err(); err != nil {
		return nil, domain.ErrCollectionFailed.WithDetails("collection round did not finish").WithCause(err)
	}

	responses := make([]domain.NodeStatsResponse, 0, len(members))
	var failures []error
	for r := range results {
		if r.err != nil {
			f.cfg.Logger.Warn("node stats request failed",
				"node_id", r.member.NodeID,
				"rpc_addr", r.member.RPCAddr,
				"error", r.err)
			if f.cfg.Metrics != nil {
				f.cfg.Metrics.ObserveNodeFailure(r.member.NodeID)
			}
			failures = append(failures, fmt.Errorf("node %s: %w", r.member.NodeID, r.err))
			continue
		}
		responses = append(responses, r.resp)
	}

	if len(failures) > 0 && f.cfg.RequireAllNodes {
		return nil, domain.ErrCollectionFailed.
			WithDetailsf("%d of %d nodes failed", len(failures), len(members)).
			WithCause(errors.Join(failures...))
	}

	sort.Slice(responses, func(i, j int) bool { return responses[i].NodeID < responses[j].NodeID })
	return responses, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, m Member) (domain.NodeStatsResponse, error) {
	if m.Local && f.cfg.Local != nil {
		return f.cfg.Local.Local(true), nil
	}

	nctx, cancel := context.WithTimeout(ctx, f.cfg.NodeTimeout)
	defer cancel()

	res, err := f.client(m).CallUnary(nctx, connect.NewRequest(newNodeStatsRequest(true)))
	if err != nil {
		return domain.NodeStatsResponse{}, err
	}
	resp, err := decodeNodeStats(res.Msg)
	if err != nil {
		return domain.NodeStatsResponse{}, domain.ErrNodeStatsUnavailable.WithCause(err)
	}
	if resp.NodeID == "" {
		resp.NodeID = m.NodeID
	}
	return resp, nil
}

// client returns the cached client of m, replacing it when m now
// advertises a different address.
func (f *Fetcher) client(m Member) *statsClient {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[m.NodeID]; ok && c.addr == m.RPCAddr {
		return c.client
	}
	c := connect.NewClient[structpb.Struct, structpb.Struct](
		f.cfg.HTTPClient,
		f.cfg.Scheme+"://"+m.RPCAddr+NodeStatsProcedure,
		connect.WithInterceptors(ClientInterceptors(f.cfg.NodeID, f.cfg.Logger)...),
	)
	f.clients[m.NodeID] = nodeClient{addr: m.RPCAddr, client: c}
	return c
}

// Forget drops the cached client of nodeID.
func (f *Fetcher) Forget(nodeID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.clients, nodeID)
}

// pruneClients drops clients of nodes no longer in the membership.
func (f *Fetcher) pruneClients(members []Member) {
	live := make(map[string]struct{}, len(members))
	for _, m := range members {
		live[m.NodeID] = struct{}{}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range f.clients {
		if _, ok := live[id]; !ok {
			delete(f.clients, id)
		}
	}
}
