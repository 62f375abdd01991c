// Package service provides domain services for usagemesh.
//
// UsageService produces the cluster-wide usage report for one feature.
package service

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/telemetry/logger"
)

// NodeStatsFetcher collects the per-node stats of one collection round.
//
// FetchNodeStats blocks until every node has answered or the round failed.
// Fan-out, per-node timeouts and routing are the fetcher's concern.
type NodeStatsFetcher interface {
	FetchNodeStats(ctx context.Context) ([]domain.NodeStatsResponse, error)
}

// FetcherFunc adapts a function to NodeStatsFetcher.
type FetcherFunc func(ctx context.Context) ([]domain.NodeStatsResponse, error)

// FetchNodeStats calls f(ctx).
func (f FetcherFunc) FetchNodeStats(ctx context.Context) ([]domain.NodeStatsResponse, error) {
	return f(ctx)
}

// UsageListener receives the outcome of a usage query.
// Exactly one of its methods is called, exactly once, per query.
type UsageListener interface {
	OnResponse(record domain.UsageRecord)
	OnFailure(err error)
}

// ListenerFuncs adapts a pair of functions to UsageListener.
// A nil function ignores the corresponding outcome.
type ListenerFuncs struct {
	Response func(record domain.UsageRecord)
	Failure  func(err error)
}

// OnResponse implements UsageListener.
func (l ListenerFuncs) OnResponse(record domain.UsageRecord) {
	if l.Response != nil {
		l.Response(record)
	}
}

// OnFailure implements UsageListener.
func (l ListenerFuncs) OnFailure(err error) {
	if l.Failure != nil {
		l.Failure(err)
	}
}

// UsageMetrics records query outcomes.
type UsageMetrics interface {
	ObserveQuery(feature string, state domain.QueryState, elapsed time.Duration)
	ObserveNodes(feature string, responded int)
}

type nopUsageMetrics struct{}

func (nopUsageMetrics) ObserveQuery(string, domain.QueryState, time.Duration) {}
func (nopUsageMetrics) ObserveNodes(string, int)                              {}

// UsageConfig is captured once when the service is built.
type UsageConfig struct {
	// Feature is the reported feature name (e.g. "sql").
	Feature string

	// Enabled is the feature's enablement flag for the process lifetime.
	Enabled bool

	// License returns the current license state. Nil means unlicensed.
	License LicenseSource

	// Fetcher collects per-node stats. Required when Enabled.
	Fetcher NodeStatsFetcher

	// Policy overrides the counter merge policy. Nil uses domain.DefaultMergePolicy.
	Policy *domain.MergePolicy

	// Logger defaults to logger.Default().
	Logger logger.Logger

	// Metrics defaults to a no-op recorder.
	Metrics UsageMetrics
}

// UsageService produces usage records. It is safe for concurrent use and
// keeps no per-query state.
type UsageService struct {
	feature string
	enabled bool
	license LicenseSource
	fetcher NodeStatsFetcher
	policy  domain.MergePolicy
	logger  logger.Logger
	metrics UsageMetrics
}

// NewUsageService creates a new UsageService.
func NewUsageService(cfg UsageConfig) (*UsageService, error) {
	if cfg.Feature == "" {
		return nil, domain.ErrMissingArgument.WithDetails("feature name is required")
	}
	if cfg.Enabled && cfg.Fetcher == nil {
		return nil, domain.ErrMissingArgument.WithDetails("stats fetcher is required for an enabled feature")
	}

	s := &UsageService{
		feature: cfg.Feature,
		enabled: cfg.Enabled,
		license: cfg.License,
		fetcher: cfg.Fetcher,
		policy:  domain.DefaultMergePolicy(),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if cfg.Policy != nil {
		s.policy = *cfg.Policy
	}
	if s.license == nil {
		s.license = func() LicenseState { return nil }
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	if s.metrics == nil {
		s.metrics = nopUsageMetrics{}
	}
	return s, nil
}

// Feature returns the reported feature name.
func (s *UsageService) Feature() string { return s.feature }

// Enabled returns the enablement flag captured at construction.
func (s *UsageService) Enabled() bool { return s.enabled }

// Availability evaluates the gate against the current license.
func (s *UsageService) Availability() Availability {
	return EvaluateAvailability(s.license(), s.feature, s.enabled)
}

// ============================================================================
// Usage Query
// ============================================================================

// ProduceUsage runs one usage query and reports its outcome to listener.
//
// A disabled feature is answered synchronously with empty stats and no fetch.
// An enabled feature triggers exactly one fetch on a separate goroutine;
// the merged stats are delivered through OnResponse, or the fetch error is
// handed to OnFailure as returned by the fetcher.
func (s *UsageService) ProduceUsage(ctx context.Context, listener UsageListener) {
	queryID := ulid.Make().String()
	q := &queryTrace{
		log:   s.logger.WithContext(ctx).With("feature", s.feature, "query_id", queryID),
		state: domain.QueryIdle,
	}

	// 1. Gate
	avail := s.Availability()

	// 2. Disabled: empty stats, no fetch
	if !avail.Enabled {
		q.enter(domain.QuerySkipped).Debug("usage query skipped", "available", avail.Available)
		s.metrics.ObserveQuery(s.feature, domain.QuerySkipped, 0)
		listener.OnResponse(domain.NewUsageRecord(avail.Available, false, domain.EmptyTree()))
		return
	}

	// 3. Enabled: fetch asynchronously
	q.enter(domain.QueryFetching).Debug("usage query started", "available", avail.Available)
	go s.collect(ctx, q, avail, listener)
}

func (s *UsageService) collect(ctx context.Context, q *queryTrace, avail Availability, listener UsageListener) {
	start := time.Now()

	responses, err := s.fetcher.FetchNodeStats(ctx)
	if err != nil {
		elapsed := time.Since(start)
		q.enter(domain.QueryFailed).Warn("usage query failed", "error", err, "elapsed", elapsed)
		s.metrics.ObserveQuery(s.feature, domain.QueryFailed, elapsed)
		listener.OnFailure(err)
		return
	}

	q.enter(domain.QueryMerging).Debug("merging node stats", "nodes", len(responses))
	record := domain.NewUsageRecord(avail.Available, true, s.merge(responses).ToTree())

	elapsed := time.Since(start)
	s.metrics.ObserveNodes(s.feature, len(responses))
	s.metrics.ObserveQuery(s.feature, domain.QueryDone, elapsed)
	q.enter(domain.QueryDone).Debug("usage query done", "elapsed", elapsed)
	listener.OnResponse(record)
}

// queryTrace follows one query through its states.
type queryTrace struct {
	log   logger.Logger
	state domain.QueryState
}

// enter moves the query to next and returns a logger tagged with it.
func (q *queryTrace) enter(next domain.QueryState) logger.Logger {
	if !q.state.CanTransition(next) {
		q.log.Error("invalid usage query transition", "from", q.state, "to", next)
	}
	q.state = next
	return q.log.With("state", next)
}

// merge drops absent counters and folds the rest with the service policy.
func (s *UsageService) merge(responses []domain.NodeStatsResponse) *domain.Counters {
	present := make([]*domain.Counters, 0, len(responses))
	for _, r := range responses {
		if r.Stats != nil {
			present = append(present, r.Stats)
		}
	}
	return domain.MergeCountersWith(s.policy, present...)
}

// usageResult carries one query outcome through a channel.
type usageResult struct {
	record domain.UsageRecord
	err    error
}

// Usage runs one usage query and waits for its outcome.
//
// Cancellation reaches the fetcher through ctx; Usage itself returns only
// once the query has completed.
func (s *UsageService) Usage(ctx context.Context) (domain.UsageRecord, error) {
	done := make(chan usageResult, 1)
	s.ProduceUsage(ctx, ListenerFuncs{
		Response: func(record domain.UsageRecord) { done <- usageResult{record: record} },
		Failure:  func(err error) { done <- usageResult{err: err} },
	})
	res := <-done
	return res.record, res.err
}
