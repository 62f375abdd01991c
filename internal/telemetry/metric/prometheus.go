// Package metric provides Prometheus metrics for usagemesh.
package metric

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
)

const namespace = "usagemesh"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Usage metrics
	UsageQueries        *prometheus.CounterVec
	UsageQueryDuration  *prometheus.HistogramVec
	UsageNodesResponded *prometheus.GaugeVec

	// Collection metrics
	NodeFetchFailures *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with the application metrics plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		UsageQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "queries_total",
			Help:      "Usage queries by final state",
		}, []string{"feature", "state"}),

		UsageQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "query_duration_seconds",
			Help:      "Time spent collecting and merging node stats",
			Buckets:   prometheus.DefBuckets,
		}, []string{"feature"}),

		UsageNodesResponded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "nodes_responded",
			Help:      "Number of nodes that answered the last collection round",
		}, []string{"feature"}),

		NodeFetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stats",
			Name:      "fetch_node_failures_total",
			Help:      "Node stats requests that failed or timed out",
		}, []string{"node"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.UsageQueries,
		r.UsageQueryDuration,
		r.UsageNodesResponded,
		r.NodeFetchFailures,
		r.RequestsTotal,
		r.RequestDuration,
	)
	return r
}

var (
	globalOnce     sync.Once
	globalRegistry *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// Handler returns the /metrics handler of the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registerer exposes the underlying registry for components that register
// their own metrics.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveQuery records the outcome of one usage query.
func (r *Registry) ObserveQuery(feature string, state domain.QueryState, elapsed time.Duration) {
	r.UsageQueries.WithLabelValues(feature, string(state)).Inc()
	if state != domain.QuerySkipped {
		r.UsageQueryDuration.WithLabelValues(feature).Observe(elapsed.Seconds())
	}
}

// ObserveNodes records how many nodes answered a collection round.
func (r *Registry) ObserveNodes(feature string, responded int) {
	r.UsageNodesResponded.WithLabelValues(feature).Set(float64(responded))
}

// ObserveNodeFailure counts a failed node stats request.
func (r *Registry) ObserveNodeFailure(nodeID string) {
	r.NodeFetchFailures.WithLabelValues(nodeID).Inc()
}

// ObserveRequest records one HTTP request.
func (r *Registry) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	r.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.RequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
