// Package metric provides Prometheus metrics for usagemesh.
//
//   - prometheus.go: the Registry, its HTTP handler and the usage query metrics
//   - collector.go: scrape-time gauges for license, enablement and membership
//
// Metrics are exposed at /metrics under the "usagemesh" namespace.
package metric
