// Package metric provides Prometheus metrics for usagemesh.
package metric

import "github.com/prometheus/client_golang/prometheus"

// FeatureState reports the live state exported by Collector.
type FeatureState struct {
	Feature string
	Enabled bool

	// Allowed reports whether the installed license grants the feature.
	Allowed func() bool

	// Members reports the current cluster size.
	Members func() int
}

// Collector exports gauges evaluated at scrape time.
type Collector struct {
	state FeatureState

	allowedDesc *prometheus.Desc
	enabledDesc *prometheus.Desc
	membersDesc *prometheus.Desc
}

// NewCollector creates a collector for state.
func NewCollector(state FeatureState) *Collector {
	return &Collector{
		state: state,
		allowedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "license", "feature_allowed"),
			"Whether the installed license grants the feature (1 or 0)",
			[]string{"feature"}, nil,
		),
		enabledDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "feature_enabled"),
			"Whether the feature is enabled on this node (1 or 0)",
			[]string{"feature"}, nil,
		),
		membersDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cluster", "members"),
			"Number of known cluster members",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.allowedDesc
	ch <- c.enabledDesc
	ch <- c.membersDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	allowed := false
	if c.state.Allowed != nil {
		allowed = c.state.Allowed()
	}
	ch <- prometheus.MustNewConstMetric(c.allowedDesc, prometheus.GaugeValue, boolValue(allowed), c.state.Feature)
	ch <- prometheus.MustNewConstMetric(c.enabledDesc, prometheus.GaugeValue, boolValue(c.state.Enabled), c.state.Feature)

	members := 0
	if c.state.Members != nil {
		members = c.state.Members()
	}
	ch <- prometheus.MustNewConstMetric(c.membersDesc, prometheus.GaugeValue, float64(members))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
