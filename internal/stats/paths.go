// Package stats provides the well-known counter paths.
package stats

import "github.com/yndnr/usagemesh-go/internal/core/domain"

// Client identifies where a query came from.
type Client string

const (
	ClientREST   Client = "rest"
	ClientCLI    Client = "cli"
	ClientJDBC   Client = "jdbc"
	ClientODBC   Client = "odbc"
	ClientCanvas Client = "canvas"

	// ClientAll aggregates every client.
	ClientAll Client = "_all"
)

// Clients lists the known query clients, ClientAll excluded.
var Clients = []Client{ClientREST, ClientCLI, ClientJDBC, ClientODBC, ClientCanvas}

// ParseClient maps a client name to a Client. Unknown names map to ClientREST.
func ParseClient(s string) Client {
	for _, c := range Clients {
		if string(c) == s {
			return c
		}
	}
	return ClientREST
}

// Query metric names.
const (
	MetricTotal  = "total"
	MetricPaging = "paging"
	MetricFailed = "failed"
)

// Feature names counted under "features.".
const (
	FeatureCommand   = "command"
	FeatureGroupBy   = "groupby"
	FeatureHaving    = "having"
	FeatureJoin      = "join"
	FeatureLimit     = "limit"
	FeatureLocal     = "local"
	FeatureOrderBy   = "orderby"
	FeatureSubselect = "subselect"
	FeatureWhere     = "where"
)

// Features lists the known query features.
var Features = []string{
	FeatureCommand, FeatureGroupBy, FeatureHaving, FeatureJoin, FeatureLimit,
	FeatureLocal, FeatureOrderBy, FeatureSubselect, FeatureWhere,
}

// QueryPath returns "queries.<client>.<metric>".
func QueryPath(client Client, metric string) string {
	return "queries" + domain.PathSeparator + string(client) + domain.PathSeparator + metric
}

// FeaturePath returns "features.<name>".
func FeaturePath(name string) string {
	return "features" + domain.PathSeparator + name
}

// LatencyPath is the timing metric observed for every query.
const LatencyPath = "latency_ms"
