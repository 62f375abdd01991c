// Package domain defines the core domain models for usagemesh.
package domain

import "encoding/json"

// NodeStatsResponse is one node's answer to a stats collection round.
//
// Stats is nil when the node had nothing to report.
type NodeStatsResponse struct {
	NodeID string
	Stats  *Counters
}

// UsageRecord is the usage report for one feature.
//
// Stats is always a node (possibly empty), never a leaf.
type UsageRecord struct {
	Available bool `json:"available"`
	Enabled   bool `json:"enabled"`
	Stats     Tree `json:"stats"`
}

// NewUsageRecord builds a record. A leaf stats value is wrapped so the
// record always exposes a mapping.
func NewUsageRecord(available, enabled bool, stats Tree) UsageRecord {
	if stats.IsLeaf() {
		stats = Node(map[string]Tree{LeafValueKey: stats})
	}
	if stats.children == nil {
		stats = EmptyTree()
	}
	return UsageRecord{
		Available: available,
		Enabled:   enabled,
		Stats:     stats,
	}
}

// Equal reports whether both records carry the same flags and stats.
func (r UsageRecord) Equal(other UsageRecord) bool {
	return r.Available == other.Available &&
		r.Enabled == other.Enabled &&
		r.Stats.Equal(other.Stats)
}

// UnmarshalJSON decodes a record and normalizes missing stats to an empty mapping.
func (r *UsageRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		Available bool            `json:"available"`
		Enabled   bool            `json:"enabled"`
		Stats     json.RawMessage `json:"stats"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	stats := EmptyTree()
	if len(raw.Stats) > 0 && string(raw.Stats) != "null" {
		if err := stats.UnmarshalJSON(raw.Stats); err != nil {
			return err
		}
	}
	*r = NewUsageRecord(raw.Available, raw.Enabled, stats)
	return nil
}

// QueryState is the lifecycle state of a single usage query.
type QueryState string

const (
	QueryIdle     QueryState = "idle"
	QuerySkipped  QueryState = "skipped"
	QueryFetching QueryState = "fetching"
	QueryMerging  QueryState = "merging"
	QueryDone     QueryState = "done"
	QueryFailed   QueryState = "failed"
)

// IsTerminal reports whether no further transition can happen.
func (s QueryState) IsTerminal() bool {
	switch s {
	case QuerySkipped, QueryDone, QueryFailed:
		return true
	default:
		return false
	}
}

var queryTransitions = map[QueryState][]QueryState{
	QueryIdle:     {QuerySkipped, QueryFetching},
	QueryFetching: {QueryMerging, QueryFailed},
	QueryMerging:  {QueryDone},
}

// CanTransition reports whether a query in state s may move to next.
func (s QueryState) CanTransition(next QueryState) bool {
	for _, t := range queryTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
