// Package domain defines the core domain models for usagemesh.
//
// Domain models are pure values without IO dependencies:
//
//   - Counters: flat dotted-path counters with a pluggable merge policy
//   - Tree: nested form of a counter set (leaf or node)
//   - UsageRecord: the per-feature usage report
//   - NodeStatsResponse: one node's contribution to a collection round
//   - Errors: coded domain errors
//
// Merging counters is associative and commutative, and absent counters are
// the identity, so the order in which nodes answer never changes a report.
package domain
