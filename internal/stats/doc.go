// Package stats records node-local feature counters.
//
// The feature subsystem calls Recorder.Inc, Add and Observe on its hot path.
// A collection round reads Recorder.Snapshot, which is nil until something
// has been recorded. Checkpointer persists snapshots so counters survive a
// restart.
package stats
