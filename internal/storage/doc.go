// Package storage persists node-local counter checkpoints.
//
// CheckpointStore keeps one snapshot of the local counters per node in an
// embedded Badger database, so a restarted node resumes its counts instead
// of reporting from zero. Badger's value log is garbage collected in the
// background and its size is exported as Prometheus gauges.
package storage
