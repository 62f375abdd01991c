// Package benchmark measures the hot paths of a usage report: recording a
// query on the local node, snapshotting its counters, merging the snapshots
// of a cluster and rendering the merged counters as a tree.
//
// Cluster sizes come from NodeCounts and counter widths from PathCounts:
//
//	go test -run=^$ -bench=. -benchmem ./internal/tests/benchmark/
//	go test -run=^$ -bench=MergeCounters/nodes_50 -count=5 ./internal/tests/benchmark/ | tee new.txt
//	benchstat old.txt new.txt
package benchmark
