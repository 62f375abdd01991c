// Package cmap provides a concurrent map keyed by strings.
//
// The map is split into shards selected by a murmur3 hash of the key, each
// guarded by its own RWMutex. It backs the node-local counter registry,
// where many goroutines record into a small, mostly stable set of paths.
//
// Usage:
//
//	m := cmap.New[*atomic.Int64]()
//	cell, _ := m.GetOrCreate("queries.rest.total", func() *atomic.Int64 { return new(atomic.Int64) })
//	cell.Add(1)
package cmap
