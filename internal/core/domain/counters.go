// Package domain defines the core domain models for usagemesh.
package domain

import (
	"sort"
	"strings"
)

// PathSeparator separates the segments of a counter path ("queries.rest.total").
const PathSeparator = "."

// Timing sub-metric suffixes maintained by Counters.Observe.
const (
	SuffixCount = "count"
	SuffixTotal = "total"
	SuffixMin   = "min"
	SuffixMax   = "max"
)

// Combiner folds two values recorded under the same path.
// A Combiner must be associative and commutative.
type Combiner func(a, b int64) int64

// Sum adds both values. It is the default combiner.
func Sum(a, b int64) int64 { return a + b }

// Min keeps the smaller value.
func Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Max keeps the larger value.
func Max(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// MergePolicy selects the combiner for a counter path.
//
// Combiners are looked up by the last segment of the path; paths without a
// registered suffix use Default.
type MergePolicy struct {
	Default  Combiner
	BySuffix map[string]Combiner
}

// DefaultMergePolicy sums plain counters and keeps the extremes of
// min/max-tagged sub-keys.
func DefaultMergePolicy() MergePolicy {
	return MergePolicy{
		Default: Sum,
		BySuffix: map[string]Combiner{
			SuffixMin: Min,
			SuffixMax: Max,
		},
	}
}

// CombinerFor returns the combiner used for path.
func (p MergePolicy) CombinerFor(path string) Combiner {
	if len(p.BySuffix) > 0 {
		last := path
		if i := strings.LastIndex(path, PathSeparator); i >= 0 {
			last = path[i+1:]
		}
		if c, ok := p.BySuffix[last]; ok && c != nil {
			return c
		}
	}
	if p.Default != nil {
		return p.Default
	}
	return Sum
}

// Counters is a set of named numeric counters keyed by dotted path.
//
// A Counters value is not safe for concurrent mutation. Node-local recording
// happens in the stats package; Counters is the snapshot exchanged between
// nodes and folded by MergeCounters.
type Counters struct {
	values map[string]int64
}

// NewCounters creates an empty counter set.
func NewCounters() *Counters {
	return &Counters{values: make(map[string]int64)}
}

// CountersFromMap creates a counter set from path/value pairs.
func CountersFromMap(m map[string]int64) *Counters {
	c := &Counters{values: make(map[string]int64, len(m))}
	for k, v := range m {
		c.values[k] = v
	}
	return c
}

// Inc adds one to the counter at path.
func (c *Counters) Inc(path string) {
	c.Add(path, 1)
}

// Add adds n to the counter at path.
func (c *Counters) Add(path string, n int64) {
	c.values[path] += n
}

// Set overwrites the value at path.
func (c *Counters) Set(path string, v int64) {
	c.values[path] = v
}

// Observe records a timing-style sample under path, maintaining the
// count, total, min and max sub-metrics.
func (c *Counters) Observe(path string, v int64) {
	c.values[path+PathSeparator+SuffixCount]++
	c.values[path+PathSeparator+SuffixTotal] += v

	minKey := path + PathSeparator + SuffixMin
	if cur, ok := c.values[minKey]; !ok || v < cur {
		c.values[minKey] = v
	}
	maxKey := path + PathSeparator + SuffixMax
	if cur, ok := c.values[maxKey]; !ok || v > cur {
		c.values[maxKey] = v
	}
}

// Get returns the value stored at path.
func (c *Counters) Get(path string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	v, ok := c.values[path]
	return v, ok
}

// Len returns the number of distinct paths.
func (c *Counters) Len() int {
	if c == nil {
		return 0
	}
	return len(c.values)
}

// IsEmpty reports whether no path has been recorded.
func (c *Counters) IsEmpty() bool {
	return c.Len() == 0
}

// Paths returns all recorded paths in lexical order.
func (c *Counters) Paths() []string {
	if c == nil {
		return nil
	}
	paths := make([]string, 0, len(c.values))
	for k := range c.values {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	return paths
}

// ToMap returns a copy of the flat path/value pairs.
func (c *Counters) ToMap() map[string]int64 {
	out := make(map[string]int64, c.Len())
	if c == nil {
		return out
	}
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy.
func (c *Counters) Clone() *Counters {
	if c == nil {
		return nil
	}
	return CountersFromMap(c.values)
}

// Equal reports whether both sets hold the same paths and values.
func (c *Counters) Equal(other *Counters) bool {
	if c.Len() != other.Len() {
		return false
	}
	for _, k := range c.Paths() {
		ov, ok := other.Get(k)
		if !ok || ov != c.values[k] {
			return false
		}
	}
	return true
}

// MergeFrom folds other into c using policy. Paths present only in other
// are copied unchanged.
func (c *Counters) MergeFrom(other *Counters, policy MergePolicy) {
	if other == nil {
		return
	}
	for k, v := range other.values {
		cur, ok := c.values[k]
		if !ok {
			c.values[k] = v
			continue
		}
		c.values[k] = policy.CombinerFor(k)(cur, v)
	}
}

// MergeCounters folds every non-nil counter set with the default policy.
//
// The result is a new value; inputs are not modified. Merging zero sets
// yields an empty set.
func MergeCounters(sets ...*Counters) *Counters {
	return MergeCountersWith(DefaultMergePolicy(), sets...)
}

// MergeCountersWith folds every non-nil counter set with policy.
func MergeCountersWith(policy MergePolicy, sets ...*Counters) *Counters {
	merged := NewCounters()
	for _, s := range sets {
		merged.MergeFrom(s, policy)
	}
	return merged
}

// ToTree converts the flat paths into a nested tree.
//
// "queries.rest.total" becomes {"queries": {"rest": {"total": v}}}. When a
// path is both a leaf and a prefix of another path ("a" and "a.b"), the leaf
// value is stored under LeafValueKey inside the subtree.
func (c *Counters) ToTree() Tree {
	root := EmptyTree()
	for _, path := range c.Paths() {
		root.insert(strings.Split(path, PathSeparator), c.values[path])
	}
	return root
}
