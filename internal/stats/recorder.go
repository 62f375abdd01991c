// Package stats provides the node-local counter recorder.
package stats

import (
	"sync/atomic"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/pkg/cmap"
)

// Recorder holds the counters of the local node. It is safe for concurrent use.
type Recorder struct {
	cells *cmap.Map[*atomic.Int64]
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{cells: cmap.New[*atomic.Int64]()}
}

func (r *Recorder) cell(path string, initial int64) (*atomic.Int64, bool) {
	return r.cells.GetOrCreate(path, func() *atomic.Int64 {
		c := new(atomic.Int64)
		c.Store(initial)
		return c
	})
}

// Inc adds one to the counter at path.
func (r *Recorder) Inc(path string) {
	r.Add(path, 1)
}

// Add adds n to the counter at path.
func (r *Recorder) Add(path string, n int64) {
	if c, existed := r.cell(path, n); existed {
		c.Add(n)
	}
}

// Observe records a timing-style sample under path, maintaining the
// count, total, min and max sub-metrics.
func (r *Recorder) Observe(path string, v int64) {
	r.Inc(path + domain.PathSeparator + domain.SuffixCount)
	r.Add(path+domain.PathSeparator+domain.SuffixTotal, v)
	r.fold(path+domain.PathSeparator+domain.SuffixMin, v, domain.Min)
	r.fold(path+domain.PathSeparator+domain.SuffixMax, v, domain.Max)
}

// fold applies combine to the cell at path with a CAS loop.
func (r *Recorder) fold(path string, v int64, combine domain.Combiner) {
	c, existed := r.cell(path, v)
	if !existed {
		return
	}
	for {
		cur := c.Load()
		next := combine(cur, v)
		if next == cur || c.CompareAndSwap(cur, next) {
			return
		}
	}
}

// RecordQuery counts one query for client and for the aggregate client.
func (r *Recorder) RecordQuery(client Client, paging, failed bool) {
	for _, c := range []Client{client, ClientAll} {
		r.Inc(QueryPath(c, MetricTotal))
		if paging {
			r.Inc(QueryPath(c, MetricPaging))
		}
		if failed {
			r.Inc(QueryPath(c, MetricFailed))
		}
	}
}

// RecordFeature counts one use of a query feature.
func (r *Recorder) RecordFeature(name string) {
	r.Inc(FeaturePath(name))
}

// Get returns the value at path.
func (r *Recorder) Get(path string) (int64, bool) {
	c, ok := r.cells.Get(path)
	if !ok {
		return 0, false
	}
	return c.Load(), true
}

// Snapshot copies the current counters. It returns nil when nothing has
// been recorded.
func (r *Recorder) Snapshot() *domain.Counters {
	if r.cells.Count() == 0 {
		return nil
	}
	out := domain.NewCounters()
	r.cells.Range(func(path string, c *atomic.Int64) bool {
		out.Set(path, c.Load())
		return true
	})
	if out.IsEmpty() {
		return nil
	}
	return out
}

// Restore folds a previously saved snapshot into the recorder using the
// default merge policy.
func (r *Recorder) Restore(saved *domain.Counters) {
	if saved == nil {
		return
	}
	policy := domain.DefaultMergePolicy()
	for _, path := range saved.Paths() {
		v, _ := saved.Get(path)
		r.fold(path, v, policy.CombinerFor(path))
	}
}

// Len returns the number of recorded paths.
func (r *Recorder) Len() int {
	return r.cells.Count()
}
