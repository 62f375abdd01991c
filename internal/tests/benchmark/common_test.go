// Package benchmark provides shared benchmark fixtures.
package benchmark

import (
	"fmt"
	"math/rand/v2"
	"runtime"
	"testing"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/stats"
)

// NodeCounts defines the cluster sizes for merge benchmarks.
var NodeCounts = []int{1, 3, 10, 50, 100}

// PathCounts defines the number of counter paths per node.
var PathCounts = []int{50, 500, 5000}

// nodeCounters builds the counters one node would report: every client and
// feature, latency sub-metrics and extra custom paths up to paths.
func nodeCounters(r *rand.Rand, paths int) *domain.Counters {
	rec := stats.NewRecorder()
	for _, c := range stats.Clients {
		rec.RecordQuery(c, r.IntN(2) == 0, r.IntN(10) == 0)
	}
	for _, f := range stats.Features {
		rec.RecordFeature(f)
	}
	rec.Observe(stats.LatencyPath, r.Int64N(1000))

	for i := 0; rec.Len() < paths; i++ {
		rec.Add(fmt.Sprintf("custom.group%d.metric%d", i%20, i), r.Int64N(100))
	}
	return rec.Snapshot()
}

// clusterCounters returns the responses of a cluster of nodes.
func clusterCounters(nodes, paths int) []*domain.Counters {
	r := rand.New(rand.NewPCG(uint64(nodes), uint64(paths)))
	out := make([]*domain.Counters, nodes)
	for i := range out {
		out[i] = nodeCounters(r, paths)
	}
	return out
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithNodeCounts runs a benchmark function with various cluster sizes.
func runWithNodeCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("nodes_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}
