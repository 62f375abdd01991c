// Package benchmark provides usage query benchmarks.
package benchmark

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/core/service"
	"github.com/yndnr/usagemesh-go/internal/stats"
	"github.com/yndnr/usagemesh-go/internal/telemetry/logger"
)

type allowAll struct{}

func (allowAll) IsFeatureAllowed(string) bool { return true }

// BenchmarkRecorder_RecordQuery measures concurrent query recording on one node.
func BenchmarkRecorder_RecordQuery(b *testing.B) {
	rec := stats.NewRecorder()
	var n atomic.Int64

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := n.Add(1)
			client := stats.Clients[int(i)%len(stats.Clients)]
			rec.RecordQuery(client, i%3 == 0, i%50 == 0)
			rec.Observe(stats.LatencyPath, i%500)
		}
	})
}

// BenchmarkRecorder_Snapshot measures the node stats answer for growing counter sets.
func BenchmarkRecorder_Snapshot(b *testing.B) {
	for _, paths := range PathCounts {
		b.Run(fmt.Sprintf("paths_%d", paths), func(b *testing.B) {
			rec := stats.NewRecorder()
			rec.Restore(clusterCounters(1, paths)[0])

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = rec.Snapshot()
			}
		})
	}
}

// BenchmarkMergeCounters measures folding the responses of a collection round.
func BenchmarkMergeCounters(b *testing.B) {
	runWithNodeCounts(b, NodeCounts, func(b *testing.B, nodes int) {
		sets := clusterCounters(nodes, 500)

		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = domain.MergeCounters(sets...)
		}
		b.StopTimer()
		reportMemory(b, "heap")
	})
}

// BenchmarkToTree measures building the nested usage tree.
func BenchmarkToTree(b *testing.B) {
	for _, paths := range PathCounts {
		b.Run(fmt.Sprintf("paths_%d", paths), func(b *testing.B) {
			merged := clusterCounters(1, paths)[0]

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = merged.ToTree()
			}
		})
	}
}

// BenchmarkUsageService measures a whole usage query over an in-process fetcher.
func BenchmarkUsageService(b *testing.B) {
	runWithNodeCounts(b, NodeCounts, func(b *testing.B, nodes int) {
		sets := clusterCounters(nodes, 500)
		responses := make([]domain.NodeStatsResponse, nodes)
		for i, c := range sets {
			responses[i] = domain.NodeStatsResponse{NodeID: fmt.Sprintf("node-%d", i), Stats: c}
		}

		svc, err := service.NewUsageService(service.UsageConfig{
			Feature: "sql",
			Enabled: true,
			License: service.StaticLicense(allowAll{}),
			Fetcher: service.FetcherFunc(func(context.Context) ([]domain.NodeStatsResponse, error) {
				return responses, nil
			}),
			Logger: logger.Nop(),
		})
		if err != nil {
			b.Fatalf("NewUsageService() error = %v", err)
		}

		ctx := context.Background()
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := svc.Usage(ctx); err != nil {
				b.Fatal(err)
			}
		}
	})
}
