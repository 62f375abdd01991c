// Package clusterserver provides the NodeStats wire format.
package clusterserver

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
)

// RPC names.
const (
	ServiceName        = "usagemesh.cluster.v1.ClusterService"
	NodeStatsProcedure = "/" + ServiceName + "/NodeStats"
)

// NodeIDHeader carries the calling node's id on cluster requests.
const NodeIDHeader = "Usagemesh-Node-Id"

// Message fields.
const (
	fieldIncludeStats = "include_stats"
	fieldNodeID       = "node_id"
	fieldStats        = "stats"
)

// maxExactCount bounds the counts a structpb number carries exactly.
// Counts must stay strictly inside (-maxExactCount, maxExactCount).
const maxExactCount = 1 << 53

func exactCount(v int64) bool {
	return v > -maxExactCount && v < maxExactCount
}

func newNodeStatsRequest(includeStats bool) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldIncludeStats: structpb.NewBoolValue(includeStats),
	}}
}

func includeStats(req *structpb.Struct) bool {
	if req == nil {
		return false
	}
	return req.GetFields()[fieldIncludeStats].GetBoolValue()
}

// encodeNodeStats converts a response to its wire form. Stats are omitted
// when the node has nothing to report. Counts a structpb number cannot carry
// exactly are an error.
func encodeNodeStats(resp domain.NodeStatsResponse) (*structpb.Struct, error) {
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldNodeID: structpb.NewStringValue(resp.NodeID),
	}}
	if resp.Stats == nil {
		return out, nil
	}

	stats := make(map[string]*structpb.Value, resp.Stats.Len())
	for path, v := range resp.Stats.ToMap() {
		if !exactCount(v) {
			return nil, fmt.Errorf("stat %q: %d exceeds the exact wire range", path, v)
		}
		stats[path] = structpb.NewNumberValue(float64(v))
	}
	out.Fields[fieldStats] = structpb.NewStructValue(&structpb.Struct{Fields: stats})
	return out, nil
}

// decodeNodeStats converts the wire form back to a response.
func decodeNodeStats(msg *structpb.Struct) (domain.NodeStatsResponse, error) {
	var resp domain.NodeStatsResponse
	if msg == nil {
		return resp, fmt.Errorf("empty node stats message")
	}

	fields := msg.GetFields()
	resp.NodeID = fields[fieldNodeID].GetStringValue()

	raw, ok := fields[fieldStats]
	if !ok {
		return resp, nil
	}
	stats := raw.GetStructValue()
	if stats == nil {
		return resp, fmt.Errorf("stats field is not an object")
	}

	counters := make(map[string]int64, len(stats.GetFields()))
	for path, v := range stats.GetFields() {
		num, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return resp, fmt.Errorf("stat %q is not a number", path)
		}
		f := num.NumberValue
		if f != math.Trunc(f) || math.Abs(f) >= maxExactCount {
			return resp, fmt.Errorf("stat %q is not an exact integer: %v", path, f)
		}
		counters[path] = int64(f)
	}
	resp.Stats = domain.CountersFromMap(counters)
	return resp, nil
}
