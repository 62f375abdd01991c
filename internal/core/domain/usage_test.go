// Package domain defines the core domain models for usagemesh.
package domain

import (
	"encoding/json"
	"testing"
)

func TestNewUsageRecord_NormalizesStats(t *testing.T) {
	tests := []struct {
		name  string
		stats Tree
		want  Tree
	}{
		{"zero tree", Tree{}, EmptyTree()},
		{"leaf", Leaf(3), Node(map[string]Tree{LeafValueKey: Leaf(3)})},
		{"node", Node(map[string]Tree{"a": Leaf(1)}), Node(map[string]Tree{"a": Leaf(1)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewUsageRecord(true, true, tt.stats)
			if r.Stats.IsLeaf() {
				t.Fatal("record stats must be a node")
			}
			if !r.Stats.Equal(tt.want) {
				t.Errorf("Stats = %v, want %v", r.Stats.ToMap(), tt.want.ToMap())
			}
		})
	}
}

func TestUsageRecord_Equal(t *testing.T) {
	a := NewUsageRecord(true, false, EmptyTree())
	b := NewUsageRecord(true, false, Tree{})
	c := NewUsageRecord(false, false, EmptyTree())

	if !a.Equal(b) {
		t.Error("records with same flags and empty stats should be equal")
	}
	if a.Equal(c) {
		t.Error("records with different availability should differ")
	}
}

func TestUsageRecord_JSON(t *testing.T) {
	r := NewUsageRecord(true, true, CountersFromMap(map[string]int64{"queries.count": 8}).ToTree())

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"available":true,"enabled":true,"stats":{"queries":{"count":8}}}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}

	var decoded UsageRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !decoded.Equal(r) {
		t.Errorf("decoded = %+v, want %+v", decoded, r)
	}
}

func TestUsageRecord_UnmarshalJSON_MissingStats(t *testing.T) {
	var r UsageRecord
	if err := json.Unmarshal([]byte(`{"available":true,"enabled":false}`), &r); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !r.Available || r.Enabled {
		t.Errorf("flags = %v/%v, want true/false", r.Available, r.Enabled)
	}
	if !r.Stats.IsEmpty() {
		t.Errorf("missing stats should decode as empty, got %v", r.Stats.ToMap())
	}
}

func TestQueryState_IsTerminal(t *testing.T) {
	tests := []struct {
		state QueryState
		want  bool
	}{
		{QueryIdle, false},
		{QueryFetching, false},
		{QueryMerging, false},
		{QuerySkipped, true},
		{QueryDone, true},
		{QueryFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueryState_CanTransition(t *testing.T) {
	paths := [][]QueryState{
		{QueryIdle, QuerySkipped},
		{QueryIdle, QueryFetching, QueryMerging, QueryDone},
		{QueryIdle, QueryFetching, QueryFailed},
	}
	for _, path := range paths {
		for i := 1; i < len(path); i++ {
			if !path[i-1].CanTransition(path[i]) {
				t.Errorf("%s -> %s should be allowed", path[i-1], path[i])
			}
		}
		if last := path[len(path)-1]; !last.IsTerminal() {
			t.Errorf("path ends in non-terminal %s", last)
		}
	}

	invalid := []struct{ from, to QueryState }{
		{QueryIdle, QueryDone},
		{QueryIdle, QueryMerging},
		{QueryFetching, QueryDone},
		{QueryMerging, QueryFailed},
		{QuerySkipped, QueryFetching},
		{QueryDone, QueryIdle},
		{QueryFailed, QueryFetching},
	}
	for _, tt := range invalid {
		if tt.from.CanTransition(tt.to) {
			t.Errorf("%s -> %s should be rejected", tt.from, tt.to)
		}
	}
}
