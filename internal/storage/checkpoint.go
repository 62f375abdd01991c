// Package storage provides the badger-backed checkpoint store.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
)

// Common errors
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("checkpoint store closed")
)

const checkpointPrefix = "checkpoint/"

// Checkpoint is the persisted form of one node's counters.
type Checkpoint struct {
	NodeID   string           `json:"node_id"`
	SavedAt  int64            `json:"saved_at"` // Unix milliseconds
	Counters map[string]int64 `json:"counters"`
}

// Stats reports storage statistics.
type Stats struct {
	LSMSize          uint64
	ValueLogSize     uint64
	TotalSize        uint64
	LastGCTime       int64 // Unix milliseconds
	LastSaveTime     int64 // Unix milliseconds
	GCRuns           uint64
	CheckpointsSaved uint64
}

// CheckpointStore persists counter snapshots in Badger.
type CheckpointStore struct {
	db     *badger.DB
	cfg    Config
	logger *slog.Logger
	closed atomic.Bool

	lastGCTime   atomic.Int64
	lastSaveTime atomic.Int64
	gcRuns       atomic.Uint64
	saves        atomic.Uint64

	// Prometheus metrics
	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsTotalSize    prometheus.Gauge
	metricsLastSave     prometheus.Gauge
	metricsSaves        prometheus.Counter

	stopCh chan struct{}
	doneCh chan struct{}
}

// Open creates a checkpoint store.
func Open(cfg Config, logger *slog.Logger) (*CheckpointStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = 0.5
	}

	opts := badger.DefaultOptions(cfg.Dir).
		WithInMemory(cfg.InMemory()).
		WithLogger(&badgerLogger{logger: logger}).
		WithSyncWrites(cfg.SyncWrites && !cfg.InMemory())
	if cfg.CacheSize > 0 {
		opts = opts.WithBlockCacheSize(cfg.CacheSize)
	}
	if cfg.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	s := &CheckpointStore{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go s.gcLoop()

	logger.Info("checkpoint store opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory(),
		"gc_interval", cfg.GCInterval)

	return s, nil
}

func checkpointKey(nodeID string) []byte {
	return []byte(checkpointPrefix + nodeID)
}

// Save stores the counters of nodeID, replacing any earlier checkpoint.
// A nil counter set removes the checkpoint.
func (s *CheckpointStore) Save(ctx context.Context, nodeID string, counters *domain.Counters) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if nodeID == "" {
		return domain.ErrMissingArgument.WithDetails("node id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if counters == nil {
		return s.Delete(ctx, nodeID)
	}

	now := time.Now().UnixMilli()
	data, err := json.Marshal(Checkpoint{
		NodeID:   nodeID,
		SavedAt:  now,
		Counters: counters.ToMap(),
	})
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(checkpointKey(nodeID), data)
	})
	if err != nil {
		return domain.ErrStorageError.WithCause(err)
	}

	s.lastSaveTime.Store(now)
	s.saves.Add(1)
	if s.metricsSaves != nil {
		s.metricsSaves.Inc()
		s.metricsLastSave.Set(float64(now) / 1000.0)
	}
	return nil
}

// Load returns the checkpoint of nodeID, or ErrKeyNotFound.
func (s *CheckpointStore) Load(ctx context.Context, nodeID string) (*domain.Counters, error) {
	cp, err := s.LoadCheckpoint(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	return domain.CountersFromMap(cp.Counters), nil
}

// LoadCheckpoint returns the raw checkpoint of nodeID, or ErrKeyNotFound.
func (s *CheckpointStore) LoadCheckpoint(ctx context.Context, nodeID string) (*Checkpoint, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(checkpointKey(nodeID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, domain.ErrStorageError.WithCause(err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes the checkpoint of nodeID.
func (s *CheckpointStore) Delete(ctx context.Context, nodeID string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(checkpointKey(nodeID))
	})
	if err != nil {
		return domain.ErrStorageError.WithCause(err)
	}
	return nil
}

// Nodes lists the node ids that have a checkpoint.
func (s *CheckpointStore) Nodes(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var nodes []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(checkpointPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			nodes = append(nodes, string(it.Item().Key()[len(checkpointPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// GC runs value-log garbage collection until nothing is left to rewrite.
// It is a no-op for in-memory stores.
func (s *CheckpointStore) GC(ctx context.Context) error {
	if s.cfg.InMemory() {
		return nil
	}

	startTime := time.Now()
	rewrites := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				break
			}
			return fmt.Errorf("gc: %w", err)
		}
		rewrites++
	}

	s.lastGCTime.Store(time.Now().UnixMilli())
	s.gcRuns.Add(1)

	s.logger.Debug("gc completed",
		"rewrites", rewrites,
		"elapsed", time.Since(startTime))
	return nil
}

// Stats returns storage statistics.
func (s *CheckpointStore) Stats() Stats {
	lsm, vlog := s.db.Size()
	return Stats{
		LSMSize:          uint64(lsm),
		ValueLogSize:     uint64(vlog),
		TotalSize:        uint64(lsm + vlog),
		LastGCTime:       s.lastGCTime.Load(),
		LastSaveTime:     s.lastSaveTime.Load(),
		GCRuns:           s.gcRuns.Load(),
		CheckpointsSaved: s.saves.Load(),
	}
}

// Close stops background work and closes the database.
func (s *CheckpointStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(s.stopCh)
	<-s.doneCh

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	s.logger.Info("checkpoint store closed")
	return nil
}

// RegisterMetrics registers storage metrics with Prometheus.
// It returns the store for method chaining.
func (s *CheckpointStore) RegisterMetrics(registry prometheus.Registerer) *CheckpointStore {
	s.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "usagemesh",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	s.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "usagemesh",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	s.metricsTotalSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "usagemesh",
		Subsystem: "badger",
		Name:      "total_size_bytes",
		Help:      "Badger total storage size in bytes (LSM + value log)",
	})
	s.metricsLastSave = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "usagemesh",
		Subsystem: "checkpoint",
		Name:      "last_save_timestamp_seconds",
		Help:      "Unix timestamp of the last counter checkpoint",
	})
	s.metricsSaves = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "usagemesh",
		Subsystem: "checkpoint",
		Name:      "saves_total",
		Help:      "Total counter checkpoints written",
	})

	registry.MustRegister(
		s.metricsLSMSize,
		s.metricsValueLogSize,
		s.metricsTotalSize,
		s.metricsLastSave,
		s.metricsSaves,
	)
	s.updateSizeMetrics()
	return s
}

func (s *CheckpointStore) updateSizeMetrics() {
	if s.metricsLSMSize == nil || s.closed.Load() {
		return
	}
	st := s.Stats()
	s.metricsLSMSize.Set(float64(st.LSMSize))
	s.metricsValueLogSize.Set(float64(st.ValueLogSize))
	s.metricsTotalSize.Set(float64(st.TotalSize))
}

// gcLoop runs periodic garbage collection and refreshes size metrics.
func (s *CheckpointStore) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if err := s.GC(ctx); err != nil {
				s.logger.Error("auto gc failed", "error", err)
			}
			cancel()
			s.updateSizeMetrics()

		case <-s.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
