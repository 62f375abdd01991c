// Package stats provides periodic checkpointing of local counters.
package stats

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/telemetry/logger"
)

// ErrNoCheckpoint is returned by a CheckpointStore when a node has none.
var ErrNoCheckpoint = errors.New("no checkpoint")

// CheckpointStore persists counter snapshots.
type CheckpointStore interface {
	Save(ctx context.Context, nodeID string, counters *domain.Counters) error
	Load(ctx context.Context, nodeID string) (*domain.Counters, error)
}

// Checkpointer periodically saves the recorder of one node.
type Checkpointer struct {
	recorder *Recorder
	store    CheckpointStore
	nodeID   string
	interval time.Duration
	logger   logger.Logger

	// IsNotFound classifies a Load error as "no checkpoint yet".
	IsNotFound func(error) bool

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCheckpointer creates a Checkpointer. Start must be called to begin
// periodic saves.
func NewCheckpointer(recorder *Recorder, store CheckpointStore, nodeID string, interval time.Duration, log logger.Logger) *Checkpointer {
	if log == nil {
		log = logger.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Checkpointer{
		recorder:   recorder,
		store:      store,
		nodeID:     nodeID,
		interval:   interval,
		logger:     log.With("node_id", nodeID),
		IsNotFound: func(err error) bool { return errors.Is(err, ErrNoCheckpoint) },
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Restore loads the last checkpoint into the recorder. A missing checkpoint
// is not an error.
func (c *Checkpointer) Restore(ctx context.Context) error {
	saved, err := c.store.Load(ctx, c.nodeID)
	if err != nil {
		if c.IsNotFound != nil && c.IsNotFound(err) {
			c.logger.Info("no counter checkpoint found")
			return nil
		}
		return err
	}
	c.recorder.Restore(saved)
	c.logger.Info("counters restored from checkpoint", "paths", saved.Len())
	return nil
}

// Flush saves the current counters once.
func (c *Checkpointer) Flush(ctx context.Context) error {
	return c.store.Save(ctx, c.nodeID, c.recorder.Snapshot())
}

// Start begins periodic saves in the background.
func (c *Checkpointer) Start() {
	if c.started.CompareAndSwap(false, true) {
		go c.loop()
	}
}

// Stop ends periodic saves and writes a final checkpoint.
func (c *Checkpointer) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.started.Load() {
		select {
		case <-c.doneCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.Flush(ctx)
}

func (c *Checkpointer) loop() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.interval)
			if err := c.Flush(ctx); err != nil {
				c.logger.Warn("counter checkpoint failed", "error", err)
			}
			cancel()
		case <-c.stopCh:
			return
		}
	}
}
