// Package confloader tests file watching.
package confloader

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, opts ...WatcherOption) *Watcher {
	t.Helper()
	w, err := NewWatcher(opts...)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestNewWatcher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	w := newTestWatcher(t, WithWatcherLogger(logger), WithDebounce(0))

	if w.logger != logger {
		t.Error("WithWatcherLogger() option not applied")
	}
	if w.debounce != 0 {
		t.Errorf("debounce = %v, want 0", w.debounce)
	}
}

func TestWatcher_Watch_NonexistentDir(t *testing.T) {
	w := newTestWatcher(t)
	if err := w.Watch("/nonexistent/path/license.key"); err == nil {
		t.Error("Watch() expected error for nonexistent directory")
	}
}

func TestWatcher_Stop_Idempotent(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	w.StartAsync()
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestWatcher_NotifyCallbacks(t *testing.T) {
	w := newTestWatcher(t)
	dir := t.TempDir()
	licensePath := filepath.Join(dir, "license.key")

	var perFile, global atomic.Int32
	if err := w.Watch(licensePath, func(string) { perFile.Add(1) }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	w.OnChange(func(string) { global.Add(1) })

	abs, _ := filepath.Abs(licensePath)
	w.notifyCallbacks(abs)
	w.notifyCallbacks(filepath.Join(dir, "other.yaml"))

	if perFile.Load() != 1 {
		t.Errorf("per-file callbacks = %d, want 1", perFile.Load())
	}
	if global.Load() != 2 {
		t.Errorf("global callbacks = %d, want 2", global.Load())
	}
}

func TestWatcher_FileChange(t *testing.T) {
	dir := t.TempDir()
	licensePath := filepath.Join(dir, "license.key")
	if err := os.WriteFile(licensePath, []byte("umlk_one"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	w := newTestWatcher(t, WithDebounce(20*time.Millisecond))
	changed := make(chan string, 10)
	if err := w.Watch(licensePath, func(path string) {
		select {
		case changed <- path:
		default:
		}
	}); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	w.StartAsync()
	time.Sleep(100 * time.Millisecond)

	// Changes to unrelated files in the same directory are ignored
	if err := os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(licensePath, []byte("umlk_two"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	select {
	case path := <-changed:
		if filepath.Base(path) != "license.key" {
			t.Errorf("callback path = %q, want license.key", path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not triggered within timeout")
	}
}

func TestWatcher_FileReplacedByRename(t *testing.T) {
	dir := t.TempDir()
	licensePath := filepath.Join(dir, "license.key")
	if err := os.WriteFile(licensePath, []byte("umlk_one"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	w := newTestWatcher(t, WithDebounce(20*time.Millisecond))
	var calls atomic.Int32
	if err := w.Watch(licensePath, func(string) { calls.Add(1) }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	w.StartAsync()
	time.Sleep(100 * time.Millisecond)

	tmp := filepath.Join(dir, "license.key.tmp")
	if err := os.WriteFile(tmp, []byte("umlk_two"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.Rename(tmp, licensePath); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if calls.Load() == 0 {
		t.Fatal("rename onto watched file was not reported")
	}
}
