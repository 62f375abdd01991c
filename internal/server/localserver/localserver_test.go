// Package localserver tests the local management socket.
package localserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/server/httpserver"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "umlocal")
	if err != nil {
		t.Fatalf("MkdirTemp() error = %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "admin.sock")
}

func unixClient(path string) *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", path)
			},
		},
	}
}

func startServer(t *testing.T, path string, actions Actions) *Server {
	t.Helper()
	api := http.NewServeMux()
	api.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Request-ID", w.Header().Get(httpserver.HeaderRequestID))
		w.WriteHeader(http.StatusOK)
	})

	srv := New(path, NewHandler(api, actions, discardLogger()), discardLogger())
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

type envelope struct {
	Code      string          `json:"code"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

func post(t *testing.T, client *http.Client, path string) (int, envelope) {
	t.Helper()
	resp, err := client.Post("http://local"+path, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp.StatusCode, env
}

func TestServer_Actions(t *testing.T) {
	path := socketPath(t)
	var reloads, checkpoints atomic.Int32
	shutdown := make(chan struct{})

	startServer(t, path, Actions{
		ReloadLicense: func() error {
			reloads.Add(1)
			return nil
		},
		Checkpoint: func(context.Context) error {
			checkpoints.Add(1)
			return nil
		},
		Shutdown: func() { close(shutdown) },
	})
	client := unixClient(path)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat(socket) error = %v", err)
	}
	if info.Mode().Perm() != socketMode {
		t.Errorf("socket mode = %v, want %v", info.Mode().Perm(), os.FileMode(socketMode))
	}

	tests := []struct {
		path   string
		action string
	}{
		{"/local/v1/license/reload", "license reload"},
		{"/local/v1/checkpoint", "checkpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			status, env := post(t, client, tt.path)
			if status != http.StatusOK || env.Code != "OK" {
				t.Fatalf("status = %d, code = %s", status, env.Code)
			}
			var got ActionResponse
			if err := json.Unmarshal(env.Data, &got); err != nil {
				t.Fatalf("decode data: %v", err)
			}
			if got.Action != tt.action || !got.Done {
				t.Errorf("response = %+v", got)
			}
			if !strings.HasPrefix(env.RequestID, "req-") {
				t.Errorf("request id = %q", env.RequestID)
			}
		})
	}
	if reloads.Load() != 1 || checkpoints.Load() != 1 {
		t.Errorf("reloads = %d, checkpoints = %d", reloads.Load(), checkpoints.Load())
	}

	t.Run("api passthrough", func(t *testing.T) {
		resp, err := client.Get("http://local/health")
		if err != nil {
			t.Fatalf("GET /health error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || resp.Header.Get("X-Seen-Request-ID") == "" {
			t.Errorf("status = %d, request id = %q", resp.StatusCode, resp.Header.Get("X-Seen-Request-ID"))
		}
	})

	t.Run("GET on an action falls through to the api", func(t *testing.T) {
		resp, err := client.Get("http://local/local/v1/checkpoint")
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
		if reloads.Load() != 1 || checkpoints.Load() != 1 {
			t.Error("GET must not run an action")
		}
	})

	t.Run("shutdown", func(t *testing.T) {
		if status, _ := post(t, client, "/local/v1/shutdown"); status != http.StatusOK {
			t.Fatalf("status = %d", status)
		}
		select {
		case <-shutdown:
		case <-time.After(time.Second):
			t.Fatal("shutdown action not called")
		}
	})
}

func TestServer_ActionErrors(t *testing.T) {
	path := socketPath(t)
	startServer(t, path, Actions{
		ReloadLicense: func() error { return domain.ErrLicenseInvalid.WithDetails("bad signature") },
		Checkpoint:    func(context.Context) error { return errors.New("disk full") },
	})
	client := unixClient(path)

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"/local/v1/license/reload", http.StatusUnauthorized, domain.ErrLicenseInvalid.Code},
		{"/local/v1/checkpoint", http.StatusInternalServerError, domain.ErrInternalServer.Code},
		{"/local/v1/shutdown", http.StatusServiceUnavailable, domain.ErrServiceUnavailable.Code},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, env := post(t, client, tt.path)
			if status != tt.status || env.Code != tt.code {
				t.Errorf("POST %s = %d %s, want %d %s", tt.path, status, env.Code, tt.status, tt.code)
			}
		})
	}
}

func TestServer_ShutdownRemovesSocket(t *testing.T) {
	path := socketPath(t)
	srv := startServer(t, path, Actions{})

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("socket should be removed, stat error = %v", err)
	}
	// Second shutdown is a no-op
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestServer_Listen(t *testing.T) {
	t.Run("stale socket is replaced", func(t *testing.T) {
		path := socketPath(t)
		ln, err := net.Listen("unix", path)
		if err != nil {
			t.Fatalf("Listen() error = %v", err)
		}
		// Keep the file but stop answering
		ln.(*net.UnixListener).SetUnlinkOnClose(false)
		ln.Close()

		srv := New(path, http.NotFoundHandler(), discardLogger())
		if err := srv.Listen(); err != nil {
			t.Fatalf("Listen() over stale socket error = %v", err)
		}
		_ = srv.Shutdown(context.Background())
	})

	t.Run("socket in use", func(t *testing.T) {
		path := socketPath(t)
		startServer(t, path, Actions{})

		srv := New(path, http.NotFoundHandler(), discardLogger())
		if err := srv.Listen(); err == nil || !strings.Contains(err.Error(), "in use") {
			t.Errorf("Listen() on busy socket error = %v", err)
		}
	})

	t.Run("regular file", func(t *testing.T) {
		path := socketPath(t)
		if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		srv := New(path, http.NotFoundHandler(), discardLogger())
		if err := srv.Listen(); err == nil || !strings.Contains(err.Error(), "not a socket") {
			t.Errorf("Listen() on regular file error = %v", err)
		}
	})

	t.Run("serve before listen", func(t *testing.T) {
		srv := New(socketPath(t), http.NotFoundHandler(), discardLogger())
		if err := srv.Serve(); err == nil {
			t.Error("Serve() without Listen() should fail")
		}
	})
}
