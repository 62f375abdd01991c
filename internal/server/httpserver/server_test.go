// Package httpserver tests the HTTP server and router.
package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/usagemesh-go/internal/stats"
)

func TestServer_ServeAndShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	s := New(l.Addr().String(), okHandler())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve() returned %v, want nil after shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for Serve to return")
	}
}

func TestDefaultRouterConfig(t *testing.T) {
	cfg := DefaultRouterConfig()
	if cfg.RateLimit <= 0 || cfg.RateBurst < 1 || !cfg.EnableAudit {
		t.Errorf("DefaultRouterConfig() = %+v", cfg)
	}
}

func TestNewRouter(t *testing.T) {
	recorder := stats.NewRecorder()
	obs := &fakeObserver{}
	router := NewRouter(&RouterConfig{
		Handler:   handler.New(handler.Config{NodeID: "node-a", Recorder: recorder, Logger: discardLogger()}),
		Logger:    discardLogger(),
		Metrics:   obs,
		RateLimit: 0.001,
		RateBurst: 1,
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	// Probes are not rate limited
	for i := 0; i < 3; i++ {
		if rec := get("/health"); rec.Code != http.StatusOK {
			t.Fatalf("/health #%d = %d", i, rec.Code)
		}
	}

	rec := get("/stats/v1/local")
	if rec.Code != http.StatusOK {
		t.Fatalf("/stats/v1/local = %d", rec.Code)
	}
	var resp handler.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RequestID == "" || resp.RequestID != rec.Header().Get(HeaderRequestID) {
		t.Errorf("request id = %q, header %q", resp.RequestID, rec.Header().Get(HeaderRequestID))
	}

	// Second business request from the same client exceeds the burst
	if rec := get("/admin/v1/cluster/nodes"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("rate limited request = %d", rec.Code)
	} else if rec.Header().Get("X-Error-Code") != domain.ErrRateLimited.Code {
		t.Errorf("X-Error-Code = %q", rec.Header().Get("X-Error-Code"))
	}

	if rec := get("/unknown"); rec.Code != http.StatusNotFound {
		t.Errorf("/unknown = %d", rec.Code)
	}

	var paths []string
	for _, r := range obs.seen {
		paths = append(paths, r.path)
	}
	if len(paths) != 4 || paths[0] != "/health" || paths[3] != "/stats/v1/local" {
		t.Errorf("observed paths = %v", paths)
	}
}

func TestServer_Listen(t *testing.T) {
	s := New("127.0.0.1:0", okHandler())
	ln, err := s.Listen(context.Background())
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	// The port is bound before Serve runs, so a second bind fails
	if _, err := New(ln.Addr().String(), okHandler()).Listen(context.Background()); err == nil {
		t.Error("Listen() on a bound address should fail")
	}

	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
