// Package command provides test helpers for the CLI commands.
package command

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/core/service"
	"github.com/yndnr/usagemesh-go/internal/license"
	"github.com/yndnr/usagemesh-go/internal/server/clusterserver"
	"github.com/yndnr/usagemesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/usagemesh-go/internal/stats"
	"github.com/yndnr/usagemesh-go/internal/telemetry/logger"
)

const testSecret = "cli-test-secret"

type staticMembers []clusterserver.Member

func (m staticMembers) Members() []clusterserver.Member { return m }

// testServer runs the real HTTP handlers over in-memory collaborators.
type testServer struct {
	*httptest.Server
	recorder *stats.Recorder

	mu       sync.Mutex
	fetchErr error
}

// failFetch makes collection rounds fail with err until reset with nil.
func (ts *testServer) failFetch(err error) {
	ts.mu.Lock()
	ts.fetchErr = err
	ts.mu.Unlock()
}

func newTestServer(t *testing.T, installed *license.State) *testServer {
	t.Helper()
	ts := &testServer{recorder: stats.NewRecorder()}

	remote := domain.CountersFromMap(map[string]int64{"queries.rest.total": 4, "latency_ms.max": 30})
	fetcher := service.FetcherFunc(func(context.Context) ([]domain.NodeStatsResponse, error) {
		ts.mu.Lock()
		err := ts.fetchErr
		ts.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return []domain.NodeStatsResponse{
			{NodeID: "node-a", Stats: ts.recorder.Snapshot()},
			{NodeID: "node-b", Stats: remote},
		}, nil
	})

	var source service.LicenseSource
	if installed != nil {
		source = service.StaticLicense(installed)
	}
	usage, err := service.NewUsageService(service.UsageConfig{
		Feature: "sql",
		Enabled: true,
		License: source,
		Fetcher: fetcher,
		Logger:  logger.Nop(),
	})
	if err != nil {
		t.Fatalf("NewUsageService() error = %v", err)
	}

	h := handler.New(handler.Config{
		NodeID:   "node-a",
		Usage:    usage,
		Recorder: ts.recorder,
		Cluster: staticMembers{
			{NodeID: "node-a", RPCAddr: "127.0.0.1:7343", Local: true},
			{NodeID: "node-b", RPCAddr: "127.0.0.2:7343"},
		},
		License: func() *license.State { return installed },
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ts.Server = httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

// runApp runs the CLI with a missing profile and returns its output.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = io.Discard

	full := append([]string{"usagemesh-cli", "--config", filepath.Join(t.TempDir(), "cli.yaml")}, args...)
	err := app.Run(full)
	return out.String(), err
}

func issueTestKey(t *testing.T, tier license.Tier) string {
	t.Helper()
	now := time.Now()
	key, err := license.Issue(license.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "lic-test",
			Subject:   "acme",
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
		Tier: tier,
	}, testSecret)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return key
}

func parseTestKey(t *testing.T, key string) *license.State {
	t.Helper()
	state, err := license.Parse(key, testSecret)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return state
}
