// Package command tests the usage, stats, system and config commands.
package command

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/yndnr/usagemesh-go/internal/cli/connection"
	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/license"
)

func TestUsage(t *testing.T) {
	srv := newTestServer(t, parseTestKey(t, issueTestKey(t, license.TierPlatinum)))
	srv.recorder.Add("queries.rest.total", 1)

	t.Run("table", func(t *testing.T) {
		out, err := runApp(t, "--server", srv.URL, "usage")
		if err != nil {
			t.Fatalf("usage error = %v", err)
		}
		for _, want := range []string{"Feature    sql", "Available  yes", "Enabled    yes", "queries.rest.total  5", "latency_ms.max      30"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		out, err := runApp(t, "--server", srv.URL, "-o", "json", "usage")
		if err != nil {
			t.Fatalf("usage error = %v", err)
		}
		var got struct {
			Feature string         `json:"feature"`
			Stats   map[string]any `json:"stats"`
		}
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("decode: %v\n%s", err, out)
		}
		queries := got.Stats["queries"].(map[string]any)["rest"].(map[string]any)
		if got.Feature != "sql" || queries["total"] != float64(5) {
			t.Errorf("json = %s", out)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := runApp(t, "--server", srv.URL, "-o", "yaml", "usage")
		if err != nil {
			t.Fatalf("usage error = %v", err)
		}
		var got map[string]any
		if err := yaml.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("decode: %v\n%s", err, out)
		}
		if got["available"] != true || got["feature"] != "sql" {
			t.Errorf("yaml = %s", out)
		}
	})

	t.Run("collection failure", func(t *testing.T) {
		srv.failFetch(domain.ErrCollectionFailed.WithDetails("node-b unreachable"))
		defer srv.failFetch(nil)

		_, err := runApp(t, "--server", srv.URL, "usage")
		var apiErr *connection.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != domain.ErrCollectionFailed.Code {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("unknown feature", func(t *testing.T) {
		_, err := runApp(t, "--server", srv.URL, "usage", "--feature", "ml")
		if err == nil || !strings.Contains(err.Error(), domain.ErrUnknownFeature.Code) {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("path", func(t *testing.T) {
		out, err := runApp(t, "--server", srv.URL, "usage", "--path", "queries.rest")
		if err != nil {
			t.Fatalf("usage error = %v", err)
		}
		if !strings.Contains(out, "queries.rest.total") || strings.Contains(out, "latency_ms") {
			t.Errorf("output = %s", out)
		}
	})

	t.Run("path to leaf", func(t *testing.T) {
		out, err := runApp(t, "--server", srv.URL, "-o", "json", "usage", "--path", "queries.rest.total")
		if err != nil {
			t.Fatalf("usage error = %v", err)
		}
		var got struct {
			Stats int64 `json:"stats"`
		}
		if err := json.Unmarshal([]byte(out), &got); err != nil || got.Stats != 5 {
			t.Errorf("json = %s (err=%v)", out, err)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := runApp(t, "--server", srv.URL, "usage", "--path", "queries.grpc")
		if err == nil || !strings.Contains(err.Error(), "queries.grpc") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("bad output format", func(t *testing.T) {
		if _, err := runApp(t, "--server", srv.URL, "-o", "xml", "usage"); err == nil {
			t.Error("unknown output format should fail")
		}
	})
}

func TestUsage_Unlicensed(t *testing.T) {
	srv := newTestServer(t, nil)
	out, err := runApp(t, "--server", srv.URL, "usage")
	if err != nil {
		t.Fatalf("usage error = %v", err)
	}
	if !strings.Contains(out, "Available  no") {
		t.Errorf("output = %s", out)
	}
}

func TestStatsRecordAndLocal(t *testing.T) {
	srv := newTestServer(t, nil)

	out, err := runApp(t, "--server", srv.URL, "stats", "record",
		"--timing", "parse_ms=8", "--feature", "join", "--query", "odbc", "--failed",
		"custom.hits=2", "custom.hits=3")
	if err != nil {
		t.Fatalf("stats record error = %v", err)
	}
	if !strings.Contains(out, "Recorded 4 entries") {
		t.Errorf("record output = %s", out)
	}

	checks := map[string]int64{
		"custom.hits":         5,
		"parse_ms.max":        8,
		"features.join":       1,
		"queries.odbc.failed": 1,
	}
	for path, want := range checks {
		if got, _ := srv.recorder.Get(path); got != want {
			t.Errorf("%s = %d, want %d", path, got, want)
		}
	}

	out, err = runApp(t, "--server", srv.URL, "stats", "local")
	if err != nil {
		t.Fatalf("stats local error = %v", err)
	}
	if !strings.Contains(out, "Node: node-a") || !strings.Contains(out, "custom.hits") {
		t.Errorf("local output = %s", out)
	}
}

func TestStatsRecord_Errors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"nothing", []string{"stats", "record"}, "nothing to record"},
		{"no equals", []string{"stats", "record", "custom.hits"}, "want PATH=N"},
		{"not a number", []string{"stats", "record", "custom.hits=x"}, "invalid value"},
		{"server rejects", []string{"stats", "record", "a..b=1"}, domain.ErrInvalidArgument.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, append([]string{"--server", srv.URL}, tt.args...)...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestClusterNodes(t *testing.T) {
	srv := newTestServer(t, nil)
	out, err := runApp(t, "--server", srv.URL, "cluster", "nodes")
	if err != nil {
		t.Fatalf("cluster nodes error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "NODE") || !strings.Contains(lines[1], "node-a") || !strings.HasSuffix(lines[1], "yes") {
		t.Errorf("output = %s", out)
	}
}

func TestSystem(t *testing.T) {
	srv := newTestServer(t, nil)

	out, err := runApp(t, "--server", srv.URL, "system", "health")
	if err != nil || !strings.Contains(out, "Server is healthy") {
		t.Errorf("health = %q, %v", out, err)
	}

	out, err = runApp(t, "--server", srv.URL, "sys", "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	for _, want := range []string{"Node", "node-a", "Members", "Licensed"} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q:\n%s", want, out)
		}
	}

	if _, err := runApp(t, "--server", "127.0.0.1:1", "--timeout", "200ms", "system", "health"); err == nil {
		t.Error("health against a closed port should fail")
	}
}

func TestProfile(t *testing.T) {
	srv := newTestServer(t, nil)
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte("server: "+srv.URL+"\noutput: json\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	var out strings.Builder
	app := App()
	app.Writer = &out
	if err := app.Run([]string{"usagemesh-cli", "--config", path, "config", "show"}); err != nil {
		t.Fatalf("config show error = %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out.String()), &got); err != nil {
		t.Fatalf("profile output should be json: %v\n%s", err, out.String())
	}
	if got["server"] != srv.URL || got["timeout"] != "30s" {
		t.Errorf("config show = %v", got)
	}

	// Flags win over the profile
	out.Reset()
	app = App()
	app.Writer = &out
	if err := app.Run([]string{"usagemesh-cli", "--config", path, "-o", "table", "system", "health"}); err != nil {
		t.Fatalf("health error = %v", err)
	}
	if !strings.Contains(out.String(), "Server is healthy") {
		t.Errorf("output = %s", out.String())
	}
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(good, []byte("feature:\n  name: sql\n  min_tier: gold\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("feature:\n  min_tier: diamond\nlog:\n  format: xml\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "config", "validate", good)
	if err != nil || !strings.Contains(out, "is valid") || strings.Contains(out, "environment") {
		t.Errorf("validate good = %q, %v", out, err)
	}

	t.Setenv("USAGEMESH_STATS__REQUIRE_ALL_NODES", "true")
	out, err = runApp(t, "config", "validate", good)
	if err != nil || !strings.Contains(out, "overridden by environment: stats.require_all_nodes") {
		t.Errorf("validate with env = %q, %v", out, err)
	}

	_, err = runApp(t, "config", "validate", bad)
	if err == nil || !strings.Contains(err.Error(), "feature.min_tier") || !strings.Contains(err.Error(), "log.format") {
		t.Errorf("validate bad error = %v", err)
	}

	if _, err := runApp(t, "config", "validate"); err == nil {
		t.Error("validate without file should fail")
	}
}
