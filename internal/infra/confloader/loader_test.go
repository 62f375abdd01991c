// Package confloader tests layered configuration loading.
package confloader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testConfig struct {
	Server struct {
		HTTP struct {
			Addr      string `koanf:"addr"`
			RateLimit int    `koanf:"rate_limit"`
		} `koanf:"http"`
	} `koanf:"server"`
	Stats struct {
		FetchTimeout    string `koanf:"fetch_timeout"`
		RequireAllNodes bool   `koanf:"require_all_nodes"`
	} `koanf:"stats"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, DefaultEnvPrefix)
	}

	l = NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/etc/usagemesh/server.yaml"))
	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want %q", l.envPrefix, "TEST_")
	}
	if l.FilePath() != "/etc/usagemesh/server.yaml" {
		t.Errorf("FilePath() = %q", l.FilePath())
	}
}

func TestLoader_LoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  http:
    addr: "0.0.0.0:7080"
stats:
  fetch_timeout: "10s"
`)

	l := NewLoader()
	if err := l.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got := l.GetString("server.http.addr"); got != "0.0.0.0:7080" {
		t.Errorf("server.http.addr = %q, want %q", got, "0.0.0.0:7080")
	}

	if err := l.LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") error = %v", err)
	}
	if err := l.LoadFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFile() should fail for a missing file")
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"USAGEMESH_SERVER__HTTP__ADDR", "server.http.addr"},
		{"USAGEMESH_STATS__REQUIRE_ALL_NODES", "stats.require_all_nodes"},
		{"USAGEMESH_LOG__LEVEL", "log.level"},
		{"USAGEMESH_DEBUG", "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envKey(DefaultEnvPrefix, tt.env); got != tt.want {
				t.Errorf("envKey(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoader_LoadEnv(t *testing.T) {
	t.Setenv("USAGEMESH_STATS__REQUIRE_ALL_NODES", "true")
	t.Setenv("USAGEMESH_SERVER__HTTP__ADDR", "127.0.0.1:8080")

	l := NewLoader()
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Stats.RequireAllNodes {
		t.Error("stats.require_all_nodes should be true")
	}
	if cfg.Server.HTTP.Addr != "127.0.0.1:8080" {
		t.Errorf("Addr = %q, want %q", cfg.Server.HTTP.Addr, "127.0.0.1:8080")
	}
}

func TestLoader_Load_Priority(t *testing.T) {
	path := writeConfig(t, `
server:
  http:
    addr: "from-file:7080"
    rate_limit: 50
log:
  level: info
`)
	t.Setenv("USAGEMESH_SERVER__HTTP__ADDR", "from-env:8080")

	l := NewLoader(
		WithConfigFile(path),
		WithOverrides(map[string]any{"log.level": "debug"}),
	)

	var cfg testConfig
	cfg.Stats.FetchTimeout = "10s" // default, absent from every source
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTP.Addr != "from-env:8080" {
		t.Errorf("Addr = %q, want env to override file", cfg.Server.HTTP.Addr)
	}
	if cfg.Server.HTTP.RateLimit != 50 {
		t.Errorf("RateLimit = %d, want 50", cfg.Server.HTTP.RateLimit)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q, want overrides to win", cfg.Log.Level)
	}
	if cfg.Stats.FetchTimeout != "10s" {
		t.Errorf("FetchTimeout = %q, default should survive", cfg.Stats.FetchTimeout)
	}

	origins := map[string]Source{
		"server.http.addr":       SourceEnv,
		"server.http.rate_limit": SourceFile,
		"log.level":              SourceOverride,
	}
	for key, want := range origins {
		if got, ok := l.Origin(key); !ok || got != want {
			t.Errorf("Origin(%q) = %q, %v, want %q", key, got, ok, want)
		}
	}
	if _, ok := l.Origin("stats.fetch_timeout"); ok {
		t.Error("a defaulted key should have no origin")
	}
	if got := l.KeysFrom(SourceEnv); len(got) != 1 || got[0] != "server.http.addr" {
		t.Errorf("KeysFrom(env) = %v", got)
	}
}

func TestLoader_LoadMap(t *testing.T) {
	l := NewLoader()
	if err := l.LoadMap(map[string]any{
		"server.http.addr":    "localhost:3000",
		"stats.fetch_timeout": "2s",
	}); err != nil {
		t.Fatalf("LoadMap() error = %v", err)
	}

	if got := l.GetString("server.http.addr"); got != "localhost:3000" {
		t.Errorf("server.http.addr = %q, want %q", got, "localhost:3000")
	}
	if got := l.KeysFrom(SourceOverride); len(got) != 2 || got[0] != "server.http.addr" || got[1] != "stats.fetch_timeout" {
		t.Errorf("KeysFrom(override) = %v", got)
	}
}

func TestLoader_BadFile(t *testing.T) {
	path := writeConfig(t, "server: [unclosed\n")

	var cfg testConfig
	err := NewLoader(WithConfigFile(path)).Load(&cfg)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("Load() error = %v, want one naming %s", err, path)
	}
}
