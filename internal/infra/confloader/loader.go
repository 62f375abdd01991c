// Package confloader provides layered configuration loading.
package confloader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the prefix of environment variables read by Load.
const DefaultEnvPrefix = "USAGEMESH_"

// envNestSeparator separates key path segments in environment variable names.
const envNestSeparator = "__"

// Source names the layer a configuration key was taken from.
type Source string

const (
	SourceFile     Source = "file"
	SourceEnv      Source = "env"
	SourceOverride Source = "override"
)

// Loader merges the configuration layers into one koanf tree.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any
	origins   map[string]Source
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix replaces DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the YAML file to read. Empty means no file.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithOverrides sets values applied after every other source.
// Keys use dotted paths ("log.level").
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) { l.overrides = values }
}

// NewLoader creates a loader. Nothing is read until Load.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
		origins:   make(map[string]Source),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FilePath returns the configured file path.
func (l *Loader) FilePath() string {
	return l.filePath
}

// Load reads the file, the environment and the overrides, in that order,
// and unmarshals the result into target. Fields of target absent from every
// source keep their current values, so callers pass a struct pre-filled
// with defaults.
func (l *Loader) Load(target any) error {
	if err := l.LoadFile(l.filePath); err != nil {
		return err
	}
	if err := l.LoadEnv(); err != nil {
		return err
	}
	if len(l.overrides) > 0 {
		if err := l.LoadMap(l.overrides); err != nil {
			return err
		}
	}
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadFile merges a YAML file. An empty path is a no-op.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	return l.merge(SourceFile, path, file.Provider(path), yaml.Parser())
}

// LoadEnv merges the prefixed environment.
//
//	USAGEMESH_SERVER__HTTP__ADDR       -> server.http.addr
//	USAGEMESH_STATS__REQUIRE_ALL_NODES -> stats.require_all_nodes
func (l *Loader) LoadEnv() error {
	provider := env.Provider(l.envPrefix, ".", func(s string) string {
		return envKey(l.envPrefix, s)
	})
	return l.merge(SourceEnv, l.envPrefix+"*", provider, nil)
}

// LoadMap merges dotted-key values as overrides.
func (l *Loader) LoadMap(data map[string]any) error {
	return l.merge(SourceOverride, "values", mapProvider(data), nil)
}

// merge loads one layer on its own first so its keys can be recorded.
func (l *Loader) merge(src Source, label string, p koanf.Provider, parser koanf.Parser) error {
	layer := koanf.New(".")
	if err := layer.Load(p, parser); err != nil {
		return fmt.Errorf("load %s %s: %w", src, label, err)
	}
	for _, key := range layer.Keys() {
		l.origins[key] = src
	}
	return l.k.Merge(layer)
}

func envKey(prefix, name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, prefix))
	return strings.ReplaceAll(name, envNestSeparator, ".")
}

// GetString returns a loaded value as a string.
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// Origin reports which source last set key, and false for keys left at
// their default.
func (l *Loader) Origin(key string) (Source, bool) {
	src, ok := l.origins[key]
	return src, ok
}

// KeysFrom lists, sorted, the keys whose final value came from src.
func (l *Loader) KeysFrom(src Source) []string {
	var keys []string
	for k, s := range l.origins {
		if s == src {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
