// Package config provides the server configuration model.
package config

import (
	"time"

	"github.com/yndnr/usagemesh-go/internal/infra/tlsroots"
)

// ServerConfig is the root configuration for usagemesh-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Cluster ClusterSection `koanf:"cluster"`
	Feature FeatureSection `koanf:"feature"`
	License LicenseSection `koanf:"license"`
	Stats   StatsSection   `koanf:"stats"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures listeners.
type ServerSection struct {
	HTTP    HTTPConfig    `koanf:"http"`
	Cluster ClusterConfig `koanf:"cluster"`
	Local   LocalConfig   `koanf:"local"`
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Addr string `koanf:"addr"`

	// RateLimit is requests per second per client IP. Zero disables it.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// LocalConfig configures the local management socket.
type LocalConfig struct {
	// Socket is the Unix socket path. Empty disables the listener.
	Socket string `koanf:"socket"`
}

// ClusterConfig configures the node stats RPC listener.
type ClusterConfig struct {
	Addr          string          `koanf:"addr"`
	AdvertiseAddr string          `koanf:"advertise_addr"`
	TLS           tlsroots.Config `koanf:"tls"`
}

// ClusterSection configures membership.
type ClusterSection struct {
	// NodeID identifies this node. Generated at startup when empty.
	NodeID string `koanf:"node_id"`

	// GossipAddr enables memberlist gossip. Empty runs a single node.
	GossipAddr string `koanf:"gossip_addr"`
	GossipPort int    `koanf:"gossip_port"`

	// Seeds are gossip addresses (host:port) of existing members.
	Seeds []string `koanf:"seeds"`
}

// FeatureSection names the reported feature.
type FeatureSection struct {
	Name string `koanf:"name"`

	// Enabled is read once at startup and fixed for the process lifetime.
	Enabled bool `koanf:"enabled"`

	// MinTier is the lowest license tier that unlocks the feature.
	MinTier string `koanf:"min_tier"`
}

// LicenseSection locates the license key.
type LicenseSection struct {
	File   string `koanf:"file"`
	Secret string `koanf:"secret"`
}

// StatsSection configures collection and local counter persistence.
type StatsSection struct {
	// FetchTimeout bounds a whole collection round.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	// NodeTimeout bounds the request to one remote node.
	NodeTimeout time.Duration `koanf:"node_timeout"`

	// RequireAllNodes fails the round when any node fails.
	RequireAllNodes bool `koanf:"require_all_nodes"`

	// PersistDir holds counter checkpoints. Empty keeps them in memory.
	PersistDir string `koanf:"persist_dir"`

	CheckpointInterval time.Duration `koanf:"checkpoint_interval"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
