// Package config provides default server configuration.
package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr    = "127.0.0.1:7080"
	DefaultClusterAddr = "127.0.0.1:7343"
	DefaultGossipPort  = 7344
	DefaultRateLimit   = 100
	DefaultRateBurst   = 200

	DefaultFeatureName = "sql"
	DefaultMinTier     = "platinum"

	DefaultFetchTimeout       = 10 * time.Second
	DefaultNodeTimeout        = 5 * time.Second
	DefaultCheckpointInterval = 30 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:      DefaultHTTPAddr,
				RateLimit: DefaultRateLimit,
				RateBurst: DefaultRateBurst,
			},
			Cluster: ClusterConfig{
				Addr: DefaultClusterAddr,
			},
		},
		Cluster: ClusterSection{
			GossipPort: DefaultGossipPort,
		},
		Feature: FeatureSection{
			Name:    DefaultFeatureName,
			Enabled: true,
			MinTier: DefaultMinTier,
		},
		Stats: StatsSection{
			FetchTimeout:       DefaultFetchTimeout,
			NodeTimeout:        DefaultNodeTimeout,
			CheckpointInterval: DefaultCheckpointInterval,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
