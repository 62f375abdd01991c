// Package config provides configuration verification.
package config

import (
	"errors"
	"fmt"
	"net"

	"github.com/yndnr/usagemesh-go/internal/license"
)

// maxSocketPath is the portable limit of a Unix socket path.
const maxSocketPath = 103

// Verify validates the configuration and reports every problem found.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyCluster(&cfg.Cluster),
		verifyFeature(&cfg.Feature),
		verifyLicense(&cfg.License),
		verifyStats(&cfg.Stats),
		verifyLog(&cfg.Log),
	)
}

func verifyAddr(name, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", name)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	var errs []error
	errs = append(errs, verifyAddr("server.http.addr", cfg.HTTP.Addr))
	errs = append(errs, verifyAddr("server.cluster.addr", cfg.Cluster.Addr))
	if cfg.Cluster.AdvertiseAddr != "" {
		errs = append(errs, verifyAddr("server.cluster.advertise_addr", cfg.Cluster.AdvertiseAddr))
	}
	if cfg.HTTP.Addr != "" && cfg.HTTP.Addr == cfg.Cluster.Addr {
		errs = append(errs, errors.New("server.http.addr and server.cluster.addr must differ"))
	}
	if cfg.HTTP.RateLimit < 0 {
		errs = append(errs, errors.New("server.http.rate_limit must not be negative"))
	}
	if cfg.HTTP.RateLimit > 0 && cfg.HTTP.RateBurst < 1 {
		errs = append(errs, errors.New("server.http.rate_burst must be at least 1"))
	}
	if err := cfg.Cluster.TLS.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server.cluster.tls: %w", err))
	}
	if len(cfg.Local.Socket) > maxSocketPath {
		errs = append(errs, fmt.Errorf("server.local.socket is longer than %d bytes", maxSocketPath))
	}
	return errors.Join(errs...)
}

func verifyCluster(cfg *ClusterSection) error {
	if cfg.GossipPort < 0 || cfg.GossipPort > 65535 {
		return fmt.Errorf("cluster.gossip_port %d out of range", cfg.GossipPort)
	}
	if cfg.GossipAddr == "" && len(cfg.Seeds) > 0 {
		return errors.New("cluster.seeds requires cluster.gossip_addr")
	}
	for _, seed := range cfg.Seeds {
		if err := verifyAddr("cluster.seeds", seed); err != nil {
			return err
		}
	}
	return nil
}

func verifyFeature(cfg *FeatureSection) error {
	if cfg.Name == "" {
		return errors.New("feature.name is required")
	}
	tier, err := license.ParseTier(cfg.MinTier)
	if err != nil {
		return fmt.Errorf("feature.min_tier: %w", err)
	}
	if tier == license.TierTrial {
		return errors.New("feature.min_tier: trial is not a paid tier; use basic to allow every license")
	}
	return nil
}

func verifyLicense(cfg *LicenseSection) error {
	if cfg.File != "" && cfg.Secret == "" {
		return errors.New("license.secret is required when license.file is set")
	}
	return nil
}

func verifyStats(cfg *StatsSection) error {
	var errs []error
	if cfg.FetchTimeout <= 0 {
		errs = append(errs, errors.New("stats.fetch_timeout must be positive"))
	}
	if cfg.NodeTimeout <= 0 {
		errs = append(errs, errors.New("stats.node_timeout must be positive"))
	}
	if cfg.FetchTimeout > 0 && cfg.NodeTimeout > cfg.FetchTimeout {
		errs = append(errs, errors.New("stats.node_timeout must not exceed stats.fetch_timeout"))
	}
	if cfg.CheckpointInterval <= 0 {
		errs = append(errs, errors.New("stats.checkpoint_interval must be positive"))
	}
	return errors.Join(errs...)
}

func verifyLog(cfg *LogSection) error {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch cfg.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q is not json or text", cfg.Format)
	}
	return nil
}
