// Package config provides conversion to the cluster server configuration.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/yndnr/usagemesh-go/internal/infra/tlsroots"
	"github.com/yndnr/usagemesh-go/internal/server/clusterserver"
)

// NodeIDPrefix prefixes generated node ids.
const NodeIDPrefix = "umnode-"

// ResolveNodeID fills cfg.Cluster.NodeID when it is empty and returns it.
func ResolveNodeID(cfg *ServerConfig, logger *slog.Logger) (string, error) {
	if cfg.Cluster.NodeID != "" {
		return cfg.Cluster.NodeID, nil
	}
	id, err := generateNodeID()
	if err != nil {
		return "", fmt.Errorf("generate node ID: %w", err)
	}
	cfg.Cluster.NodeID = id
	if logger != nil {
		logger.Info("generated cluster node ID", "node_id", id)
	}
	return id, nil
}

// ToClusterConfig maps the configuration onto clusterserver.Config.
// tls is nil unless server.cluster.tls is configured.
func ToClusterConfig(cfg *ServerConfig, tls *tlsroots.Material, metrics clusterserver.FailureObserver, logger *slog.Logger) (clusterserver.Config, error) {
	if cfg == nil {
		return clusterserver.Config{}, fmt.Errorf("server config is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	nodeID, err := ResolveNodeID(cfg, logger)
	if err != nil {
		return clusterserver.Config{}, err
	}

	return clusterserver.Config{
		NodeID:          nodeID,
		RPCAddr:         cfg.Server.Cluster.Addr,
		AdvertiseAddr:   cfg.Server.Cluster.AdvertiseAddr,
		GossipBindAddr:  cfg.Cluster.GossipAddr,
		GossipBindPort:  cfg.Cluster.GossipPort,
		SeedNodes:       cfg.Cluster.Seeds,
		NodeTimeout:     cfg.Stats.NodeTimeout,
		RequireAllNodes: cfg.Stats.RequireAllNodes,
		TLS:             tls,
		Metrics:         metrics,
		Logger:          logger,
	}, nil
}

// generateNodeID returns "umnode-" followed by 16 hex characters.
func generateNodeID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return NodeIDPrefix + hex.EncodeToString(buf), nil
}
