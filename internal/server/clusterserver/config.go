// Package clusterserver provides the cluster server configuration.
package clusterserver

import (
	"errors"
	"log/slog"
	"time"

	"github.com/yndnr/usagemesh-go/internal/infra/tlsroots"
)

// DefaultNodeTimeout bounds a single node's stats request.
const DefaultNodeTimeout = 5 * time.Second

// Config configures the cluster server.
type Config struct {
	// NodeID is the unique identifier of this node.
	NodeID string

	// RPCAddr is the bind address of the stats RPC listener.
	RPCAddr string

	// AdvertiseAddr is the RPC address published to peers.
	// Defaults to the bound listener address.
	AdvertiseAddr string

	// GossipBindAddr enables memberlist. Empty runs a single node.
	GossipBindAddr string

	// GossipBindPort is the memberlist port. Zero picks a free port.
	GossipBindPort int

	// SeedNodes are gossip addresses (host:port) joined at startup.
	SeedNodes []string

	// NodeTimeout bounds each remote stats request.
	NodeTimeout time.Duration

	// RequireAllNodes fails a collection round when any node fails.
	RequireAllNodes bool

	// TLS enables mutual TLS on the RPC listener and client. Nil is plaintext.
	TLS *tlsroots.Material

	// Metrics receives node failures. Optional.
	Metrics FailureObserver

	Logger *slog.Logger
}

// Clustered reports whether gossip membership is enabled.
func (c *Config) Clustered() bool {
	return c.GossipBindAddr != ""
}

func (c *Config) validate() error {
	if c.NodeID == "" {
		return errors.New("node_id is required")
	}
	if c.RPCAddr == "" {
		return errors.New("rpc_addr is required")
	}
	if !c.Clustered() && len(c.SeedNodes) > 0 {
		return errors.New("seed nodes require a gossip bind address")
	}
	if c.NodeTimeout < 0 {
		return errors.New("node_timeout must not be negative")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.NodeTimeout == 0 {
		c.NodeTimeout = DefaultNodeTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
