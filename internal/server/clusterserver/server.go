// Package clusterserver provides the cluster RPC server.
package clusterserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// Server owns the stats RPC listener and the cluster membership.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	handler *Handler
	fetcher *Fetcher

	mu         sync.RWMutex
	listener   net.Listener
	httpServer *http.Server
	discovery  *Discovery
	advertise  string
	started    bool
}

// NewServer creates a cluster server serving stats from source.
// Nothing listens until Start.
func NewServer(cfg Config, source StatsSource) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("cluster config: %w", err)
	}
	cfg.setDefaults()

	s := &Server{
		cfg:     cfg,
		logger:  cfg.Logger,
		handler: NewHandler(cfg.NodeID, source, cfg.Logger),
	}

	httpClient := &http.Client{}
	scheme := "http"
	if cfg.TLS != nil {
		httpClient.Transport = &http.Transport{
			TLSClientConfig:   cfg.TLS.ClientConfig(),
			ForceAttemptHTTP2: true,
		}
		scheme = "https"
	}

	s.fetcher = NewFetcher(FetcherConfig{
		NodeID:          cfg.NodeID,
		Members:         s,
		Local:           s.handler,
		HTTPClient:      httpClient,
		Scheme:          scheme,
		NodeTimeout:     cfg.NodeTimeout,
		RequireAllNodes: cfg.RequireAllNodes,
		Metrics:         cfg.Metrics,
		Logger:          cfg.Logger,
	})
	return s, nil
}

// NodeID returns the local node id.
func (s *Server) NodeID() string {
	return s.cfg.NodeID
}

// Fetcher returns the collection round runner.
func (s *Server) Fetcher() *Fetcher {
	return s.fetcher
}

// Handler returns the local NodeStats handler.
func (s *Server) Handler() *Handler {
	return s.handler
}

// Addr returns the advertised RPC address, known after Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.advertise
}

// GossipAddr returns the local gossip address, or "" in single-node mode.
func (s *Server) GossipAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.discovery == nil {
		return ""
	}
	return s.discovery.GossipAddr()
}

// Members implements Membership. Before Start, and in single-node mode,
// the local node is the only member.
func (s *Server) Members() []Member {
	s.mu.RLock()
	d, addr := s.discovery, s.advertise
	s.mu.RUnlock()

	if d != nil {
		return d.Members()
	}
	return StaticMembers{{NodeID: s.cfg.NodeID, RPCAddr: addr, Local: true}}.Members()
}

// Start binds the RPC listener, starts serving and joins the cluster.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("cluster server already started")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.RPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.RPCAddr, err)
	}

	advertise := s.cfg.AdvertiseAddr
	if advertise == "" {
		advertise = ln.Addr().String()
	}

	mux := http.NewServeMux()
	mux.Handle(s.handler.Mount(connectHandlerOptions(s.logger)...))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.TLS != nil {
		srv.TLSConfig = s.cfg.TLS.ServerConfig()
		go func() {
			if err := srv.ServeTLS(ln, "", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("cluster rpc server stopped", "error", err)
			}
		}()
	} else {
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("cluster rpc server stopped", "error", err)
			}
		}()
	}

	if s.cfg.Clustered() {
		d, err := NewDiscovery(DiscoveryConfig{
			NodeID:    s.cfg.NodeID,
			BindAddr:  s.cfg.GossipBindAddr,
			BindPort:  s.cfg.GossipBindPort,
			RPCAddr:   advertise,
			SeedNodes: s.cfg.SeedNodes,
			Logger:    s.logger,
		})
		if err != nil {
			_ = srv.Close()
			return err
		}
		// A node that rejoins may come back with new certificates.
		d.OnJoin(func(m Member) { s.fetcher.Forget(m.NodeID) })
		d.OnLeave(s.fetcher.Forget)
		s.discovery = d
	}

	s.listener = ln
	s.httpServer = srv
	s.advertise = advertise
	s.started = true

	s.logger.Info("cluster server started",
		"node_id", s.cfg.NodeID,
		"rpc_addr", advertise,
		"tls", s.cfg.TLS != nil,
		"clustered", s.cfg.Clustered())
	return nil
}

// Shutdown leaves the cluster and stops the RPC listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	d, srv := s.discovery, s.httpServer
	s.discovery, s.httpServer = nil, nil
	s.started = false
	s.mu.Unlock()

	var errs []error
	if d != nil {
		if err := d.Leave(); err != nil {
			errs = append(errs, err)
		}
		if err := d.Shutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown rpc server: %w", err))
		}
	}
	return errors.Join(errs...)
}
