// Package main provides the entry point for usagemesh-server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/yndnr/usagemesh-go/internal/core/domain"
	"github.com/yndnr/usagemesh-go/internal/core/service"
	"github.com/yndnr/usagemesh-go/internal/infra/buildinfo"
	"github.com/yndnr/usagemesh-go/internal/infra/confloader"
	"github.com/yndnr/usagemesh-go/internal/infra/shutdown"
	"github.com/yndnr/usagemesh-go/internal/infra/tlsroots"
	"github.com/yndnr/usagemesh-go/internal/license"
	"github.com/yndnr/usagemesh-go/internal/server/clusterserver"
	"github.com/yndnr/usagemesh-go/internal/server/config"
	"github.com/yndnr/usagemesh-go/internal/server/httpserver"
	"github.com/yndnr/usagemesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/usagemesh-go/internal/server/localserver"
	"github.com/yndnr/usagemesh-go/internal/stats"
	"github.com/yndnr/usagemesh-go/internal/storage"
	"github.com/yndnr/usagemesh-go/internal/telemetry/logger"
	"github.com/yndnr/usagemesh-go/internal/telemetry/metric"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("usagemesh-server " + buildinfo.String())
		return nil
	}

	cfg, loader, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting usagemesh-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)
	if keys := loader.KeysFrom(confloader.SourceEnv); len(keys) > 0 {
		log.Info("configuration overridden by environment", "keys", keys)
	}
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	ctx := context.Background()
	shutdownHandler := shutdown.NewHandler(shutdownTimeout, slogLogger)
	registry := metric.NewRegistry()

	// Watcher for the config and license files
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(slogLogger))
	if err != nil {
		return fmt.Errorf("init file watcher: %w", err)
	}
	watcher.StartAsync()
	shutdownHandler.OnShutdown("file watcher", func(context.Context) error {
		return watcher.Stop()
	})
	if *configFile != "" {
		if err := watcher.Watch(*configFile, func(string) { reloadLogLevel(*configFile, log) }); err != nil {
			log.Warn("config file will not be hot reloaded", "error", err)
		}
	}

	holder, err := initLicense(cfg, watcher, log)
	if err != nil {
		return fmt.Errorf("init license: %w", err)
	}

	recorder := stats.NewRecorder()

	tlsMaterial, err := initClusterTLS(cfg, watcher, slogLogger)
	if err != nil {
		return fmt.Errorf("init cluster tls: %w", err)
	}
	clusterCfg, err := config.ToClusterConfig(cfg, tlsMaterial, registry, slogLogger)
	if err != nil {
		return fmt.Errorf("cluster config: %w", err)
	}
	log = log.With("node_id", clusterCfg.NodeID)

	checkpointer, store, err := initCheckpoints(ctx, cfg, recorder, clusterCfg.NodeID, registry, shutdownHandler, log)
	if err != nil {
		return fmt.Errorf("init checkpoints: %w", err)
	}

	cluster, err := clusterserver.NewServer(clusterCfg, recorder)
	if err != nil {
		return fmt.Errorf("init cluster server: %w", err)
	}
	if err := cluster.Start(ctx); err != nil {
		return fmt.Errorf("start cluster server: %w", err)
	}
	shutdownHandler.OnShutdown("cluster server", cluster.Shutdown)

	checkpointer.Start()
	shutdownHandler.OnShutdown("stats checkpointer", checkpointer.Stop)

	usage, err := service.NewUsageService(service.UsageConfig{
		Feature: cfg.Feature.Name,
		Enabled: cfg.Feature.Enabled,
		License: holder.Source(),
		Fetcher: cluster.Fetcher(),
		Logger:  log,
		Metrics: registry,
	})
	if err != nil {
		return fmt.Errorf("init usage service: %w", err)
	}

	registry.Registerer().MustRegister(metric.NewCollector(metric.FeatureState{
		Feature: cfg.Feature.Name,
		Enabled: cfg.Feature.Enabled,
		Allowed: func() bool { return holder.Current().IsFeatureAllowed(cfg.Feature.Name) },
		Members: func() int { return len(cluster.Members()) },
	}))

	var serving atomic.Bool
	h := handler.New(handler.Config{
		NodeID:   clusterCfg.NodeID,
		Usage:    usage,
		Recorder: recorder,
		Cluster:  cluster,
		License:  holder.Current,

		Checkpoints: store,
		Ready: func() error {
			if !serving.Load() {
				return errors.New("server is starting")
			}
			return nil
		},
		Metrics:      registry.Handler(),
		FetchTimeout: cfg.Stats.FetchTimeout,
		Logger:       slogLogger,
		Started:      time.Now(),
	})

	routerCfg := httpserver.DefaultRouterConfig()
	routerCfg.Handler = h
	routerCfg.Logger = slogLogger
	routerCfg.Metrics = registry
	routerCfg.RateLimit = cfg.Server.HTTP.RateLimit
	routerCfg.RateBurst = cfg.Server.HTTP.RateBurst

	httpServer := httpserver.New(cfg.Server.HTTP.Addr, httpserver.NewRouter(routerCfg))
	shutdownHandler.OnShutdown("http server", func(ctx context.Context) error {
		serving.Store(false)
		return httpServer.Shutdown(ctx)
	})

	if socket := cfg.Server.Local.Socket; socket != "" {
		local := localserver.New(socket, localserver.NewHandler(h, localserver.Actions{
			ReloadLicense: func() error {
				if cfg.License.File == "" {
					holder.Clear()
					return domain.ErrLicenseNotLoaded.WithDetails("no license file configured")
				}
				return holder.LoadFile(cfg.License.File)
			},
			Checkpoint: checkpointer.Flush,
			Shutdown:   shutdownHandler.Trigger,
		}, slogLogger), slogLogger)
		if err := local.Listen(); err != nil {
			return fmt.Errorf("start local socket: %w", err)
		}
		shutdownHandler.OnShutdown("local socket", local.Shutdown)
		go func() {
			if err := local.Serve(); err != nil {
				log.Error("local socket error", "error", err)
			}
		}()
	}

	ln, err := httpServer.Listen(ctx)
	if err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	go func() {
		log.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger()
		}
	}()
	serving.Store(true)

	log.Info("server started",
		"feature", cfg.Feature.Name,
		"enabled", cfg.Feature.Enabled,
		"cluster_addr", cluster.Addr(),
		"gossip_addr", cluster.GossipAddr())

	if err := shutdownHandler.Wait(context.Background()); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from defaults, file and environment.
func loadConfig(configFile string) (*config.ServerConfig, *confloader.Loader, error) {
	cfg := config.Default()

	loader := confloader.NewLoader(confloader.WithConfigFile(configFile))
	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, loader, nil
}

// initLogger initializes the structured logger.
// Returns both the logger interface and slog.Logger for components that need it.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.SetDefault(log)
	return log, logger.ToSlog(log), nil
}

// reloadLogLevel applies log.level from a changed config file. Other settings
// need a restart.
func reloadLogLevel(path string, log logger.Logger) {
	cfg, _, err := loadConfig(path)
	if err != nil {
		log.Warn("ignoring invalid config change", "file", path, "error", err)
		return
	}
	if cfg.Log.Level == logger.GetLevel() {
		return
	}
	logger.SetLevel(cfg.Log.Level)
	log.Info("log level changed", "level", cfg.Log.Level)
}

// initLicense installs the configured license file and reloads it on change.
// A missing or invalid license leaves the node running unlicensed.
func initLicense(cfg *config.ServerConfig, watcher *confloader.Watcher, log logger.Logger) (*license.Holder, error) {
	policy := license.DefaultPolicy()
	tier, err := license.ParseTier(cfg.Feature.MinTier)
	if err != nil {
		return nil, err
	}
	policy.MinTier = map[string]license.Tier{cfg.Feature.Name: tier}

	holder := license.NewHolder(cfg.License.Secret, log, license.WithPolicy(policy))
	holder.OnChange = func(s *license.State) {
		log.Info("license state changed",
			"licensed", s != nil,
			"feature_allowed", s.IsFeatureAllowed(cfg.Feature.Name))
	}

	path := cfg.License.File
	if path == "" {
		log.Warn("no license file configured, feature usage will be reported as unavailable")
		return holder, nil
	}
	if err := holder.LoadFile(path); err != nil {
		log.Warn("license not installed", "file", path, "error", err)
	}
	if err := watcher.Watch(path, func(string) {
		if err := holder.LoadFile(path); err != nil {
			log.Warn("license reload failed", "file", path, "error", err)
		}
	}); err != nil {
		log.Warn("license file will not be hot reloaded", "file", path, "error", err)
	}
	return holder, nil
}

// initClusterTLS loads the cluster TLS material, if configured, and reloads
// the key pair when its files change.
func initClusterTLS(cfg *config.ServerConfig, watcher *confloader.Watcher, log *slog.Logger) (*tlsroots.Material, error) {
	tlsCfg := cfg.Server.Cluster.TLS
	if !tlsCfg.Enabled() {
		return nil, nil
	}
	material, err := tlsroots.Load(tlsCfg, log)
	if err != nil {
		return nil, err
	}

	reload := func(string) {
		if err := material.KeyPair.Reload(); err != nil {
			log.Warn("cluster key pair reload failed", "error", err)
		}
	}
	certFile, keyFile := material.KeyPair.Files()
	for _, f := range []string{certFile, keyFile} {
		if err := watcher.Watch(f, reload); err != nil {
			log.Warn("cluster tls file will not be hot reloaded", "file", f, "error", err)
		}
	}
	return material, nil
}

// initCheckpoints opens the checkpoint store and restores the recorder from
// the node's last snapshot.
func initCheckpoints(
	ctx context.Context,
	cfg *config.ServerConfig,
	recorder *stats.Recorder,
	nodeID string,
	registry *metric.Registry,
	shutdownHandler *shutdown.Handler,
	log logger.Logger,
) (*stats.Checkpointer, *storage.CheckpointStore, error) {
	store, err := storage.Open(storage.DefaultConfig(cfg.Stats.PersistDir), logger.ToSlog(log))
	if err != nil {
		return nil, nil, err
	}
	store.RegisterMetrics(registry.Registerer())
	// Registered first so it runs after the checkpointer's final save
	shutdownHandler.OnShutdown("checkpoint store", func(context.Context) error {
		return store.Close()
	})

	checkpointer := stats.NewCheckpointer(recorder, store, nodeID, cfg.Stats.CheckpointInterval, log)
	checkpointer.IsNotFound = func(err error) bool { return errors.Is(err, storage.ErrKeyNotFound) }
	if err := checkpointer.Restore(ctx); err != nil {
		return nil, nil, err
	}
	return checkpointer, store, nil
}
