package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/yndnr/minikv/internal/infra/buildinfo"
	"github.com/yndnr/minikv/internal/infra/confloader"
	"github.com/yndnr/minikv/internal/infra/shutdown"
	"github.com/yndnr/minikv/internal/server/config"
	"github.com/yndnr/minikv/internal/server/httpserver"
	"github.com/yndnr/minikv/internal/server/kvserver"
	"github.com/yndnr/minikv/internal/storage/memory"
	"github.com/yndnr/minikv/internal/telemetry/logger"
	"github.com/yndnr/minikv/internal/telemetry/metric"
)

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
		addr        = flag.String("addr", "", "Listen address (overrides server.addr)")
		shards      = flag.Int("shards", 0, "Number of store shards (overrides store.shards)")
		logLevel    = flag.String("log-level", "", "Log level (overrides log.level)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("minikv-server %s\n", buildinfo.String())
		return nil
	}

	overrides := make(map[string]any)
	if *addr != "" {
		overrides["server.addr"] = *addr
	}
	if *shards > 0 {
		overrides["store.shards"] = *shards
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}

	cfg, loader, err := loadConfig(*configFile, overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting minikv-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)

	store := memory.New(memory.WithShardCount(cfg.Store.Shards))

	var metrics *metric.Registry
	if cfg.Metrics.Enabled {
		metrics = metric.NewRegistry()
		metrics.MustRegister(metric.NewStoreCollector(store))
	}

	kv := kvserver.New(kvConfig(cfg), store,
		kvserver.WithLogger(slogLogger),
		kvserver.WithMetrics(metrics),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownHandler := shutdown.NewHandler(30*time.Second, slogLogger)

	// Hooks run in reverse: the admin endpoint stays up until the kv
	// listener and its connections are gone.
	if cfg.Metrics.Enabled {
		adminServer := httpserver.New(cfg.Metrics.Addr, httpserver.NewRouter(&httpserver.RouterConfig{
			Metrics:     metrics.Handler(),
			Store:       store,
			Connections: kv.ActiveConnections,
			Ready:       func() bool { return kv.Addr() != nil },
			Logger:      slogLogger,
		}))
		shutdownHandler.OnShutdown("admin http server", adminServer.Shutdown)

		go func() {
			log.Info("admin HTTP server listening", "addr", cfg.Metrics.Addr)
			if err := adminServer.ListenAndServe(); err != nil {
				log.Error("admin HTTP server error", "error", err)
			}
		}()
	}

	if err := kv.Start(ctx); err != nil {
		return fmt.Errorf("start kv server: %w", err)
	}
	shutdownHandler.OnShutdown("kv server", kv.Shutdown)

	if *configFile != "" {
		watcher, err := watchConfig(*configFile, loader, slogLogger)
		if err != nil {
			log.Warn("config watch disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	log.Info("server started, press Ctrl+C to stop", "addr", kv.Addr().String())
	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file, environment and flag overrides.
func loadConfig(configFile string, overrides map[string]any) (*config.ServerConfig, *confloader.Loader, error) {
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithFlags(overrides)}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
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
	return log, log.Slog(), nil
}

func kvConfig(cfg *config.ServerConfig) *kvserver.Config {
	return &kvserver.Config{
		Address:        cfg.Server.Addr,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		RateLimit:      cfg.Server.RateLimit,
		MaxConnections: cfg.Server.MaxConnections,
	}
}

// watchConfig reloads the config file on change and applies the settings
// that can change at runtime. Only log.level is live; other changes are
// logged and take effect on restart.
func watchConfig(path string, loader *confloader.Loader, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(path); err != nil {
		return nil, errors.Join(err, watcher.Stop())
	}

	watcher.OnChange(func(string) {
		next := config.Default()
		if err := loader.Reload(next); err != nil {
			log.Error("config reload failed", "error", err)
			return
		}
		if err := config.Verify(next); err != nil {
			log.Error("reloaded config rejected", "error", err)
			return
		}
		if next.Log.Level != logger.GetLevel() {
			logger.SetLevel(next.Log.Level)
			log.Info("log level changed", "level", next.Log.Level)
		}
	})
	watcher.StartAsync()
	return watcher, nil
}
