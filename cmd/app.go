package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"

	"github.com/adalundhe/canvas/core/chat"
	"github.com/adalundhe/canvas/core/config"
	"github.com/adalundhe/canvas/core/database"
	coreerrors "github.com/adalundhe/canvas/core/errors"
	"github.com/adalundhe/canvas/core/logging"
	"github.com/adalundhe/canvas/core/metrics"
	"github.com/adalundhe/canvas/core/providers"
	"github.com/adalundhe/canvas/core/router"
	"github.com/adalundhe/canvas/core/sandbox"
	"github.com/adalundhe/canvas/core/studio"
	"github.com/adalundhe/canvas/core/tokens"
	"github.com/adalundhe/canvas/core/transpile"
)

// app is the wired process: config, logger, stores, router and sandbox.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	tokens     tokens.Store
	chats      chat.Store
	router     *router.Router
	studio     *studio.Service
	transpiler *transpile.Transpiler
	engine     *sandbox.Engine

	closers []func() error
}

func loadConfig() (*config.Config, error) {
	m := config.NewManager(config.Options{File: configFile})
	if err := m.Load(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := m.Get()
	if logLevel != "" || logFormat != "" {
		override := &config.Config{Logging: config.LoggingConfig{Level: logLevel, Format: logFormat}}
		if err := m.Apply(override); err != nil {
			return nil, err
		}
		cfg = m.Get()
	}
	return cfg, nil
}

// newApp wires everything from cfg. Providers are optional: a registry
// without credentials still serves previews and token edits.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format),
		registry: prometheus.NewRegistry(),
	}
	slog.SetDefault(a.logger)
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}

	registry, err := providers.NewRegistryBuilder().FromConfig(cfg.Providers).Build()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("providers: %w", err)
	}
	classifier, err := coreerrors.NewErrorClassifierFromConfig(cfg.Router.Classifier)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("classifier: %w", err)
	}
	a.router = router.New(registry,
		router.WithClassifier(classifier),
		router.WithTimeout(cfg.Router.Timeout),
		router.WithLogger(a.logger),
		router.WithMetrics(a.metrics),
	)
	a.studio = studio.New(a.router, a.tokens, a.chats, studio.WithLogger(a.logger))

	cache, err := transpile.NewCache(cfg.Sandbox.TranspileCacheBytes)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("transpile cache: %w", err)
	}
	a.closers = append(a.closers, func() error { cache.Close(); return nil })
	a.transpiler = transpile.New(transpile.WithCache(cache), transpile.WithLogger(a.logger))

	runner := sandbox.NewRunner(sandbox.Limits{
		ExecutionTimeout: cfg.Sandbox.ExecutionTimeout,
		MaxCallStack:     cfg.Sandbox.MaxCallStack,
		MaxTimers:        cfg.Sandbox.MaxTimers,
	}, sandbox.WithLogger(a.logger), sandbox.WithMetrics(a.metrics))
	manager := sandbox.NewManager(runner)
	a.closers = append(a.closers, func() error { manager.Close(); return nil })
	a.engine = sandbox.NewEngine(manager, a.transpiler)

	return a, nil
}

func (a *app) openStores(ctx context.Context) error {
	sc := a.cfg.Store
	switch sc.Backend {
	case config.StoreRedis:
		client := backend.NewClient(&backend.Options{Addr: sc.Addr, Password: sc.Password, DB: sc.DB})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis %s: %w", sc.Addr, err)
		}
		a.tokens = tokens.NewRedisStoreFromClient(client, tokens.WithPrefix(sc.Prefix))
		a.chats = chat.NewRedisStoreFromClient(client, chat.WithPrefix(sc.Prefix))
	case config.StoreSQLite:
		pool, err := database.OpenMigrated(ctx, sc.Path)
		if err != nil {
			return fmt.Errorf("sqlite %s: %w", sc.Path, err)
		}
		a.closers = append(a.closers, pool.Close)
		a.tokens = tokens.NewSQLiteStore(pool)
		a.chats = chat.NewSQLiteStore(pool)
	default:
		a.tokens = tokens.NewMemoryStore()
		a.chats = chat.NewMemoryStore()
	}

	if sc.CacheSize > 0 && sc.Backend != config.StoreMemory {
		cached, err := tokens.NewCachedStore(a.tokens, sc.CacheSize)
		if err != nil {
			return err
		}
		a.tokens = cached
	}
	a.logger.Debug("stores opened", "backend", sc.Backend)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// setup loads the config and wires the app for a command.
func setup(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}
