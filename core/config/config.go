package config

import (
	"fmt"
	"time"

	coreerrors "github.com/adalundhe/canvas/core/errors"
	"github.com/adalundhe/canvas/core/providers"
)

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Router    RouterConfig     `yaml:"router"`
	Providers providers.Config `yaml:"providers"`
	Store     StoreConfig      `yaml:"store"`
	Sandbox   SandboxConfig    `yaml:"sandbox"`
	Logging   LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// UsageDoc is a markdown file served at /api/docs/usage.
	UsageDoc string `yaml:"usage_doc"`
	// UserHeader carries the authenticated user id set by the fronting proxy.
	UserHeader string `yaml:"user_header"`
}

type RouterConfig struct {
	// Timeout bounds a single provider attempt.
	Timeout    time.Duration                `yaml:"timeout"`
	Classifier *coreerrors.ClassifierConfig `yaml:"classifier"`
}

type StoreConfig struct {
	// Backend is memory, redis or sqlite.
	Backend   string `yaml:"backend"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	Prefix    string `yaml:"prefix"`
	Path      string `yaml:"path"`
	CacheSize int    `yaml:"cache_size"`
}

type SandboxConfig struct {
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`
	MaxCallStack     int           `yaml:"max_call_stack"`
	MaxTimers        int           `yaml:"max_timers"`
	// TranspileCacheBytes caps the transpiled-script cache.
	TranspileCacheBytes int64 `yaml:"transpile_cache_bytes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			UserHeader:      "X-Canvas-User",
		},
		Router: RouterConfig{
			Timeout:    60 * time.Second,
			Classifier: coreerrors.DefaultClassifierConfig(),
		},
		Providers: providers.DefaultConfig(),
		Store: StoreConfig{
			Backend:   StoreMemory,
			Addr:      "localhost:6379",
			Path:      "canvas.db",
			CacheSize: 1024,
		},
		Sandbox: SandboxConfig{
			ExecutionTimeout:    2 * time.Second,
			MaxCallStack:        1024,
			MaxTimers:           64,
			TranspileCacheBytes: 16 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the values that would otherwise fail late at wiring time.
func (c *Config) Validate() error {
	if c.Providers.Default != "" {
		if _, err := providers.ParseProviderType(string(c.Providers.Default)); err != nil {
			return fmt.Errorf("providers.default: %w", err)
		}
	}
	if c.Router.Timeout <= 0 {
		return fmt.Errorf("router.timeout must be positive")
	}
	switch c.Store.Backend {
	case StoreMemory, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("store.backend must be memory, redis, or sqlite")
	}
	if c.Sandbox.ExecutionTimeout <= 0 {
		return fmt.Errorf("sandbox.execution_timeout must be positive")
	}
	return nil
}
