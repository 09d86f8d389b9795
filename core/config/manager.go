package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/adalundhe/canvas/core/providers"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProjectFile is read from the working directory when present.
const ProjectFile = "canvas.yaml"

type Options struct {
	// WorkDir holds canvas.yaml and .env; defaults to ".".
	WorkDir string
	// File is an explicit config file; unlike canvas.yaml it must exist.
	File string
	// EnvFiles are loaded into the environment before overrides are applied.
	// Missing files are skipped.
	EnvFiles []string
}

type Manager struct {
	configPtr unsafe.Pointer
	opts      Options
	watchers  []func(*Config)
	watcherMu sync.RWMutex
	loadMu    sync.Mutex
}

func NewManager(opts Options) *Manager {
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	if opts.EnvFiles == nil {
		opts.EnvFiles = []string{filepath.Join(opts.WorkDir, ".env")}
	}
	m := &Manager{opts: opts}
	atomic.StorePointer(&m.configPtr, unsafe.Pointer(DefaultConfig()))
	return m
}

// Get returns the current snapshot. Callers must not mutate it.
func (m *Manager) Get() *Config {
	return (*Config)(atomic.LoadPointer(&m.configPtr))
}

// Load rebuilds the configuration: defaults, canvas.yaml, the explicit
// file, .env files, then the environment.
func (m *Manager) Load() error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	cfg := DefaultConfig()

	if err := loadYAMLFile(filepath.Join(m.opts.WorkDir, ProjectFile), cfg, false); err != nil {
		return fmt.Errorf("project config: %w", err)
	}

	if m.opts.File != "" {
		if err := loadYAMLFile(m.opts.File, cfg, true); err != nil {
			return fmt.Errorf("config file: %w", err)
		}
	}

	if err := loadEnvFiles(m.opts.EnvFiles); err != nil {
		return fmt.Errorf("env files: %w", err)
	}
	applyEnvironment(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	m.store(cfg)
	return nil
}

// Apply deep-merges override into a copy of the current snapshot. Zero
// fields in override leave the current values alone.
func (m *Manager) Apply(override *Config) error {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	cfg, err := clone(m.Get())
	if err != nil {
		return err
	}
	DeepMerge(cfg, override)
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.store(cfg)
	return nil
}

func (m *Manager) store(cfg *Config) {
	atomic.StorePointer(&m.configPtr, unsafe.Pointer(cfg))
	m.notifyWatchers(cfg)
}

func clone(cfg *Config) (*Config, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	out := &Config{}
	if err := yaml.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

func loadYAMLFile(path string, cfg *Config, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func loadEnvFiles(paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func applyEnvironment(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Providers.OpenAI.APIKey = v
	}
	if v := firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY"); v != "" {
		cfg.Providers.Google.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Providers.Anthropic.APIKey = v
	}

	if v := os.Getenv("CANVAS_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CANVAS_USAGE_DOC"); v != "" {
		cfg.Server.UsageDoc = v
	}
	if v := os.Getenv("CANVAS_DEFAULT_PROVIDER"); v != "" {
		if t, err := providers.ParseProviderType(v); err == nil {
			cfg.Providers.Default = t
		}
	}
	if v := os.Getenv("CANVAS_ROUTER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Router.Timeout = d
		}
	}
	if v := os.Getenv("CANVAS_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("CANVAS_REDIS_ADDR"); v != "" {
		cfg.Store.Addr = v
	}
	if v := os.Getenv("CANVAS_REDIS_PASSWORD"); v != "" {
		cfg.Store.Password = v
	}
	if v := os.Getenv("CANVAS_SQLITE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CANVAS_SANDBOX_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sandbox.ExecutionTimeout = d
		}
	}
	if v := os.Getenv("CANVAS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CANVAS_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

func (m *Manager) Reload() error {
	return m.Load()
}
