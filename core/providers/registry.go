package providers

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry holds one adapter per provider type and the default provider.
type Registry struct {
	mu sync.RWMutex

	providers   map[ProviderType]Adapter
	defaultType ProviderType
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[ProviderType]Adapter),
	}
}

// Register adds an adapter under its own type. The first adapter registered
// becomes the default.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return errors.New("nil adapter")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[adapter.Type()] = adapter

	if len(r.providers) == 1 {
		r.defaultType = adapter.Type()
	}

	return nil
}

// RegisterAnthropic creates and registers a Claude provider
func (r *Registry) RegisterAnthropic(config AnthropicConfig) error {
	provider, err := NewAnthropicProvider(config)
	if err != nil {
		return err
	}
	return r.Register(provider)
}

// RegisterOpenAI creates and registers an OpenAI provider
func (r *Registry) RegisterOpenAI(config OpenAIConfig) error {
	provider, err := NewOpenAIProvider(config)
	if err != nil {
		return err
	}
	return r.Register(provider)
}

// RegisterGoogle creates and registers a Gemini provider
func (r *Registry) RegisterGoogle(config GoogleConfig) error {
	provider, err := NewGoogleProvider(config)
	if err != nil {
		return err
	}
	return r.Register(provider)
}

// Get returns a provider by type
func (r *Registry) Get(providerType ProviderType) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotRegistered, providerType)
	}
	return provider, nil
}

// Default returns the default provider
func (r *Registry) Default() (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultType == "" {
		return nil, ErrNoDefaultProvider
	}
	return r.providers[r.defaultType], nil
}

// DefaultType returns the default provider type, empty when none is registered.
func (r *Registry) DefaultType() ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultType
}

// SetDefault sets the default provider
func (r *Registry) SetDefault(providerType ProviderType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[providerType]; !ok {
		return fmt.Errorf("%w: %s", ErrProviderNotRegistered, providerType)
	}
	r.defaultType = providerType
	return nil
}

// Available returns all registered provider types in sorted order
func (r *Registry) Available() []ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.providers))
}

// Has checks if a provider type is registered
func (r *Registry) Has(providerType ProviderType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.providers[providerType]
	return ok
}

// RegistryBuilder provides a fluent interface for building a registry
type RegistryBuilder struct {
	registry *Registry
	errs     []error
}

// NewRegistryBuilder creates a new builder
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{
		registry: NewRegistry(),
	}
}

// FromConfig registers all three providers and the configured default.
func (b *RegistryBuilder) FromConfig(cfg Config) *RegistryBuilder {
	b.WithOpenAI(cfg.OpenAI).WithGoogle(cfg.Google).WithAnthropic(cfg.Anthropic)
	if cfg.Default != "" {
		b.WithDefault(cfg.Default)
	}
	return b
}

// WithAnthropic adds a Claude provider
func (b *RegistryBuilder) WithAnthropic(config AnthropicConfig) *RegistryBuilder {
	if err := b.registry.RegisterAnthropic(config); err != nil {
		b.errs = append(b.errs, fmt.Errorf("claude: %w", err))
	}
	return b
}

// WithOpenAI adds an OpenAI provider
func (b *RegistryBuilder) WithOpenAI(config OpenAIConfig) *RegistryBuilder {
	if err := b.registry.RegisterOpenAI(config); err != nil {
		b.errs = append(b.errs, fmt.Errorf("openai: %w", err))
	}
	return b
}

// WithGoogle adds a Gemini provider
func (b *RegistryBuilder) WithGoogle(config GoogleConfig) *RegistryBuilder {
	if err := b.registry.RegisterGoogle(config); err != nil {
		b.errs = append(b.errs, fmt.Errorf("gemini: %w", err))
	}
	return b
}

// WithDefault sets the default provider
func (b *RegistryBuilder) WithDefault(providerType ProviderType) *RegistryBuilder {
	if err := b.registry.SetDefault(providerType); err != nil {
		b.errs = append(b.errs, fmt.Errorf("default: %w", err))
	}
	return b
}

// Build returns the configured registry
func (b *RegistryBuilder) Build() (*Registry, error) {
	if err := errors.Join(b.errs...); err != nil {
		return nil, fmt.Errorf("build provider registry: %w", err)
	}
	return b.registry, nil
}
