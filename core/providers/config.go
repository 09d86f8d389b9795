package providers

import (
	"fmt"
)

// BaseConfig contains configuration common to all providers
type BaseConfig struct {
	// APIKey is the configured credential; a request may override it per call
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the default model to use
	Model string `json:"model" yaml:"model"`

	// BaseURL overrides the default API endpoint
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxTokens is the default maximum tokens to generate
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Temperature is the default sampling temperature; zero leaves the provider default
	Temperature float64 `json:"temperature" yaml:"temperature"`
}

// DefaultBaseConfig returns sensible defaults
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		MaxTokens:   4096,
		Temperature: 0.7,
	}
}

// Validate checks the base configuration. An empty APIKey is allowed because
// callers may supply their own credential per request.
func (c *BaseConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

// AnthropicConfig contains Claude-specific configuration
type AnthropicConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`
}

// DefaultAnthropicConfig returns Claude defaults
func DefaultAnthropicConfig() AnthropicConfig {
	base := DefaultBaseConfig()
	base.Model = "claude-3-5-sonnet-20241022"
	return AnthropicConfig{BaseConfig: base}
}

// Validate checks Claude-specific configuration
func (c *AnthropicConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return fmt.Errorf("claude config: %w", err)
	}
	return nil
}

// OpenAIConfig contains OpenAI-specific configuration
type OpenAIConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`

	// Organization ID for OpenAI
	Organization string `json:"organization,omitempty" yaml:"organization,omitempty"`

	// Project ID for OpenAI
	Project string `json:"project,omitempty" yaml:"project,omitempty"`
}

// DefaultOpenAIConfig returns OpenAI defaults
func DefaultOpenAIConfig() OpenAIConfig {
	base := DefaultBaseConfig()
	base.Model = "gpt-4o-mini"
	return OpenAIConfig{BaseConfig: base}
}

// Validate checks OpenAI-specific configuration
func (c *OpenAIConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return fmt.Errorf("openai config: %w", err)
	}
	return nil
}

// GoogleConfig contains Gemini-specific configuration
type GoogleConfig struct {
	BaseConfig `json:",inline" yaml:",inline"`

	// SafetySettings configures content filtering
	SafetySettings []SafetySetting `json:"safety_settings,omitempty" yaml:"safety_settings,omitempty"`
}

// SafetySetting configures content filtering for a category
type SafetySetting struct {
	Category  string `json:"category" yaml:"category"`
	Threshold string `json:"threshold" yaml:"threshold"`
}

// DefaultGoogleConfig returns Gemini defaults
func DefaultGoogleConfig() GoogleConfig {
	base := DefaultBaseConfig()
	base.Model = "gemini-1.5-flash"
	return GoogleConfig{BaseConfig: base}
}

// Validate checks Gemini-specific configuration
func (c *GoogleConfig) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return fmt.Errorf("gemini config: %w", err)
	}
	return nil
}

// Config groups the per-provider configuration and the default provider.
type Config struct {
	Default   ProviderType    `json:"default" yaml:"default"`
	OpenAI    OpenAIConfig    `json:"openai" yaml:"openai"`
	Google    GoogleConfig    `json:"gemini" yaml:"gemini"`
	Anthropic AnthropicConfig `json:"claude" yaml:"claude"`
}

// DefaultConfig returns defaults for every provider with OpenAI as the default.
func DefaultConfig() Config {
	return Config{
		Default:   ProviderTypeOpenAI,
		OpenAI:    DefaultOpenAIConfig(),
		Google:    DefaultGoogleConfig(),
		Anthropic: DefaultAnthropicConfig(),
	}
}
