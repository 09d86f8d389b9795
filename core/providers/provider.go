package providers

import (
	"context"
	"fmt"
	"strings"
)

// ProviderType identifies one of the supported model backends.
type ProviderType string

const (
	ProviderTypeOpenAI ProviderType = "openai"
	ProviderTypeGemini ProviderType = "gemini"
	ProviderTypeClaude ProviderType = "claude"
)

// AllProviderTypes lists the closed set of backends in a stable order.
func AllProviderTypes() []ProviderType {
	return []ProviderType{ProviderTypeOpenAI, ProviderTypeGemini, ProviderTypeClaude}
}

var providerAliases = map[string]ProviderType{
	"openai":    ProviderTypeOpenAI,
	"gpt":       ProviderTypeOpenAI,
	"gemini":    ProviderTypeGemini,
	"google":    ProviderTypeGemini,
	"claude":    ProviderTypeClaude,
	"anthropic": ProviderTypeClaude,
}

// ParseProviderType resolves a provider name or alias.
func ParseProviderType(name string) (ProviderType, error) {
	if t, ok := providerAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown provider %q", name)
}

func (t ProviderType) String() string {
	return string(t)
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ResponseMode tells the adapter whether the caller expects prose or a JSON object.
type ResponseMode string

const (
	ModeText ResponseMode = "text"
	ModeJSON ResponseMode = "json"
)

// Call is the per-request configuration handed to an adapter. It is built
// fresh for every attempt and never shared between requests.
type Call struct {
	APIKey      string
	Model       string
	Messages    []Message
	Mode        ResponseMode
	Temperature *float64
}

// WithAPIKey returns a copy of c using key.
func (c Call) WithAPIKey(key string) Call {
	c.APIKey = key
	return c
}

// Adapter normalizes one provider's wire protocol.
type Adapter interface {
	Type() ProviderType
	DefaultModel() string
	// Credential returns the configured API key, which may be empty.
	Credential() string
	Send(ctx context.Context, call Call) (string, error)
}

// StreamingAdapter is implemented by adapters that can deliver text incrementally.
type StreamingAdapter interface {
	Adapter
	SendStream(ctx context.Context, call Call, onChunk func(chunk string) error) (string, error)
}

// SplitSystem separates system messages from the conversation, preserving order.
func SplitSystem(messages []Message) (system []string, rest []Message) {
	rest = make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
