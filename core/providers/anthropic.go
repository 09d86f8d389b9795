package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// jsonInstruction is appended to the system prompt in JSON mode; the Messages
// API has no response format switch.
const jsonInstruction = "Respond with a single JSON object and nothing else."

// AnthropicProvider implements Adapter for Anthropic's Claude models
type AnthropicProvider struct {
	client *anthropic.Client
	config AnthropicConfig
}

// NewAnthropicProvider creates a new Claude provider with the given configuration
func NewAnthropicProvider(config AnthropicConfig) (*AnthropicProvider, error) {
	defaults := DefaultAnthropicConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaults.MaxTokens
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithMaxRetries(0),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicProvider{
		client: &client,
		config: config,
	}, nil
}

func (p *AnthropicProvider) Type() ProviderType {
	return ProviderTypeClaude
}

// DefaultModel returns the provider's default model
func (p *AnthropicProvider) DefaultModel() string {
	return p.config.Model
}

func (p *AnthropicProvider) Credential() string {
	return p.config.APIKey
}

// Send performs a non-streaming messages request and concatenates the text blocks.
func (p *AnthropicProvider) Send(ctx context.Context, call Call) (string, error) {
	if call.APIKey == "" {
		return "", missingCredential(ProviderTypeClaude)
	}

	msg, err := p.client.Messages.New(ctx, p.buildParams(call), option.WithAPIKey(call.APIKey))
	if err != nil {
		return "", p.convertError(err)
	}
	if msg == nil || len(msg.Content) == 0 {
		return "", emptyResponse(ProviderTypeClaude)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

// buildParams constructs Messages API parameters from a Call
func (p *AnthropicProvider) buildParams(call Call) anthropic.MessageNewParams {
	model := call.Model
	if model == "" {
		model = p.config.Model
	}

	system, rest := SplitSystem(call.Messages)
	if call.Mode == ModeJSON {
		system = append(system, jsonInstruction)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(p.config.MaxTokens),
		Messages:  p.convertMessages(rest),
	}

	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n")}}
	}

	if call.Temperature != nil {
		params.Temperature = anthropic.Float(*call.Temperature)
	} else if p.config.Temperature > 0 {
		params.Temperature = anthropic.Float(p.config.Temperature)
	}

	return params
}

func (p *AnthropicProvider) convertMessages(messages []Message) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return result
}

func (p *AnthropicProvider) convertError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		message := apiErr.RawJSON()
		if message == "" {
			message = http.StatusText(apiErr.StatusCode)
		}
		return &ProviderError{
			Provider:   ProviderTypeClaude,
			StatusCode: apiErr.StatusCode,
			Message:    message,
			Cause:      err,
		}
	}
	return fmt.Errorf("claude: %w", err)
}
