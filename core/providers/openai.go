package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIProvider implements StreamingAdapter over the chat completions API.
// The client carries no credential; every call supplies its own key.
type OpenAIProvider struct {
	client *openai.Client
	config OpenAIConfig
}

// NewOpenAIProvider creates a new OpenAI provider with the given configuration
func NewOpenAIProvider(config OpenAIConfig) (*OpenAIProvider, error) {
	defaults := DefaultOpenAIConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaults.MaxTokens
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Retries belong to the router; a 429 must surface on the first attempt.
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	if config.Organization != "" {
		opts = append(opts, option.WithHeader("OpenAI-Organization", config.Organization))
	}

	if config.Project != "" {
		opts = append(opts, option.WithHeader("OpenAI-Project", config.Project))
	}

	client := openai.NewClient(opts...)

	return &OpenAIProvider{
		client: &client,
		config: config,
	}, nil
}

func (p *OpenAIProvider) Type() ProviderType {
	return ProviderTypeOpenAI
}

// DefaultModel returns the provider's default model
func (p *OpenAIProvider) DefaultModel() string {
	return p.config.Model
}

func (p *OpenAIProvider) Credential() string {
	return p.config.APIKey
}

// Send performs a buffered chat completion.
func (p *OpenAIProvider) Send(ctx context.Context, call Call) (string, error) {
	if call.APIKey == "" {
		return "", missingCredential(ProviderTypeOpenAI)
	}

	completion, err := p.client.Chat.Completions.New(ctx, p.buildParams(call), option.WithAPIKey(call.APIKey))
	if err != nil {
		return "", p.convertError(err)
	}
	if len(completion.Choices) == 0 {
		return "", emptyResponse(ProviderTypeOpenAI)
	}

	var text strings.Builder
	for _, choice := range completion.Choices {
		text.WriteString(choice.Message.Content)
	}
	return text.String(), nil
}

// SendStream forwards content deltas to onChunk as they arrive and returns the
// assembled text once the stream ends.
func (p *OpenAIProvider) SendStream(ctx context.Context, call Call, onChunk func(chunk string) error) (string, error) {
	if call.APIKey == "" {
		return "", missingCredential(ProviderTypeOpenAI)
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, p.buildParams(call), option.WithAPIKey(call.APIKey))
	defer stream.Close()

	acc := NewStreamAccumulator()
	for stream.Next() {
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			delta := choice.Delta.Content
			if delta == "" {
				continue
			}
			acc.Add(delta)
			if onChunk != nil {
				if err := onChunk(delta); err != nil {
					return acc.Text(), err
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return acc.Text(), p.convertError(err)
	}

	return acc.Text(), nil
}

// buildParams constructs chat completion parameters from a Call
func (p *OpenAIProvider) buildParams(call Call) openai.ChatCompletionNewParams {
	model := call.Model
	if model == "" {
		model = p.config.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(model),
		Messages:            p.convertMessages(call.Messages),
		MaxCompletionTokens: openai.Int(int64(p.config.MaxTokens)),
	}

	if call.Temperature != nil {
		params.Temperature = openai.Float(*call.Temperature)
	} else if p.config.Temperature > 0 {
		params.Temperature = openai.Float(p.config.Temperature)
	}

	if call.Mode == ModeJSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	return params
}

func (p *OpenAIProvider) convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case RoleUser:
			result = append(result, openai.UserMessage(msg.Content))
		case RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		}
	}
	return result
}

func (p *OpenAIProvider) convertError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		message := apiErr.RawJSON()
		if message == "" {
			message = apiErr.Message
		}
		if message == "" {
			message = http.StatusText(apiErr.StatusCode)
		}
		return &ProviderError{
			Provider:   ProviderTypeOpenAI,
			StatusCode: apiErr.StatusCode,
			Status:     apiErr.Code,
			Message:    message,
			Cause:      err,
		}
	}
	return fmt.Errorf("openai: %w", err)
}
