package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GoogleProvider implements Adapter for Gemini models. The genai client binds
// its credential at construction, so a client is built for every call.
type GoogleProvider struct {
	config     GoogleConfig
	httpClient *http.Client
}

// NewGoogleProvider creates a new Gemini provider with the given configuration
func NewGoogleProvider(config GoogleConfig) (*GoogleProvider, error) {
	defaults := DefaultGoogleConfig()
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = defaults.MaxTokens
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &GoogleProvider{
		config:     config,
		httpClient: &http.Client{},
	}, nil
}

func (p *GoogleProvider) Type() ProviderType {
	return ProviderTypeGemini
}

// DefaultModel returns the provider's default model
func (p *GoogleProvider) DefaultModel() string {
	return p.config.Model
}

func (p *GoogleProvider) Credential() string {
	return p.config.APIKey
}

// Send performs a generateContent request and returns the first candidate's text.
func (p *GoogleProvider) Send(ctx context.Context, call Call) (string, error) {
	if call.APIKey == "" {
		return "", missingCredential(ProviderTypeGemini)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      call.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  p.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: p.config.BaseURL},
	})
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}

	model := call.Model
	if model == "" {
		model = p.config.Model
	}

	resp, err := client.Models.GenerateContent(ctx, model, p.convertMessages(call.Messages), p.buildConfig(call))
	if err != nil {
		return "", p.convertError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", emptyResponse(ProviderTypeGemini)
	}

	return resp.Text(), nil
}

func (p *GoogleProvider) buildConfig(call Call) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(p.config.MaxTokens),
	}

	system, _ := SplitSystem(call.Messages)
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n"), genai.RoleUser)
	}

	if call.Mode == ModeJSON {
		cfg.ResponseMIMEType = "application/json"
	}

	if call.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*call.Temperature))
	} else if p.config.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(p.config.Temperature))
	}

	for _, s := range p.config.SafetySettings {
		cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(s.Category),
			Threshold: genai.HarmBlockThreshold(s.Threshold),
		})
	}

	return cfg
}

// convertMessages maps the conversation onto Gemini's user/model roles.
// System messages travel separately as the system instruction.
func (p *GoogleProvider) convertMessages(messages []Message) []*genai.Content {
	_, rest := SplitSystem(messages)
	result := make([]*genai.Content, 0, len(rest))
	for _, msg := range rest {
		switch msg.Role {
		case RoleUser:
			result = append(result, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case RoleAssistant:
			result = append(result, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}
	return result
}

func (p *GoogleProvider) convertError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if apiErr.Status != "" {
			message = fmt.Sprintf("%s (%s)", apiErr.Message, apiErr.Status)
		}
		return &ProviderError{
			Provider:   ProviderTypeGemini,
			StatusCode: apiErr.Code,
			Status:     apiErr.Status,
			Message:    message,
			Cause:      err,
		}
	}
	return fmt.Errorf("gemini: %w", err)
}
