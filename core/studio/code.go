package studio

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/adalundhe/canvas/core/providers"
	"github.com/adalundhe/canvas/core/router"
	"github.com/adalundhe/canvas/core/sanitize"
	"github.com/adalundhe/canvas/core/tokens"
)

const DefaultComponentName = "GeneratedComponent"

var componentName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]+$`)

type CodeRequest struct {
	Prompt   string `json:"prompt"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider,omitempty"`
	// Compatible prepends the no-import constraint to the prompt.
	Compatible bool   `json:"compatible,omitempty"`
	APIKey     string `json:"previewToken,omitempty"`
}

type CodeResult struct {
	Name string `json:"name"`
	// Code is the model output, trimmed.
	Code string `json:"code"`
	// Source is Code after sanitizing, ready for the preview.
	Source   sanitize.Source        `json:"source"`
	Provider providers.ProviderType `json:"provider"`
}

// ComponentName returns name when it is a usable identifier and the default
// otherwise.
func ComponentName(name string) string {
	if componentName.MatchString(name) {
		return name
	}
	return DefaultComponentName
}

// GenerateCode asks the model for a single component grounded in the
// user's current tokens.
func (s *Service) GenerateCode(ctx context.Context, userID string, req CodeRequest) (CodeResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return CodeResult{}, fmt.Errorf("%w: missing prompt", ErrInvalidRequest)
	}
	provider, err := parseProvider(req.Provider)
	if err != nil {
		return CodeResult{}, err
	}

	current, err := tokens.Load(ctx, s.tokens, userID)
	if err != nil {
		return CodeResult{}, err
	}

	name := ComponentName(req.Name)
	prompt := req.Prompt
	if req.Compatible {
		prompt = compatPrefix + prompt
	}

	completion, err := s.completer.Complete(ctx, router.Request{
		Provider: provider,
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: codeSystemPrompt},
			{Role: providers.RoleSystem, Content: currentTokensPrompt(current)},
			{Role: providers.RoleUser, Content: codeUserPrompt(name, prompt)},
		},
		Mode:        providers.ModeText,
		APIKey:      req.APIKey,
		Temperature: temperature(designTemperature),
	})
	if err != nil {
		return CodeResult{}, err
	}

	code := strings.TrimSpace(completion.Artifact().Text)
	return CodeResult{
		Name:     name,
		Code:     code,
		Source:   sanitize.Sanitize(code),
		Provider: completion.Provider,
	}, nil
}
