package studio

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adalundhe/canvas/core/providers"
	"github.com/adalundhe/canvas/core/router"
	"github.com/adalundhe/canvas/core/tokens"
)

type DesignChatRequest struct {
	Messages []providers.Message `json:"messages"`
	Provider string              `json:"provider,omitempty"`
	APIKey   string              `json:"previewToken,omitempty"`
}

type DesignChatReply struct {
	Reply string `json:"reply"`
	// Tokens is the full merged set after the update.
	Tokens tokens.DesignTokens `json:"tokens"`
	// Changed holds only the accepted updates.
	Changed  tokens.DesignTokens    `json:"changed"`
	Provider providers.ProviderType `json:"provider"`
}

// DesignChat asks the model for a token update, keeps the known keys with
// string values, and saves the merged result for the user.
func (s *Service) DesignChat(ctx context.Context, userID string, req DesignChatRequest) (DesignChatReply, error) {
	if len(req.Messages) == 0 {
		return DesignChatReply{}, fmt.Errorf("%w: no messages", ErrInvalidRequest)
	}
	provider, err := parseProvider(req.Provider)
	if err != nil {
		return DesignChatReply{}, err
	}

	current, err := tokens.Load(ctx, s.tokens, userID)
	if err != nil {
		return DesignChatReply{}, err
	}

	messages := make([]providers.Message, 0, len(req.Messages)+2)
	messages = append(messages,
		providers.Message{Role: providers.RoleSystem, Content: designPrompt()},
		providers.Message{Role: providers.RoleSystem, Content: currentTokensPrompt(current)},
	)
	messages = append(messages, req.Messages...)

	completion, err := s.completer.Complete(ctx, router.Request{
		Provider:    provider,
		Messages:    messages,
		Mode:        providers.ModeJSON,
		APIKey:      req.APIKey,
		Temperature: temperature(designTemperature),
	})
	if err != nil {
		return DesignChatReply{}, err
	}

	reply, updates := parseDesignReply(completion.Artifact().Text)
	changed := tokens.Filter(updates)

	merged, err := tokens.Update(ctx, s.tokens, userID, changed)
	if err != nil {
		return DesignChatReply{}, err
	}
	if reply == "" {
		reply = defaultDesignReply
	}

	s.logger.Debug("design tokens updated", "user", userID, "provider", completion.Provider, "changed", len(changed))
	return DesignChatReply{
		Reply:    reply,
		Tokens:   merged,
		Changed:  changed,
		Provider: completion.Provider,
	}, nil
}

// parseDesignReply reads {"reply", "tokens"} from model text. Text that is
// not a JSON object yields no reply and no updates. A reply wrapped in prose
// or a code fence is recovered from its outermost braces.
func parseDesignReply(text string) (string, map[string]any) {
	obj, ok := decodeObject(text)
	if !ok {
		start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return "", nil
		}
		if obj, ok = decodeObject(text[start : end+1]); !ok {
			return "", nil
		}
	}

	reply, _ := obj["reply"].(string)
	updates, _ := obj["tokens"].(map[string]any)
	return reply, updates
}

func decodeObject(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
