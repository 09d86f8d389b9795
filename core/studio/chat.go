package studio

import (
	"context"
	"fmt"

	"github.com/adalundhe/canvas/core/chat"
	"github.com/adalundhe/canvas/core/providers"
	"github.com/adalundhe/canvas/core/router"
)

type ChatRequest struct {
	ID       string              `json:"id,omitempty"`
	Messages []providers.Message `json:"messages"`
	Provider string              `json:"provider,omitempty"`
	// APIKey overrides the requested provider's credential for this call.
	APIKey string `json:"previewToken,omitempty"`
}

// Chat streams the assistant reply to onChunk and saves the transcript once
// the reply is complete. Nothing is saved when the completion fails.
func (s *Service) Chat(ctx context.Context, userID string, req ChatRequest, onChunk func(string) error) (chat.Transcript, error) {
	if len(req.Messages) == 0 {
		return chat.Transcript{}, fmt.Errorf("%w: no messages", ErrInvalidRequest)
	}
	provider, err := parseProvider(req.Provider)
	if err != nil {
		return chat.Transcript{}, err
	}

	var (
		transcript chat.Transcript
		saveErr    error
	)
	_, err = s.completer.Stream(ctx, router.Request{
		Provider:    provider,
		Messages:    req.Messages,
		Mode:        providers.ModeText,
		APIKey:      req.APIKey,
		Temperature: temperature(chatTemperature),
	}, router.StreamHandlers{
		OnChunk: onChunk,
		OnComplete: func(text string) {
			transcript = chat.NewTranscript(req.ID, userID, req.Messages, text, s.now())
			saveErr = s.chats.Save(ctx, transcript)
		},
	})
	if err != nil {
		return chat.Transcript{}, err
	}
	if saveErr != nil {
		s.logger.Error("failed to save transcript", "chat", transcript.ID, "user", userID, "err", saveErr)
		return transcript, fmt.Errorf("save transcript: %w", saveErr)
	}
	return transcript, nil
}
