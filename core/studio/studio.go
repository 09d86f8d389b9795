// Package studio implements the design studio's model-backed operations:
// free chat, design-token chat and component generation.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adalundhe/canvas/core/chat"
	"github.com/adalundhe/canvas/core/providers"
	"github.com/adalundhe/canvas/core/router"
	"github.com/adalundhe/canvas/core/tokens"
)

var ErrInvalidRequest = errors.New("invalid request")

// Completer is the slice of the completion router the studio needs.
type Completer interface {
	Complete(ctx context.Context, req router.Request) (*router.Completion, error)
	Stream(ctx context.Context, req router.Request, h router.StreamHandlers) (*router.Completion, error)
}

const (
	chatTemperature   = 0.7
	designTemperature = 0.4
)

type Service struct {
	completer Completer
	tokens    tokens.Store
	chats     chat.Store
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for transcript timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(completer Completer, tokenStore tokens.Store, chats chat.Store, opts ...Option) *Service {
	s := &Service{
		completer: completer,
		tokens:    tokenStore,
		chats:     chats,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Tokens() tokens.Store {
	return s.tokens
}

func (s *Service) Chats() chat.Store {
	return s.chats
}

func parseProvider(name string) (providers.ProviderType, error) {
	if name == "" {
		return "", nil
	}
	p, err := providers.ParseProviderType(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return p, nil
}

func temperature(v float64) *float64 {
	return &v
}
