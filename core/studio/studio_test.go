package studio

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/canvas/core/chat"
	coreerrors "github.com/adalundhe/canvas/core/errors"
	"github.com/adalundhe/canvas/core/logging"
	"github.com/adalundhe/canvas/core/providers"
	"github.com/adalundhe/canvas/core/router"
	"github.com/adalundhe/canvas/core/tokens"
)

type fakeCompleter struct {
	text     string
	chunks   []string
	provider providers.ProviderType
	err      error
	requests []router.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req router.Request) (*router.Completion, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &router.Completion{Text: f.text, Provider: f.provider, Mode: req.Mode}, nil
}

func (f *fakeCompleter) Stream(_ context.Context, req router.Request, h router.StreamHandlers) (*router.Completion, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	var full strings.Builder
	for _, c := range f.chunks {
		full.WriteString(c)
		if h.OnChunk != nil {
			if err := h.OnChunk(c); err != nil {
				return nil, err
			}
		}
	}
	h.OnComplete(full.String())
	return &router.Completion{Text: full.String(), Provider: f.provider, Mode: req.Mode}, nil
}

func newService(f *fakeCompleter) (*Service, *tokens.MemoryStore, *chat.MemoryStore) {
	ts := tokens.NewMemoryStore()
	cs := chat.NewMemoryStore()
	now := time.UnixMilli(42_000)
	return New(f, ts, cs, WithLogger(logging.NewNop()), WithClock(func() time.Time { return now })), ts, cs
}

var hello = []providers.Message{{Role: providers.RoleUser, Content: "hello"}}

func TestChatStreamsAndSaves(t *testing.T) {
	f := &fakeCompleter{chunks: []string{"Hi", " there"}, provider: providers.ProviderTypeOpenAI}
	svc, _, chats := newService(f)

	var got []string
	tr, err := svc.Chat(context.Background(), "u1", ChatRequest{ID: "c1", Messages: hello, Provider: "anthropic", APIKey: "sk-preview"},
		func(c string) error {
			got = append(got, c)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi", " there"}, got)

	require.Len(t, f.requests, 1)
	assert.Equal(t, providers.ProviderTypeClaude, f.requests[0].Provider)
	assert.Equal(t, "sk-preview", f.requests[0].APIKey)
	require.NotNil(t, f.requests[0].Temperature)
	assert.InDelta(t, 0.7, *f.requests[0].Temperature, 1e-9)

	saved, err := chats.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, tr, saved)
	assert.Equal(t, int64(42_000), saved.CreatedAt)
	assert.Equal(t, "Hi there", saved.Messages[1].Content)
}

func TestChatFailureSavesNothing(t *testing.T) {
	f := &fakeCompleter{err: coreerrors.NewFailure(coreerrors.KindAuthInvalid, "openai", "bad key")}
	svc, _, chats := newService(f)

	_, err := svc.Chat(context.Background(), "u1", ChatRequest{ID: "c1", Messages: hello}, nil)
	assert.Equal(t, coreerrors.KindAuthInvalid, coreerrors.KindOf(err))

	list, err := chats.List(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestChatValidation(t *testing.T) {
	svc, _, _ := newService(&fakeCompleter{})

	_, err := svc.Chat(context.Background(), "u1", ChatRequest{}, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Chat(context.Background(), "u1", ChatRequest{Messages: hello, Provider: "mistral"}, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestDesignChatMergesKnownKeys(t *testing.T) {
	f := &fakeCompleter{
		text:     `{"reply":"Warmer now","tokens":{"primary":"20 90% 50%","radius":"1rem","bogus":"x","ring":7}}`,
		provider: providers.ProviderTypeGemini,
	}
	svc, store, _ := newService(f)

	reply, err := svc.DesignChat(context.Background(), "u1", DesignChatRequest{Messages: hello})
	require.NoError(t, err)

	assert.Equal(t, "Warmer now", reply.Reply)
	assert.Equal(t, tokens.DesignTokens{"primary": "20 90% 50%", "radius": "1rem"}, reply.Changed)
	assert.Equal(t, "20 90% 50%", reply.Tokens["primary"])
	assert.Equal(t, tokens.Defaults()["background"], reply.Tokens["background"])
	assert.NotContains(t, reply.Tokens, "bogus")
	assert.Equal(t, providers.ProviderTypeGemini, reply.Provider)

	saved, ok, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, reply.Tokens, saved)

	req := f.requests[0]
	assert.Equal(t, providers.ModeJSON, req.Mode)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, providers.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "card-foreground")
	assert.True(t, strings.HasPrefix(req.Messages[1].Content, "Current tokens: {"))
	assert.InDelta(t, 0.4, *req.Temperature, 1e-9)
}

func TestDesignChatLenientParsing(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantReply string
		changed   int
	}{
		{"invalid json", "sorry, no", defaultDesignReply, 0},
		{"missing reply", `{"tokens":{"radius":"0"}}`, defaultDesignReply, 1},
		{"fenced", "```json\n{\"reply\":\"ok\",\"tokens\":{\"radius\":\"0\"}}\n```", "ok", 1},
		{"tokens not an object", `{"reply":"ok","tokens":"radius"}`, "ok", 0},
		{"reply not a string", `{"reply":5}`, defaultDesignReply, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newService(&fakeCompleter{text: tt.text})
			reply, err := svc.DesignChat(context.Background(), "u1", DesignChatRequest{Messages: hello})
			require.NoError(t, err)
			assert.Equal(t, tt.wantReply, reply.Reply)
			assert.Len(t, reply.Changed, tt.changed)
			assert.Len(t, reply.Tokens, len(tokens.Keys()))
		})
	}
}

func TestDesignChatKeepsStoreOnFailure(t *testing.T) {
	f := &fakeCompleter{err: coreerrors.NewFailure(coreerrors.KindCapacityExhausted, "openai", "429")}
	svc, store, _ := newService(f)

	_, err := svc.DesignChat(context.Background(), "u1", DesignChatRequest{Messages: hello})
	require.Error(t, err)

	_, ok, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateCode(t *testing.T) {
	raw := "```tsx\n\"use client\";\nimport { Button } from '@/components/ui/button'\nexport default function Hero() { return <Button>Go</Button> }\n```\n"
	f := &fakeCompleter{text: raw, provider: providers.ProviderTypeOpenAI}
	svc, store, _ := newService(f)
	_, err := tokens.Update(context.Background(), store, "u1", tokens.DesignTokens{"primary": "1 2% 3%"})
	require.NoError(t, err)

	res, err := svc.GenerateCode(context.Background(), "u1", CodeRequest{Prompt: "a hero", Name: "Hero", Compatible: true})
	require.NoError(t, err)

	assert.Equal(t, "Hero", res.Name)
	assert.Equal(t, strings.TrimSpace(raw), res.Code)
	assert.Equal(t, "'use client'\nexport default function Hero() { return <Button>Go</Button> }", res.Source)

	req := f.requests[0]
	require.Len(t, req.Messages, 3)
	assert.Contains(t, req.Messages[1].Content, `"primary":"1 2% 3%"`)
	assert.Equal(t, "Component name: Hero\nRequirements: "+compatPrefix+"a hero\nOutput code only. TSX.", req.Messages[2].Content)
}

func TestComponentName(t *testing.T) {
	assert.Equal(t, "PricingCard", ComponentName("PricingCard"))
	assert.Equal(t, "A1", ComponentName("A1"))
	assert.Equal(t, DefaultComponentName, ComponentName("X"))
	assert.Equal(t, DefaultComponentName, ComponentName("1Card"))
	assert.Equal(t, DefaultComponentName, ComponentName("my-card"))
	assert.Equal(t, DefaultComponentName, ComponentName(""))
}

func TestGenerateCodeRequiresPrompt(t *testing.T) {
	svc, _, _ := newService(&fakeCompleter{})
	_, err := svc.GenerateCode(context.Background(), "u1", CodeRequest{Prompt: "  "})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}
