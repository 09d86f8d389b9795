package router

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	coreerrors "github.com/adalundhe/canvas/core/errors"
	"github.com/adalundhe/canvas/core/logging"
	"github.com/adalundhe/canvas/core/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type callLog struct {
	mu    sync.Mutex
	order []providers.ProviderType
}

func (l *callLog) record(p providers.ProviderType) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.order = append(l.order, p)
}

func (l *callLog) calls() []providers.ProviderType {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]providers.ProviderType(nil), l.order...)
}

type mockAdapter struct {
	mock.Mock
	kind providers.ProviderType
	key  string
	log  *callLog
}

func newMockAdapter(kind providers.ProviderType, log *callLog) *mockAdapter {
	return &mockAdapter{kind: kind, key: string(kind) + "-key", log: log}
}

func (m *mockAdapter) Type() providers.ProviderType { return m.kind }
func (m *mockAdapter) DefaultModel() string         { return string(m.kind) + "-default" }
func (m *mockAdapter) Credential() string           { return m.key }

func (m *mockAdapter) Send(ctx context.Context, call providers.Call) (string, error) {
	if m.log != nil {
		m.log.record(m.kind)
	}
	args := m.Called(ctx, call)
	return args.String(0), args.Error(1)
}

type streamingAdapter struct {
	*mockAdapter
	chunks []string
	gap    time.Duration
}

func (s *streamingAdapter) SendStream(ctx context.Context, call providers.Call, onChunk func(string) error) (string, error) {
	var full string
	for _, c := range s.chunks {
		if s.gap > 0 {
			select {
			case <-time.After(s.gap):
			case <-ctx.Done():
				return full, ctx.Err()
			}
		}
		full += c
		if err := onChunk(c); err != nil {
			return full, err
		}
	}
	return full, nil
}

func statusError(p providers.ProviderType, code int, msg string) error {
	return &providers.ProviderError{Provider: p, StatusCode: code, Message: msg}
}

func newRouter(t *testing.T, def providers.ProviderType, adapters ...providers.Adapter) *Router {
	t.Helper()
	reg := providers.NewRegistry()
	for _, a := range adapters {
		require.NoError(t, reg.Register(a))
	}
	require.NoError(t, reg.SetDefault(def))
	return New(reg, WithLogger(logging.NewNop()), WithTimeout(time.Second))
}

func userMessages() []providers.Message {
	return []providers.Message{{Role: providers.RoleUser, Content: "build a card"}}
}

func TestFallbackPlan(t *testing.T) {
	tests := []struct {
		name      string
		requested providers.ProviderType
		def       providers.ProviderType
		expected  []providers.ProviderType
	}{
		{"requested then default", providers.ProviderTypeGemini, providers.ProviderTypeOpenAI,
			[]providers.ProviderType{providers.ProviderTypeGemini, providers.ProviderTypeOpenAI}},
		{"requested is default", providers.ProviderTypeOpenAI, providers.ProviderTypeOpenAI,
			[]providers.ProviderType{providers.ProviderTypeOpenAI}},
		{"no request", "", providers.ProviderTypeClaude,
			[]providers.ProviderType{providers.ProviderTypeClaude}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := NewFallbackPlan(tt.requested, tt.def)
			assert.Equal(t, tt.expected, plan.Providers())
			assert.Equal(t, len(tt.expected), plan.Len())
		})
	}
}

func TestCompleteFallsBackOnCapacity(t *testing.T) {
	log := &callLog{}
	gemini := newMockAdapter(providers.ProviderTypeGemini, log)
	openai := newMockAdapter(providers.ProviderTypeOpenAI, log)

	gemini.On("Send", mock.Anything, mock.Anything).
		Return("", statusError(providers.ProviderTypeGemini, http.StatusTooManyRequests, "RESOURCE_EXHAUSTED"))
	openai.On("Send", mock.Anything, mock.MatchedBy(func(c providers.Call) bool {
		return c.APIKey == "openai-key" && c.Model == "openai-default"
	})).Return("x", nil)

	r := newRouter(t, providers.ProviderTypeOpenAI, gemini, openai)

	completion, err := r.Complete(context.Background(), Request{
		Provider: providers.ProviderTypeGemini,
		Model:    "gemini-1.5-pro",
		APIKey:   "user-key",
		Messages: userMessages(),
	})
	require.NoError(t, err)

	assert.Equal(t, "x", completion.Text)
	assert.Equal(t, providers.ProviderTypeOpenAI, completion.Provider)
	assert.Equal(t, []providers.ProviderType{providers.ProviderTypeGemini, providers.ProviderTypeOpenAI}, log.calls())
	require.Len(t, completion.Attempts, 2)
	assert.Equal(t, coreerrors.KindCapacityExhausted, completion.Attempts[0].Kind)
	assert.True(t, completion.Attempts[1].Succeeded())

	gemini.AssertExpectations(t)
	openai.AssertExpectations(t)
}

func TestCompleteDoesNotMaskAuthFailure(t *testing.T) {
	gemini := newMockAdapter(providers.ProviderTypeGemini, nil)
	openai := newMockAdapter(providers.ProviderTypeOpenAI, nil)

	gemini.On("Send", mock.Anything, mock.Anything).
		Return("", statusError(providers.ProviderTypeGemini, http.StatusUnauthorized, "API key not valid. Please pass a valid API key."))

	r := newRouter(t, providers.ProviderTypeOpenAI, gemini, openai)

	_, err := r.Complete(context.Background(), Request{Provider: providers.ProviderTypeGemini, Messages: userMessages()})
	require.Error(t, err)

	var f *coreerrors.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, coreerrors.KindAuthInvalid, f.Kind)
	assert.Equal(t, "gemini", f.Provider)
	assert.Equal(t, http.StatusUnauthorized, f.StatusCode)
	assert.Contains(t, f.Message, "API key not valid")

	openai.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestCompleteMalformedDoesNotFallBack(t *testing.T) {
	claude := newMockAdapter(providers.ProviderTypeClaude, nil)
	openai := newMockAdapter(providers.ProviderTypeOpenAI, nil)

	claude.On("Send", mock.Anything, mock.Anything).
		Return("", coreerrors.Wrap(coreerrors.KindMalformed, "claude", providers.ErrEmptyResponse))

	r := newRouter(t, providers.ProviderTypeOpenAI, claude, openai)

	_, err := r.Complete(context.Background(), Request{Provider: providers.ProviderTypeClaude, Messages: userMessages()})
	assert.Equal(t, coreerrors.KindMalformed, coreerrors.KindOf(err))
	openai.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestCompleteInvalidRequestDoesNotFallBack(t *testing.T) {
	log := &callLog{}
	claude := newMockAdapter(providers.ProviderTypeClaude, log)
	openai := newMockAdapter(providers.ProviderTypeOpenAI, log)

	claude.On("Send", mock.Anything, mock.Anything).
		Return("", statusError(providers.ProviderTypeClaude, http.StatusBadRequest,
			`{"type":"error","error":{"type":"invalid_request_error","message":"messages: consecutive user turns must be separate"}}`))

	r := newRouter(t, providers.ProviderTypeOpenAI, claude, openai)

	_, err := r.Complete(context.Background(), Request{Provider: providers.ProviderTypeClaude, Messages: userMessages()})
	require.Error(t, err)
	assert.Equal(t, coreerrors.KindUnknown, coreerrors.KindOf(err))
	assert.Equal(t, []providers.ProviderType{providers.ProviderTypeClaude}, log.calls())
	openai.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestCompleteExhaustedNamesLastProvider(t *testing.T) {
	gemini := newMockAdapter(providers.ProviderTypeGemini, nil)
	openai := newMockAdapter(providers.ProviderTypeOpenAI, nil)

	gemini.On("Send", mock.Anything, mock.Anything).
		Return("", statusError(providers.ProviderTypeGemini, 429, "quota"))
	openai.On("Send", mock.Anything, mock.Anything).
		Return("", errors.New("Rate limit reached for gpt-4o-mini"))

	r := newRouter(t, providers.ProviderTypeOpenAI, gemini, openai)

	_, err := r.Complete(context.Background(), Request{Provider: providers.ProviderTypeGemini, Messages: userMessages()})
	require.Error(t, err)

	var f *coreerrors.Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, coreerrors.KindCapacityExhausted, f.Kind)
	assert.Equal(t, "openai", f.Provider)
	assert.Contains(t, f.Message, "last attempted openai")
	assert.Contains(t, f.Error(), "Rate limit reached")
}

func TestCompleteTimeoutIsUnknownWithoutFallback(t *testing.T) {
	gemini := newMockAdapter(providers.ProviderTypeGemini, nil)
	openai := newMockAdapter(providers.ProviderTypeOpenAI, nil)

	gemini.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", errors.New("request aborted: 429 would have been nice"))

	reg := providers.NewRegistry()
	require.NoError(t, reg.Register(gemini))
	require.NoError(t, reg.Register(openai))
	require.NoError(t, reg.SetDefault(providers.ProviderTypeOpenAI))
	r := New(reg, WithLogger(logging.NewNop()), WithTimeout(20*time.Millisecond))

	_, err := r.Complete(context.Background(), Request{Provider: providers.ProviderTypeGemini, Messages: userMessages()})
	require.Error(t, err)
	assert.Equal(t, coreerrors.KindUnknown, coreerrors.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	openai.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestCredentialOverrideAppliesToRequestedProviderOnly(t *testing.T) {
	gemini := newMockAdapter(providers.ProviderTypeGemini, nil)
	gemini.On("Send", mock.Anything, mock.MatchedBy(func(c providers.Call) bool {
		return c.APIKey == "user-key" && c.Model == "gemini-1.5-pro" && c.Mode == providers.ModeJSON
	})).Return("{}", nil)

	r := newRouter(t, providers.ProviderTypeGemini, gemini)

	req := Request{
		Provider: providers.ProviderTypeGemini,
		Model:    "gemini-1.5-pro",
		APIKey:   "user-key",
		Mode:     providers.ModeJSON,
		Messages: userMessages(),
	}
	completion, err := r.Complete(context.Background(), req)
	require.NoError(t, err)

	artifact := completion.Artifact()
	assert.True(t, artifact.IsJSON())
	assert.Equal(t, "{}", artifact.Text)
	assert.Equal(t, "gemini-key", gemini.Credential(), "configured credential must not change")
	gemini.AssertExpectations(t)
}

func TestCompleteUnknownProvider(t *testing.T) {
	r := newRouter(t, providers.ProviderTypeOpenAI, newMockAdapter(providers.ProviderTypeOpenAI, nil))

	_, err := r.Complete(context.Background(), Request{Provider: providers.ProviderTypeClaude})
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrProviderNotRegistered)
	assert.Equal(t, coreerrors.KindUnknown, coreerrors.KindOf(err))
}

func TestStreamDefaultPathForwardsChunks(t *testing.T) {
	openai := &streamingAdapter{
		mockAdapter: newMockAdapter(providers.ProviderTypeOpenAI, nil),
		chunks:      []string{"Hel", "lo", "!"},
	}
	r := newRouter(t, providers.ProviderTypeOpenAI, openai)

	var chunks []string
	var completed []string
	completion, err := r.Stream(context.Background(), Request{Messages: userMessages()}, StreamHandlers{
		OnChunk:    func(c string) error { chunks = append(chunks, c); return nil },
		OnComplete: func(text string) { completed = append(completed, text) },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo", "!"}, chunks)
	assert.Equal(t, []string{"Hello!"}, completed)
	assert.Equal(t, "Hello!", completion.Text)
}

func TestStreamTimeoutBoundsGapsNotWholeReply(t *testing.T) {
	newStreamRouter := func(a providers.Adapter) *Router {
		reg := providers.NewRegistry()
		require.NoError(t, reg.Register(a))
		return New(reg, WithLogger(logging.NewNop()), WithTimeout(80*time.Millisecond))
	}

	steady := &streamingAdapter{
		mockAdapter: newMockAdapter(providers.ProviderTypeOpenAI, nil),
		chunks:      []string{"a", "b", "c", "d", "e"},
		gap:         30 * time.Millisecond,
	}
	completion, err := newStreamRouter(steady).Stream(context.Background(), Request{Messages: userMessages()}, StreamHandlers{})
	require.NoError(t, err)
	assert.Equal(t, "abcde", completion.Text)

	stalled := &streamingAdapter{
		mockAdapter: newMockAdapter(providers.ProviderTypeOpenAI, nil),
		chunks:      []string{"a", "b"},
		gap:         300 * time.Millisecond,
	}
	_, err = newStreamRouter(stalled).Stream(context.Background(), Request{Messages: userMessages()}, StreamHandlers{})
	require.Error(t, err)
	assert.Equal(t, coreerrors.KindUnknown, coreerrors.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStreamNonDefaultIsSingleChunk(t *testing.T) {
	claude := newMockAdapter(providers.ProviderTypeClaude, nil)
	openai := &streamingAdapter{mockAdapter: newMockAdapter(providers.ProviderTypeOpenAI, nil)}

	claude.On("Send", mock.Anything, mock.Anything).Return("buffered reply", nil)

	r := newRouter(t, providers.ProviderTypeOpenAI, claude, openai)

	var chunks []string
	completions := 0
	_, err := r.Stream(context.Background(), Request{Provider: providers.ProviderTypeClaude, Messages: userMessages()}, StreamHandlers{
		OnChunk:    func(c string) error { chunks = append(chunks, c); return nil },
		OnComplete: func(string) { completions++ },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"buffered reply"}, chunks)
	assert.Equal(t, 1, completions)
}

func TestStreamFailureSkipsCompletion(t *testing.T) {
	openai := newMockAdapter(providers.ProviderTypeOpenAI, nil)
	openai.On("Send", mock.Anything, mock.Anything).
		Return("", statusError(providers.ProviderTypeOpenAI, 401, "Incorrect API key provided"))

	r := newRouter(t, providers.ProviderTypeOpenAI, openai)

	completed := false
	_, err := r.Stream(context.Background(), Request{Messages: userMessages()}, StreamHandlers{
		OnComplete: func(string) { completed = true },
	})
	assert.Equal(t, coreerrors.KindAuthInvalid, coreerrors.KindOf(err))
	assert.False(t, completed)
}
