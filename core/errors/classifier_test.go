package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMarkersArePinned(t *testing.T) {
	cfg := DefaultClassifierConfig()

	assert.Equal(t, []int{429}, cfg.Capacity.Statuses)
	assert.Equal(t, []string{
		"429",
		"RESOURCE_EXHAUSTED",
		"rate limit",
		"rate_limit",
		"quota",
		"too many requests",
		"overloaded",
	}, cfg.Capacity.Markers)
	assert.Equal(t, []int{401, 403}, cfg.Auth.Statuses)
	assert.Equal(t, []string{"rate_limit_error", "overloaded_error"}, cfg.Providers["claude"].Capacity.Markers)
	assert.Equal(t, []string{"RESOURCE_EXHAUSTED"}, cfg.Providers["gemini"].Capacity.Markers)
	assert.Equal(t, []string{"insufficient_quota", "rate_limit_exceeded"}, cfg.Providers["openai"].Capacity.Markers)
}

func TestClassify(t *testing.T) {
	c := NewErrorClassifier()

	tests := []struct {
		name     string
		provider string
		err      error
		expected Kind
	}{
		{"nil", "openai", nil, KindUnknown},
		{"status 429", "openai", statusErr{code: 429}, KindCapacityExhausted},
		{"status 401", "openai", statusErr{code: 401}, KindAuthInvalid},
		{"status 403", "gemini", statusErr{code: 403}, KindAuthInvalid},
		{"status 500", "openai", statusErr{code: 500}, KindUnknown},
		{"claude overloaded status", "claude", statusErr{code: 529}, KindCapacityExhausted},
		{"529 is not capacity for openai", "openai", statusErr{code: 529}, KindUnknown},
		{"gemini resource exhausted", "gemini", errors.New("Error 429, Message: Resource has been exhausted, Status: RESOURCE_EXHAUSTED"), KindCapacityExhausted},
		{"gemini text only", "gemini", errors.New("status RESOURCE_EXHAUSTED"), KindCapacityExhausted},
		{"claude rate limit type", "claude", errors.New(`{"type":"error","error":{"type":"rate_limit_error","message":"Number of requests exceeded"}}`), KindCapacityExhausted},
		{"claude words containing rate", "claude", &wrappedStatus{code: 400, msg: `invalid_request_error: consecutive user turns must be separate; could not generate an accurate reply`}, KindUnknown},
		{"generate is not capacity", "openai", errors.New("could not generate"), KindUnknown},
		{"quota text", "openai", errors.New("You exceeded your current quota"), KindCapacityExhausted},
		{"invalid key text", "openai", errors.New("Incorrect API key provided: sk-***"), KindAuthInvalid},
		{"gemini key invalid", "gemini", errors.New("API_KEY_INVALID"), KindAuthInvalid},
		{"deadline", "openai", fmt.Errorf("call: %w", context.DeadlineExceeded), KindUnknown},
		{"canceled", "openai", context.Canceled, KindUnknown},
		{"existing failure", "openai", NewFailure(KindMalformed, "openai", "empty"), KindMalformed},
		{"anything else", "gemini", errors.New("internal"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Classify(tt.provider, tt.err))
		})
	}
}

func TestClassifyStatusBeatsMarkers(t *testing.T) {
	c := NewErrorClassifier()

	// A credential rejection whose body happens to mention quota.
	err := &wrappedStatus{code: 401, msg: "quota project not set"}
	assert.Equal(t, KindAuthInvalid, c.Classify("gemini", err))
}

type wrappedStatus struct {
	code int
	msg  string
}

func (e *wrappedStatus) Error() string   { return e.msg }
func (e *wrappedStatus) HTTPStatus() int { return e.code }

func TestClassifierFromConfigPatterns(t *testing.T) {
	cfg := &ClassifierConfig{
		Capacity: MarkerSet{Patterns: []string{`(?i)slow\s+down`}},
	}
	c, err := NewErrorClassifierFromConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, KindCapacityExhausted, c.Classify("openai", errors.New("please SLOW   down")))
	assert.Equal(t, KindUnknown, c.Classify("openai", statusErr{code: 429}))
}

func TestClassifierFromConfigInvalidPattern(t *testing.T) {
	cfg := &ClassifierConfig{Auth: MarkerSet{Patterns: []string{"("}}}
	_, err := NewErrorClassifierFromConfig(cfg)
	assert.Error(t, err)
}

func TestAddMarkers(t *testing.T) {
	c := NewErrorClassifier()

	assert.Equal(t, KindUnknown, c.Classify("openai", errors.New("server is saturated")))
	c.AddCapacityMarker("openai", "saturated")
	assert.Equal(t, KindCapacityExhausted, c.Classify("openai", errors.New("server is saturated")))
	assert.Equal(t, KindUnknown, c.Classify("gemini", errors.New("server is saturated")))

	c.AddAuthMarker("", "key revoked")
	assert.Equal(t, KindAuthInvalid, c.Classify("gemini", errors.New("Key Revoked")))
}
