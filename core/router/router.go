// Package router dispatches completion requests across providers and falls
// back to the default provider when the requested one is out of capacity.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreerrors "github.com/adalundhe/canvas/core/errors"
	"github.com/adalundhe/canvas/core/logging"
	"github.com/adalundhe/canvas/core/metrics"
	"github.com/adalundhe/canvas/core/providers"
)

const DefaultTimeout = 60 * time.Second

// Router is stateless between calls; it is safe for concurrent use.
type Router struct {
	registry   *providers.Registry
	classifier *coreerrors.ErrorClassifier
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Router)

func WithClassifier(c *coreerrors.ErrorClassifier) Option {
	return func(r *Router) {
		if c != nil {
			r.classifier = c
		}
	}
}

// WithTimeout bounds every individual provider attempt.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		r.logger = logging.OrDefault(l)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

func New(registry *providers.Registry, opts ...Option) *Router {
	r := &Router{
		registry:   registry,
		classifier: coreerrors.NewErrorClassifier(),
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Plan resolves the fallback plan for req against the registry.
func (r *Router) Plan(req Request) (FallbackPlan, error) {
	def := r.registry.DefaultType()
	if def == "" {
		return FallbackPlan{}, coreerrors.Wrap(coreerrors.KindUnknown, "", providers.ErrNoDefaultProvider)
	}
	if req.Provider != "" && !r.registry.Has(req.Provider) {
		err := fmt.Errorf("%w: %s", providers.ErrProviderNotRegistered, req.Provider)
		return FallbackPlan{}, coreerrors.Wrap(coreerrors.KindUnknown, string(req.Provider), err)
	}
	return NewFallbackPlan(req.Provider, def), nil
}

// Complete runs req through its fallback plan. Only capacity failures move on
// to the next provider; any other failure is returned as is. The error is
// always a *errors.Failure.
func (r *Router) Complete(ctx context.Context, req Request) (*Completion, error) {
	plan, err := r.Plan(req)
	if err != nil {
		return nil, err
	}

	entries := plan.Providers()
	attempts := make([]Attempt, 0, len(entries))

	for i, p := range entries {
		adapter, err := r.registry.Get(p)
		if err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindUnknown, string(p), err)
		}

		call := r.buildCall(req, adapter, i == 0)
		text, attempt := r.attempt(ctx, adapter, call, false, func(ctx context.Context, _ func()) (string, error) {
			return adapter.Send(ctx, call)
		})
		attempts = append(attempts, attempt)

		if attempt.Succeeded() {
			return &Completion{
				Text:     text,
				Provider: p,
				Model:    call.Model,
				Mode:     req.Mode,
				Attempts: attempts,
			}, nil
		}

		if !attempt.Kind.Retryable() {
			return nil, toFailure(attempt)
		}

		if i+1 < len(entries) {
			r.logger.Warn("provider out of capacity, falling back",
				"provider", p,
				"next", entries[i+1],
				"error", attempt.Err,
			)
			r.metrics.Fallback(string(p), string(entries[i+1]))
		}
	}

	return nil, exhausted(attempts)
}

// Stream delivers the reply incrementally. The default-provider path streams
// when its adapter supports it; any other path completes with fallback and
// delivers the buffered text as a single chunk.
func (r *Router) Stream(ctx context.Context, req Request, h StreamHandlers) (*Completion, error) {
	plan, err := r.Plan(req)
	if err != nil {
		return nil, err
	}

	var completion *Completion
	if plan.Len() == 1 {
		completion, err = r.streamSingle(ctx, req, plan.Providers()[0], h.OnChunk)
		if err != nil {
			return nil, err
		}
	} else {
		completion, err = r.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		if h.OnChunk != nil && completion.Text != "" {
			if err := h.OnChunk(completion.Text); err != nil {
				return nil, coreerrors.Wrap(coreerrors.KindUnknown, string(completion.Provider), err)
			}
		}
	}

	if h.OnComplete != nil {
		h.OnComplete(completion.Text)
	}
	return completion, nil
}

func (r *Router) streamSingle(ctx context.Context, req Request, p providers.ProviderType, onChunk func(string) error) (*Completion, error) {
	adapter, err := r.registry.Get(p)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindUnknown, string(p), err)
	}

	call := r.buildCall(req, adapter, true)
	text, attempt := r.attempt(ctx, adapter, call, true, func(ctx context.Context, progress func()) (string, error) {
		return providers.StreamWithCallback(ctx, adapter, call, func(chunk string) error {
			progress()
			if onChunk == nil {
				return nil
			}
			return onChunk(chunk)
		})
	})
	if !attempt.Succeeded() {
		return nil, toFailure(attempt)
	}

	return &Completion{
		Text:     text,
		Provider: p,
		Model:    call.Model,
		Mode:     req.Mode,
		Attempts: []Attempt{attempt},
	}, nil
}

// buildCall derives the immutable per-call configuration. The request's
// model and credential override apply to the first plan entry only.
func (r *Router) buildCall(req Request, adapter providers.Adapter, requested bool) providers.Call {
	call := providers.Call{
		APIKey:      adapter.Credential(),
		Model:       adapter.DefaultModel(),
		Messages:    append([]providers.Message(nil), req.Messages...),
		Mode:        req.Mode,
		Temperature: req.Temperature,
	}
	if call.Mode == "" {
		call.Mode = providers.ModeText
	}
	if requested {
		if req.APIKey != "" {
			call.APIKey = req.APIKey
		}
		if req.Model != "" {
			call.Model = req.Model
		}
	}
	return call
}

// attemptContext bounds one attempt. A buffered attempt gets the timeout in
// total. A streamed attempt gets it between chunks, so a long reply that keeps
// arriving is never cut off while a stalled one still is.
func (r *Router) attemptContext(ctx context.Context, streamed bool) (context.Context, func(), func()) {
	if !streamed {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		return attemptCtx, func() {}, cancel
	}
	attemptCtx, cancel := context.WithCancelCause(ctx)
	timer := time.AfterFunc(r.timeout, func() { cancel(context.DeadlineExceeded) })
	progress := func() { timer.Reset(r.timeout) }
	return attemptCtx, progress, func() {
		timer.Stop()
		cancel(context.Canceled)
	}
}

func (r *Router) attempt(ctx context.Context, adapter providers.Adapter, call providers.Call, streamed bool, send func(context.Context, func()) (string, error)) (string, Attempt) {
	p := adapter.Type()
	attemptCtx, progress, cancel := r.attemptContext(ctx, streamed)
	defer cancel()

	start := time.Now()
	text, err := send(attemptCtx, progress)
	attempt := Attempt{Provider: p, Model: call.Model, Duration: time.Since(start)}

	if err == nil {
		r.metrics.ProviderAttempt(string(p), "success", attempt.Duration)
		r.logger.Debug("provider attempt succeeded", "provider", p, "model", call.Model, "duration", attempt.Duration)
		return text, attempt
	}

	// A hang is not evidence of exhaustion; timeouts never fall back.
	if ctxErr := context.Cause(attemptCtx); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}

	attempt.Err = err
	attempt.Kind = r.classifier.Classify(string(p), err)
	if attemptCtx.Err() != nil {
		attempt.Kind = coreerrors.KindUnknown
	}

	status, _ := coreerrors.StatusOf(err)
	r.metrics.ProviderAttempt(string(p), attempt.Kind.String(), attempt.Duration)
	r.logger.Warn("provider attempt failed",
		"provider", p,
		"model", call.Model,
		"kind", attempt.Kind,
		"status", status,
		"error", err,
	)
	return "", attempt
}

func toFailure(a Attempt) *coreerrors.Failure {
	f := coreerrors.Wrap(a.Kind, string(a.Provider), a.Err)
	f.Kind = a.Kind
	return f
}

// exhausted consolidates a plan in which every provider failed into one
// failure naming the last provider attempted.
func exhausted(attempts []Attempt) *coreerrors.Failure {
	last := attempts[len(attempts)-1]
	f := toFailure(last)
	if len(attempts) > 1 {
		f.Message = fmt.Sprintf("all %d providers failed; last attempted %s: %s", len(attempts), last.Provider, f.Message)
	}
	return f
}
