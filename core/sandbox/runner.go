// Package sandbox runs untrusted component source in a dedicated JS realm
// per session and reports what it rendered.
package sandbox

import (
	"context"
	"html"
	"log/slog"
	"time"

	"github.com/adalundhe/canvas/core/metrics"
)

// Runner mounts sessions into fresh realms.
type Runner struct {
	limits  Limits
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type RunnerOption func(*Runner)

func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

func NewRunner(limits Limits, opts ...RunnerOption) *Runner {
	r := &Runner{limits: limits.withDefaults(), logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

func (r *Runner) Limits() Limits {
	return r.limits
}

// Run mounts the session, captures the view and tears the realm down again.
// Failures are reported in the outcome, never returned.
func (r *Runner) Run(ctx context.Context, s *Session) Outcome {
	rl, out := r.mount(ctx, s)
	if rl != nil {
		if err := rl.teardown(ctx); err != nil {
			r.logger.Debug("teardown after run failed", "session", s.ID, "err", err)
		}
	}
	return out
}

// mount returns the live realm on success so the caller can keep the tree.
func (r *Runner) mount(ctx context.Context, s *Session) (*realm, Outcome) {
	start := time.Now()
	out := Outcome{SessionID: s.ID, Seq: s.Seq}
	defer func() {
		r.metrics.Render(out.label(), out.Duration)
	}()

	rl, err := newRealm(s, r.limits, r.logger)
	if err == nil {
		err = rl.mount(ctx)
	}
	out.Duration = time.Since(start)

	if err != nil {
		out.Err = asRuntimeError(err, r.limits.ExecutionTimeout)
		r.logger.Info("artifact runtime error",
			"session", s.ID,
			"surface", s.Surface,
			"err", out.Err.Message,
		)
		if rl != nil {
			if terr := rl.teardown(ctx); terr != nil {
				r.logger.Debug("teardown after failed mount", "session", s.ID, "err", terr)
			}
		}
		return nil, out
	}

	out.HTML = wrapRoot(s.Tokens, rl.html)
	return rl, out
}

// wrapRoot scopes the token variables to the sandbox root element.
func wrapRoot(tokens Snapshot, body string) string {
	return `<div data-canvas-root style="` + html.EscapeString(tokens.StyleVariables()) + `">` + body + `</div>`
}
