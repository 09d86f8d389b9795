package sandbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/adalundhe/canvas/core/sanitize"
	"github.com/adalundhe/canvas/core/transpile"
)

// Engine is the preview pipeline: sanitize, transpile, begin a session and
// render it on a surface.
type Engine struct {
	manager    *Manager
	transpiler *transpile.Transpiler
}

func NewEngine(manager *Manager, transpiler *transpile.Transpiler) *Engine {
	if transpiler == nil {
		transpiler = transpile.New()
	}
	return &Engine{manager: manager, transpiler: transpiler}
}

func (e *Engine) Manager() *Manager {
	return e.manager
}

// Preview renders raw model output on the surface. A compile error is
// returned inside the outcome and leaves the mounted tree alone.
func (e *Engine) Preview(ctx context.Context, surfaceID, raw string, tokens map[string]string) (Outcome, error) {
	sf := e.manager.Surface(surfaceID)
	s := sf.Begin(sanitize.Sanitize(raw), NewSnapshot(tokens))
	return e.Apply(ctx, sf, s)
}

// Apply transpiles and renders a session begun earlier. Callers that wait
// on a provider begin the session first so a newer request supersedes it.
func (e *Engine) Apply(ctx context.Context, sf *Surface, s *Session) (Outcome, error) {
	script, err := e.transpiler.Transpile(s.Source)
	if err != nil {
		var ce *transpile.CompileError
		if !errors.As(err, &ce) {
			return Outcome{}, err
		}
		out := Outcome{SessionID: s.ID, Seq: s.Seq, Compile: ce}
		e.manager.runner.metrics.Render(out.label(), 0)
		if err := sf.Show(s, out); err != nil {
			return Outcome{}, err
		}
		return out, nil
	}
	s.Script = script
	return sf.Render(ctx, s)
}

// Run renders raw once in a throwaway realm, without any surface.
func (e *Engine) Run(ctx context.Context, raw string, tokens map[string]string) Outcome {
	source := sanitize.Sanitize(raw)
	s := &Session{ID: uuid.NewString(), Source: source, Tokens: NewSnapshot(tokens), CreatedAt: time.Now()}
	script, err := e.transpiler.Transpile(source)
	if err != nil {
		var ce *transpile.CompileError
		if errors.As(err, &ce) {
			return Outcome{Compile: ce}
		}
		return Outcome{Err: &RuntimeError{Message: err.Error()}}
	}
	s.Script = script
	return e.manager.runner.Run(ctx, s)
}
