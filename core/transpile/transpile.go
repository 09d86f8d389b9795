// Package transpile turns sanitized TSX component source into a CommonJS
// script a JS realm can evaluate.
package transpile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

const (
	// SourceFile names the generated component in diagnostics.
	SourceFile = "Generated.tsx"

	jsxFactory  = "React.createElement"
	jsxFragment = "React.Fragment"
)

// Script is transpiled component code. Code assigns the component to
// module.exports.default when the source has a default export.
type Script struct {
	Code string
	Hash string
}

// Diagnostic is one esbuild message, kept verbatim.
type Diagnostic struct {
	Text     string `json:"text"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	LineText string `json:"line_text,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Line == 0 {
		return d.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", SourceFile, d.Line, d.Column, d.Text)
}

// CompileError reports source that esbuild could not parse.
type CompileError struct {
	Messages []Diagnostic `json:"messages"`
}

func (e *CompileError) Error() string {
	if len(e.Messages) == 0 {
		return "compile error"
	}
	parts := make([]string, len(e.Messages))
	for i, m := range e.Messages {
		parts[i] = m.String()
	}
	return strings.Join(parts, "\n")
}

// Transpiler erases types and lowers JSX to explicit createElement calls.
// Types are never checked.
type Transpiler struct {
	cache  *Cache
	logger *slog.Logger
}

type Option func(*Transpiler)

// WithCache sets the script cache. A nil cache disables caching.
func WithCache(c *Cache) Option {
	return func(t *Transpiler) { t.cache = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Transpiler) { t.logger = logger }
}

func New(opts ...Option) *Transpiler {
	t := &Transpiler{logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t
}

// Hash returns the cache key for source.
func Hash(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Transpile compiles source. A missing default export is not a compile
// error; it surfaces when the script runs.
func (t *Transpiler) Transpile(source string) (Script, error) {
	hash := Hash(source)
	if script, ok := t.cache.Get(hash); ok {
		return script, nil
	}

	result := api.Transform(source, api.TransformOptions{
		Loader:      api.LoaderTSX,
		Format:      api.FormatCommonJS,
		JSX:         api.JSXTransform,
		JSXFactory:  jsxFactory,
		JSXFragment: jsxFragment,
		Target:      api.ES2017,
		Sourcefile:  SourceFile,
		LogLevel:    api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		err := &CompileError{Messages: diagnostics(result.Errors)}
		t.logger.Debug("transpile failed", "hash", hash[:12], "errors", len(err.Messages))
		return Script{}, err
	}

	script := Script{Code: string(result.Code), Hash: hash}
	t.cache.Set(script)
	return script, nil
}

func diagnostics(msgs []api.Message) []Diagnostic {
	out := make([]Diagnostic, 0, len(msgs))
	for _, m := range msgs {
		d := Diagnostic{Text: m.Text}
		if m.Location != nil {
			d.Line = m.Location.Line
			d.Column = m.Location.Column
			d.LineText = m.Location.LineText
		}
		out = append(out, d)
	}
	return out
}
