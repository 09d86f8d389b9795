package router

import (
	"time"

	coreerrors "github.com/adalundhe/canvas/core/errors"
	"github.com/adalundhe/canvas/core/providers"
)

// Request is one logical completion. It is never mutated by the router.
type Request struct {
	// Provider selects the first provider to try; empty means the default.
	Provider providers.ProviderType
	// Model applies to the requested provider only. Fallback attempts use the
	// fallback provider's default model.
	Model    string
	Messages []providers.Message
	Mode     providers.ResponseMode
	// APIKey overrides the requested provider's configured credential for
	// this call only.
	APIKey      string
	Temperature *float64
}

// Attempt records one provider call made while serving a Request.
type Attempt struct {
	Provider providers.ProviderType
	Model    string
	Kind     coreerrors.Kind
	Err      error
	Duration time.Duration
}

// Succeeded reports whether the attempt produced text.
func (a Attempt) Succeeded() bool {
	return a.Err == nil
}

// Completion is a successful outcome.
type Completion struct {
	Text     string
	Provider providers.ProviderType
	Model    string
	Mode     providers.ResponseMode
	Attempts []Attempt
}

// GeneratedArtifact is raw model text tagged with the format the caller asked
// for, so the consumer knows whether to parse it as JSON or treat it as source.
type GeneratedArtifact struct {
	Text   string
	Format providers.ResponseMode
}

func (c *Completion) Artifact() GeneratedArtifact {
	return GeneratedArtifact{Text: c.Text, Format: c.Mode}
}

// IsJSON reports whether the artifact was requested as structured JSON.
func (a GeneratedArtifact) IsJSON() bool {
	return a.Format == providers.ModeJSON
}

// StreamHandlers receive the incremental output of Router.Stream.
type StreamHandlers struct {
	// OnChunk receives each text delta in order. Returning an error aborts
	// the stream.
	OnChunk func(chunk string) error
	// OnComplete is called exactly once with the full text after success.
	OnComplete func(text string)
}
