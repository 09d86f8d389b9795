package sandbox

import (
	"time"

	"github.com/adalundhe/canvas/core/transpile"
)

// Session is one render request against a surface. Sessions on a surface are
// totally ordered by Seq; a later one supersedes every earlier one.
//
// Source and Script may be filled in after Begin, up to the call to Render.
type Session struct {
	ID        string
	Surface   string
	Seq       uint64
	Source    string
	Script    transpile.Script
	Tokens    Snapshot
	CreatedAt time.Time
}

// Event is the payload delivered to an event handler of the mounted tree.
type Event struct {
	Type    string `json:"type"`
	Value   string `json:"value,omitempty"`
	Checked bool   `json:"checked,omitempty"`
	Key     string `json:"key,omitempty"`
	Name    string `json:"name,omitempty"`
}

func (e Event) toJS() map[string]any {
	return map[string]any{
		"value":   e.Value,
		"checked": e.Checked,
		"key":     e.Key,
		"name":    e.Name,
	}
}

// Outcome is the result of a render. Exactly one of HTML, Err and Compile
// describes it: a mounted view, a runtime failure, or a compile failure.
type Outcome struct {
	SessionID string                  `json:"session_id"`
	Seq       uint64                  `json:"seq"`
	HTML      string                  `json:"html,omitempty"`
	Err       *RuntimeError           `json:"runtime_error,omitempty"`
	Compile   *transpile.CompileError `json:"compile_error,omitempty"`
	Duration  time.Duration           `json:"duration"`
}

func (o Outcome) OK() bool {
	return o.Err == nil && o.Compile == nil
}

func (o Outcome) label() string {
	switch {
	case o.Compile != nil:
		return "compile_error"
	case o.Err != nil:
		return "runtime_error"
	default:
		return "mounted"
	}
}

// Primitives returns the names of the stub components injected into every
// realm.
func Primitives() []string {
	return []string{"Button", "Input", "Textarea", "Separator"}
}
