// Package errors implements the completion failure taxonomy and its classifier.
package errors

import (
	"errors"
	"fmt"
)

// Kind is the classification of a failed provider call.
// Only KindCapacityExhausted allows the router to move on to the next provider.
type Kind int

const (
	// KindUnknown covers everything that is neither capacity nor credential related.
	// Timeouts land here as well.
	KindUnknown Kind = iota

	// KindCapacityExhausted indicates rate limiting or quota exhaustion upstream.
	KindCapacityExhausted

	// KindAuthInvalid indicates a missing or rejected credential.
	KindAuthInvalid

	// KindMalformed indicates the provider answered but the answer carried no
	// usable text.
	KindMalformed
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindCapacityExhausted: "capacity_exhausted",
	KindAuthInvalid:       "auth_invalid",
	KindMalformed:         "malformed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Retryable reports whether a failure of this kind may fall back to another provider.
func (k Kind) Retryable() bool {
	return k == KindCapacityExhausted
}

// Failure is the error value returned by the completion router.
type Failure struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Message    string
	Underlying error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", f.Kind, f.Provider, f.Message)
	}
	return fmt.Sprintf("[%s] %s", f.Kind, f.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (f *Failure) Unwrap() error {
	return f.Underlying
}

// Is matches another *Failure with the same kind.
func (f *Failure) Is(target error) bool {
	var other *Failure
	if errors.As(target, &other) {
		return f.Kind == other.Kind
	}
	return false
}

// NewFailure creates a Failure with the given kind and message.
func NewFailure(kind Kind, provider, message string) *Failure {
	return &Failure{
		Kind:     kind,
		Provider: provider,
		Message:  message,
	}
}

// WithStatusCode records the upstream HTTP status.
func (f *Failure) WithStatusCode(code int) *Failure {
	f.StatusCode = code
	return f
}

// Wrap classifies nothing: it attaches kind and provider to err verbatim.
// An existing *Failure keeps its kind.
func Wrap(kind Kind, provider string, err error) *Failure {
	if err == nil {
		return nil
	}

	var existing *Failure
	if errors.As(err, &existing) {
		return &Failure{
			Kind:       existing.Kind,
			Provider:   provider,
			StatusCode: existing.StatusCode,
			Message:    existing.Message,
			Underlying: err,
		}
	}

	f := &Failure{
		Kind:       kind,
		Provider:   provider,
		Message:    err.Error(),
		Underlying: err,
	}
	if code, ok := StatusOf(err); ok {
		f.StatusCode = code
	}
	return f
}

// KindOf extracts the Kind from an error, defaulting to KindUnknown.
func KindOf(err error) Kind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// StatusOf returns the HTTP status carried anywhere in err's chain.
func StatusOf(err error) (int, bool) {
	var sc StatusCoder
	if errors.As(err, &sc) {
		if code := sc.HTTPStatus(); code > 0 {
			return code, true
		}
	}
	return 0, false
}

// Sentinel failures, comparable with errors.Is.
var (
	ErrCapacityExhausted = NewFailure(KindCapacityExhausted, "", "capacity exhausted")
	ErrAuthInvalid       = NewFailure(KindAuthInvalid, "", "invalid credential")
	ErrMalformed         = NewFailure(KindMalformed, "", "malformed response")
	ErrUnknown           = NewFailure(KindUnknown, "", "unknown failure")
)
