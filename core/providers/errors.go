package providers

import (
	"errors"
	"fmt"

	coreerrors "github.com/adalundhe/canvas/core/errors"
)

var (
	ErrMissingCredential     = errors.New("missing api key")
	ErrEmptyResponse         = errors.New("response carried no content")
	ErrProviderNotRegistered = errors.New("provider not registered")
	ErrNoDefaultProvider     = errors.New("no default provider set")
)

// ProviderError is an upstream failure with the provider's status and text
// preserved verbatim so the classifier can match on them.
type ProviderError struct {
	Provider   ProviderType
	StatusCode int
	Status     string
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// HTTPStatus exposes the upstream status to the classifier.
func (e *ProviderError) HTTPStatus() int {
	return e.StatusCode
}

func missingCredential(t ProviderType) error {
	return coreerrors.Wrap(coreerrors.KindAuthInvalid, string(t), ErrMissingCredential)
}

func emptyResponse(t ProviderType) error {
	return coreerrors.Wrap(coreerrors.KindMalformed, string(t), ErrEmptyResponse)
}
