package sandbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

var (
	ErrSessionSuperseded = errors.New("session superseded by a newer render")
	ErrSessionClosed     = errors.New("preview surface closed")
	ErrNothingMounted    = errors.New("no tree mounted on the surface")

	errExecutionTimeout = errors.New("execution timed out")
)

// MessageNoDefaultExport is reported when the artifact runs without
// producing a default export.
const MessageNoDefaultExport = "no default export found: the component must be declared with `export default function`"

// RuntimeError is a failure inside the artifact's realm. It is rendered in
// place of the tree and never propagates into the host.
type RuntimeError struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

func (e *RuntimeError) Error() string {
	return e.Message
}

func runtimeErrorf(format string, args ...any) *RuntimeError {
	return &RuntimeError{Message: fmt.Sprintf(format, args...)}
}

// asRuntimeError converts anything the realm returned into a RuntimeError.
func asRuntimeError(err error, timeout time.Duration) *RuntimeError {
	if err == nil {
		return nil
	}

	var re *RuntimeError
	if errors.As(err, &re) {
		return re
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if errors.Is(err, errExecutionTimeout) {
			return runtimeErrorf("execution timed out after %s", timeout)
		}
		return runtimeErrorf("execution interrupted: %v", interrupted.Value())
	}

	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return &RuntimeError{Message: "RangeError: Maximum call stack size exceeded", Stack: overflow.String()}
	}

	var ex *goja.Exception
	if errors.As(err, &ex) {
		msg := "uncaught exception"
		if v := ex.Value(); v != nil {
			msg = v.String()
		}
		return &RuntimeError{Message: msg, Stack: ex.String()}
	}

	return &RuntimeError{Message: err.Error()}
}
