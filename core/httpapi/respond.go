package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	coreerrors "github.com/adalundhe/canvas/core/errors"
	"github.com/adalundhe/canvas/core/sandbox"
	"github.com/adalundhe/canvas/core/studio"
	"github.com/adalundhe/canvas/core/tokens"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps a service error onto an HTTP status. A rejected credential
// keeps the upstream wording so the user can fix the key.
func statusFor(err error) (int, errorBody) {
	switch {
	case errors.Is(err, studio.ErrInvalidRequest):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, tokens.ErrNoUser):
		return http.StatusUnauthorized, errorBody{Error: "Unauthorized"}
	case errors.Is(err, sandbox.ErrSessionSuperseded):
		return http.StatusConflict, errorBody{Error: "superseded by a newer render"}
	case errors.Is(err, sandbox.ErrSessionClosed):
		return http.StatusGone, errorBody{Error: err.Error()}
	case errors.Is(err, sandbox.ErrNothingMounted):
		return http.StatusConflict, errorBody{Error: err.Error()}
	}

	var f *coreerrors.Failure
	if errors.As(err, &f) {
		body := errorBody{Error: f.Error(), Kind: f.Kind.String()}
		switch f.Kind {
		case coreerrors.KindAuthInvalid:
			return http.StatusUnauthorized, body
		case coreerrors.KindCapacityExhausted:
			return http.StatusServiceUnavailable, body
		default:
			return http.StatusBadGateway, body
		}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error"}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed", "path", r.URL.Path, "status", status, "err", err)
	writeJSON(w, status, body)
}

// decode reads a JSON body into v, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request")
		return false
	}
	return true
}
