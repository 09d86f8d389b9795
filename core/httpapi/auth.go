package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// DefaultUserHeader carries the authenticated user id set by the fronting
// proxy.
const DefaultUserHeader = "X-Canvas-User"

var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves the user behind a request. Session handling lives
// outside this service.
type Authenticator interface {
	Authenticate(r *http.Request) (userID string, err error)
}

// HeaderAuthenticator trusts a header written by an authenticating proxy.
type HeaderAuthenticator struct {
	Header string
}

func (a HeaderAuthenticator) Authenticate(r *http.Request) (string, error) {
	name := a.Header
	if name == "" {
		name = DefaultUserHeader
	}
	user := strings.TrimSpace(r.Header.Get(name))
	if user == "" {
		return "", ErrUnauthenticated
	}
	return user, nil
}

type userKey struct{}

func withUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFrom returns the user stored by the auth middleware.
func UserFrom(ctx context.Context) string {
	user, _ := ctx.Value(userKey{}).(string)
	return user
}

func requireUser(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.Authenticate(r)
			if err != nil || user == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}
