package otherus

import (
	"context"
	"net/http"
	"strings"
)

type contextKey int

const userContextKey contextKey = iota

// BearerToken pulls the bearer token out of the Authorization header.
// Returns "" when the header is missing or not a bearer scheme.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// UserFromContext returns the authenticated user placed in the request
// context by EnsureUser, or nil outside a protected handler.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey).(*User)
	return user
}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// EnsureUser guards protected routes. It verifies the bearer token,
// re-resolves the user record and makes it available downstream via
// UserFromContext. Requests without a valid token for an existing user
// get a 401 and never reach the wrapped handler.
func (a *Auth) EnsureUser(onReject func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				onReject(w, r, ErrUnauthorized)
				return
			}
			user, err := a.Authenticate(r.Context(), token)
			if err != nil {
				onReject(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
