package middleware

import (
	"net/http"
	"strings"
)

// Error codes used within middleware responses.
const (
	errCodeUnauthorized = "unauthorized"
)

// AuthMiddleware gates requests behind a single shared bearer credential.
// Per the non-goals, there is no per-user or per-tenant identity: a request
// either carries the configured token or it doesn't.
type AuthMiddleware struct {
	sharedToken string
}

// NewAuthMiddleware creates an AuthMiddleware. When sharedToken is empty,
// Authenticate is a no-op — auth is optional, as several endpoints
// (invoke, the fan-out) only enforce it when a token has been configured.
func NewAuthMiddleware(sharedToken string) *AuthMiddleware {
	return &AuthMiddleware{sharedToken: sharedToken}
}

// Enabled reports whether a shared token is configured.
func (am *AuthMiddleware) Enabled() bool {
	return am.sharedToken != ""
}

// Authenticate returns an http.Handler middleware that checks the shared
// bearer token, accepted either in the Authorization header ("Bearer <tok>")
// or in a "token" query parameter — browser EventSource clients cannot set
// custom headers, so the fan-out endpoints need the query-param fallback.
func (am *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !am.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		if !am.checkToken(r) {
			writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "missing or invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (am *AuthMiddleware) checkToken(r *http.Request) bool {
	if tok := am.bearerToken(r); tok != "" {
		return tok == am.sharedToken
	}
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok == am.sharedToken
	}
	return false
}

func (am *AuthMiddleware) bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
