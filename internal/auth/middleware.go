package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// contextKey is an unexported type for context keys in this package.
//
// context.WithValue keys are compared by type AND value. Using a
// package-private type means no other package can read or shadow the
// subject we store — a plain string key like "subject" would be
// collidable by anyone who knows the string.
type contextKey string

const subjectKey contextKey = "subject"

// RequireAuth enforces authentication on protected routes.
//
// It reads the standard "Authorization: Bearer <jwt>" header, validates
// the token, and stores the subject (the login identifier) in the request
// context. Missing or invalid tokens end the request with 401 — the
// wrapped handler never runs.
//
// The middleware resolves identity only as far as the token takes it;
// handlers that need the full user record look it up by the subject.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := extractSubject(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="sentiment-api"`)
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid_token","message":"valid bearer token required"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSubject(r.Context(), subject)))
		})
	}
}

// ContextWithSubject returns a context carrying the authenticated
// subject. RequireAuth uses it on every request; tests use it to stand
// in for the middleware.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext retrieves the authenticated subject from the request
// context. Returns ("", false) on routes where RequireAuth didn't run.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok && s != ""
}

// extractSubject pulls the bearer token out of the Authorization header
// and validates it.
//
// The scheme comparison is case-insensitive ("Bearer", "bearer") per
// RFC 7235; the token itself is passed through untouched.
func extractSubject(r *http.Request, tokens *TokenService) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, tokenStr, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || tokenStr == "" {
		return "", ErrNoBearerToken
	}

	return tokens.Validate(strings.TrimSpace(tokenStr))
}

// ErrNoBearerToken is returned when the Authorization header is absent or
// isn't a bearer credential.
var ErrNoBearerToken = errors.New("auth: authorization header missing or not a bearer token")
