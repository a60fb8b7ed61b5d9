package auth

import (
	"context"
	"net/http"
)

// contextKey is an unexported type for this package's context keys.
// Using a package-private type (instead of a bare string) means no other
// package can read or shadow the value we store — only this package can
// construct a key of this type.
type contextKey string

const subjectKey contextKey = "subject"

// CookieName is the session cookie the middleware reads and the auth
// handler sets. HttpOnly, so script in the page can never read the token.
const CookieName = "token"

// RequireAuth gates a route group behind a valid session cookie.
//
// It validates the JWT from the cookie, puts the token subject in the
// request context, and 401s anything without a valid token. The handler
// chain below it can assume SubjectFromContext succeeds.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := extractSubject(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the subject when a valid token is present but
// never blocks the request. For routes that render for both anonymous and
// signed-in callers.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subject, err := extractSubject(r, tokens); err == nil && subject != "" {
				r = r.WithContext(context.WithValue(r.Context(), subjectKey, subject))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SubjectFromContext returns the authenticated subject (the account email,
// or a synthetic id for accounts without one), or ("", false) for an
// anonymous request.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok && subject != ""
}

func extractSubject(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		// http.ErrNoCookie — anonymous request
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
