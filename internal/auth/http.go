package auth

import (
	"net/http"
	"strings"

	"hopperGateway/internal/apperrors"
)

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", apperrors.Unauthenticated("missing authorization", nil)
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.Unauthenticated("invalid authorization header", nil)
	}
	return strings.TrimSpace(parts[1]), nil
}

// NewHTTPMiddleware verifies the bearer token of every request and injects
// the Principal into its context. Failures are handed to onError and the
// request goes no further.
func NewHTTPMiddleware(v Verifier, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, err := BearerToken(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			p, err := v.Verify(r.Context(), tok)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
