package middleware

import (
	"context"
	"net/http"

	"github.com/go-api-auth/internal/domain"
	"github.com/go-api-auth/internal/transport/http/delivery"
)

type contextKey string

const principalKey contextKey = "principal"

// TokenValidator resolves an access token to the identity it was issued for.
type TokenValidator interface {
	ValidateAccess(ctx context.Context, token string) (*domain.Principal, error)
}

// Auth returns middleware that accepts the first candidate access token that
// validates and injects the resolved principal into the context.
func Auth(v TokenValidator, s *delivery.Strategy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := delivery.ClientFrom(r.Context())
			for _, token := range s.AccessCandidates(r, client) {
				p, err := v.ValidateAccess(r.Context(), token)
				if err != nil {
					continue
				}
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
				return
			}
			writeJSONError(w, http.StatusUnauthorized, "authentication credentials were not provided or are invalid")
		})
	}
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext extracts the authenticated principal from the request context.
func PrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*domain.Principal)
	return p, ok && p != nil
}
