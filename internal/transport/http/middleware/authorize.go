package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/go-api-auth/internal/domain"
)

// AuthorizationCheck decides whether an authenticated principal may perform
// the request.
type AuthorizationCheck func(r *http.Request, p *domain.Principal) bool

// IsOwner allows the request only when the principal's id equals the URL
// parameter param.
func IsOwner(param string) AuthorizationCheck {
	return func(r *http.Request, p *domain.Principal) bool {
		target := chi.URLParam(r, param)
		return target != "" && p.UserID == target
	}
}

// Authorize returns middleware enforcing check. It must run after Auth.
func Authorize(check AuthorizationCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !check(r, p) {
				writeJSONError(w, http.StatusForbidden, "you do not have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
