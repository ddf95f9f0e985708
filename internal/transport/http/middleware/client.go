package middleware

import (
	"net/http"

	"github.com/go-api-auth/internal/transport/http/delivery"
)

// ClientContext classifies every request as web or mobile once, up front.
func ClientContext(s *delivery.Strategy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := delivery.WithClient(r.Context(), s.ClientType(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
