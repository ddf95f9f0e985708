package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-api-auth/internal/domain"
)

// httpError maps a service error to a status code and a deliberately terse body.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	var fields domain.FieldErrors
	switch {
	case errors.As(err, &fields):
		writeJSON(w, http.StatusBadRequest, ErrorEnvelope{Error: "validation failed", Fields: fields})
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusForbidden, "invalid username or password")
	case errors.Is(err, domain.ErrInvalidToken):
		writeError(w, http.StatusForbidden, "token expired or code invalid")
	case errors.Is(err, domain.ErrRevoked), errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "refresh token missing or invalid")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusBadRequest, "already exists")
	case errors.Is(err, domain.ErrTransient):
		slog.WarnContext(r.Context(), "dependency unavailable", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable, retry the step")
	default:
		slog.ErrorContext(r.Context(), "unhandled error", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
