package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health-check endpoints.
type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler { return &HealthHandler{store: store} }

// Check serves /health-check/{action}: "ping" for liveness, "ready" for the
// ephemeral store's reachability.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "ready":
		if h.store != nil {
			if err := h.store.Ping(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "store unreachable")
				return
			}
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ready"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
