package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serveHealth(p Pinger, action string) int {
	r := chi.NewRouter()
	r.Get("/health-check/{action}", NewHealthHandler(p).Check)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health-check/"+action, nil))
	return rr.Code
}

func TestHealth(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("down") })

	assert.Equal(t, http.StatusOK, serveHealth(up, "ping"))
	assert.Equal(t, http.StatusOK, serveHealth(down, "ping"))
	assert.Equal(t, http.StatusOK, serveHealth(up, "ready"))
	assert.Equal(t, http.StatusServiceUnavailable, serveHealth(down, "ready"))
	assert.Equal(t, http.StatusBadRequest, serveHealth(up, "dance"))
}
