// Package flow threads short-lived state through multi-step flows using
// opaque single-use tokens stored in the ephemeral store.
package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-api-auth/internal/domain"
	"github.com/go-api-auth/internal/pkg/id"
	"github.com/google/uuid"
)

// Key prefixes for the two flows in use.
const (
	RegistrationPrefix = "reg:"
	LoginPrefix        = "login:"
)

type stateStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	GetDel(ctx context.Context, key string) ([]byte, error)
	Replace(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// Manager stores values of T under prefix+token. Absent and expired tokens
// both surface as domain.ErrInvalidToken.
type Manager[T any] struct {
	store  stateStore
	prefix string
}

func NewManager[T any](store stateStore, prefix string) *Manager[T] {
	return &Manager[T]{store: store, prefix: prefix}
}

// Begin stores state under a fresh token that lives for ttl.
func (m *Manager[T]) Begin(ctx context.Context, state T, ttl time.Duration) (string, error) {
	b, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encode flow state: %w", err)
	}
	token := id.NewToken()
	if err := m.store.Set(ctx, m.prefix+token, b, ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Load returns the state behind token without changing it.
func (m *Manager[T]) Load(ctx context.Context, token string) (T, error) {
	var zero T
	if !wellFormed(token) {
		return zero, invalid()
	}
	b, err := m.store.Get(ctx, m.prefix+token)
	if err != nil {
		return zero, mapErr(err)
	}
	return decode[T](b)
}

// Advance applies mutate to the stored state and resets its lifetime to ttl.
func (m *Manager[T]) Advance(ctx context.Context, token string, mutate func(*T), ttl time.Duration) (T, error) {
	state, err := m.Load(ctx, token)
	if err != nil {
		return state, err
	}
	mutate(&state)
	b, err := json.Marshal(state)
	if err != nil {
		return state, fmt.Errorf("encode flow state: %w", err)
	}
	ok, err := m.store.Replace(ctx, m.prefix+token, b, ttl)
	if err != nil {
		return state, err
	}
	if !ok {
		// consumed or expired between the read and the write
		var zero T
		return zero, invalid()
	}
	return state, nil
}

// Consume returns the state and deletes it. Only one caller can consume a token.
func (m *Manager[T]) Consume(ctx context.Context, token string) (T, error) {
	var zero T
	if !wellFormed(token) {
		return zero, invalid()
	}
	b, err := m.store.GetDel(ctx, m.prefix+token)
	if err != nil {
		return zero, mapErr(err)
	}
	return decode[T](b)
}

func wellFormed(token string) bool {
	_, err := uuid.Parse(token)
	return err == nil
}

func decode[T any](b []byte) (T, error) {
	var state T
	if err := json.Unmarshal(b, &state); err != nil {
		var zero T
		return zero, fmt.Errorf("corrupt flow state: %w", domain.ErrInvalidToken)
	}
	return state, nil
}

func mapErr(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return invalid()
	}
	return err
}

func invalid() error {
	return fmt.Errorf("flow token: %w", domain.ErrInvalidToken)
}
