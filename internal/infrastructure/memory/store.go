// Package memory provides in-process implementations of the ephemeral store
// and the user repository. They back tests and single-instance local runs.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-api-auth/internal/domain"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// Store is a mutex-guarded map with per-key expiry. Expired entries read as
// absent and are dropped lazily on access.
type Store struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{data: make(map[string]entry), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// lookup must be called with mu held.
func (s *Store) lookup(key string) (entry, bool) {
	e, ok := s.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.data, key)
		return entry{}, false
	}
	return e, true
}

func (s *Store) put(key string, value []byte, ttl time.Duration) {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.data[key] = e
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(key, value, ttl)
	return nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return nil, fmt.Errorf("key not found: %w", domain.ErrNotFound)
	}
	return append([]byte(nil), e.value...), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) GetDel(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return nil, fmt.Errorf("key not found: %w", domain.ErrNotFound)
	}
	delete(s.data, key)
	return e.value, nil
}

func (s *Store) Replace(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(key); !ok {
		return false, nil
	}
	s.put(key, value, ttl)
	return true, nil
}

func (s *Store) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.put(key, value, ttl)
	return true, nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lookup(key)
	return ok, nil
}

func (s *Store) CompareAndDelete(_ context.Context, key string, expected []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok || !bytes.Equal(e.value, expected) {
		return false, nil
	}
	delete(s.data, key)
	return true, nil
}

// TTL returns the remaining lifetime of key, or 0 when absent or persistent.
func (s *Store) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok || e.expiresAt.IsZero() {
		return 0
	}
	return e.expiresAt.Sub(s.now())
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }
