package redisinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-api-auth/internal/domain"
	"github.com/redis/go-redis/v9"
)

// compareAndDeleteLua deletes KEYS[1] only when its value equals ARGV[1].
// Returns 1 when the key was deleted, 0 otherwise. One round trip, so two
// concurrent callers presenting the same value cannot both win.
var compareAndDeleteLua = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Store is the Redis-backed ephemeral key-value store. Every operation runs
// under its own short deadline and reports backend failures as domain.ErrTransient.
type Store struct {
	rdb     redis.UniversalClient
	timeout time.Duration
}

// NewClient parses a redis:// URL and returns a connected client handle.
func NewClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// NewStore wraps rdb. A non-positive timeout disables the per-call deadline.
func NewStore(rdb redis.UniversalClient, timeout time.Duration) *Store {
	return &Store{rdb: rdb, timeout: timeout}
}

func (s *Store) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Set stores value under key, overwriting any previous value.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return transient("set", err)
	}
	return nil
}

// Get returns the value stored under key or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, lookupErr("get", err)
	}
	return b, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return transient("del", err)
	}
	return nil
}

// GetDel atomically reads and removes key.
func (s *Store) GetDel(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	b, err := s.rdb.GetDel(ctx, key).Bytes()
	if err != nil {
		return nil, lookupErr("getdel", err)
	}
	return b, nil
}

// Replace overwrites key and resets its TTL only if key still exists.
func (s *Store) Replace(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	ok, err := s.rdb.SetXX(ctx, key, value, ttl).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, transient("setxx", err)
	}
	return ok, nil
}

// SetNX stores value only if key is absent. Reports whether it was stored.
func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	ok, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, transient("setnx", err)
	}
	return ok, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, transient("exists", err)
	}
	return n > 0, nil
}

// CompareAndDelete deletes key iff its current value equals expected.
func (s *Store) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	n, err := compareAndDeleteLua.Run(ctx, s.rdb, []string{key}, expected).Int64()
	if err != nil {
		return false, transient("compare-and-delete", err)
	}
	return n == 1, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return transient("ping", err)
	}
	return nil
}

func lookupErr(op string, err error) error {
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("key not found: %w", domain.ErrNotFound)
	}
	return transient(op, err)
}

func transient(op string, err error) error {
	return fmt.Errorf("redis %s: %w: %v", op, domain.ErrTransient, err)
}
