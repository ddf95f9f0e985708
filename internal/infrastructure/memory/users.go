package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-api-auth/internal/domain"
)

// UserRepo keeps users in a map keyed by id. Username and email are unique.
type UserRepo struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]domain.User)}
}

func (r *UserRepo) Put(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.UserID]; ok {
		return fmt.Errorf("user %s: %w", u.UserID, domain.ErrConflict)
	}
	for _, existing := range r.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return fmt.Errorf("username or email taken: %w", domain.ErrConflict)
		}
	}
	r.users[u.UserID] = *u
	return nil
}

func (r *UserRepo) Get(_ context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email })
}

// Update applies the recognised profile fields from updates.
func (r *UserRepo) Update(_ context.Context, userID string, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	for k, v := range updates {
		s, _ := v.(string)
		switch k {
		case "username":
			for id, other := range r.users {
				if id != userID && other.Username == s {
					return fmt.Errorf("username taken: %w", domain.ErrConflict)
				}
			}
			u.Username = s
		case "bio":
			u.Bio = s
		default:
			return fmt.Errorf("unknown field %q: %w", k, domain.ErrBadRequest)
		}
	}
	u.UpdatedAt = time.Now().UTC()
	r.users[userID] = u
	return nil
}

func (r *UserRepo) find(match func(domain.User) bool) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
}
