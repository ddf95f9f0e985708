package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-api-auth/internal/domain"
	"github.com/go-api-auth/internal/pkg/validate"
)

// Attribute names used in partial update maps. Every user store understands them.
const (
	fieldUsername = "username"
	fieldBio      = "bio"
)

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type service struct {
	repo userStore
}

func NewService(repo userStore) Service {
	return &service{repo: repo}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		req.Username = &trimmed
	}
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	current, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Username != nil && *req.Username != current.Username {
		other, err := s.repo.GetByUsername(ctx, *req.Username)
		switch {
		case err == nil && other.UserID != userID:
			return nil, domain.FieldErrors{fieldUsername: "is already in use"}
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
		updates[fieldUsername] = *req.Username
	}
	if req.Bio != nil && *req.Bio != current.Bio {
		updates[fieldBio] = *req.Bio
	}
	if len(updates) == 0 {
		return current, nil
	}

	if err := s.repo.Update(ctx, userID, updates); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.FieldErrors{fieldUsername: "is already in use"}
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.repo.Get(ctx, userID)
}
