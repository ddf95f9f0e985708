package http

import (
	"context"
	"time"

	"github.com/go-api-auth/internal/domain"
	jwtinfra "github.com/go-api-auth/internal/infrastructure/jwt"
	"github.com/go-api-auth/internal/pkg/code"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// EphemeralStore is the TTL key-value store behind codes, flow tokens and the
// refresh-token blacklist. Both the redis and the in-memory store satisfy it.
type EphemeralStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	GetDel(ctx context.Context, key string) ([]byte, error)
	Replace(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)
	Ping(ctx context.Context) error
}

// CodeDispatcher hands freshly issued codes to the mail pipeline.
type CodeDispatcher interface {
	Dispatch(ctx context.Context, email, code string)
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Users       UserRepository
	Store       EphemeralStore
	JWTProvider *jwtinfra.Provider
	Mail        CodeDispatcher
	Codes       code.Generator // nil means random six-digit codes
	BcryptCost  int            // 0 means bcrypt.DefaultCost
}
