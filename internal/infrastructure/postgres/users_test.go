package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/go-api-auth/internal/domain"
)

func TestModelRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	u := &domain.User{
		UserID:       "01HZX",
		Username:     "alice",
		Email:        "a@b.com",
		PasswordHash: "$2a$10$hash",
		Bio:          "hi",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	assert.Equal(t, u, toDomain(toModel(u)))
	assert.Equal(t, "users", UserModel{}.TableName())
}

func TestClassify(t *testing.T) {
	assert.True(t, errors.Is(classify("find user", gorm.ErrRecordNotFound), domain.ErrNotFound))
	assert.True(t, errors.Is(classify("create user", fmt.Errorf("wrapped: %w", gorm.ErrDuplicatedKey)), domain.ErrConflict))
	assert.True(t, errors.Is(classify("create user", errors.New("connection refused")), domain.ErrTransient))
}
