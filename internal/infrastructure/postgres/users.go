// Package postgres is the relational user store, backed by gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/go-api-auth/internal/domain"
)

// UserModel is the GORM model for users.
type UserModel struct {
	ID           string `gorm:"primaryKey;size:26"`
	Username     string `gorm:"uniqueIndex;size:30;not null"`
	Email        string `gorm:"uniqueIndex;size:254;not null"`
	PasswordHash string `gorm:"not null"`
	Bio          string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

// Open connects to dsn and migrates the users table.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}); err != nil {
		return nil, fmt.Errorf("migrate users: %w", err)
	}
	return db, nil
}

// UserRepo implements the user store on a relational database.
type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Put(ctx context.Context, u *domain.User) error {
	if err := r.db.WithContext(ctx).Create(toModel(u)).Error; err != nil {
		return classify("create user", err)
	}
	return nil
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	return r.first(ctx, "id = ?", userID)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", email)
}

// Update writes the given columns. Keys are column names.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return classify("update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *UserRepo) first(ctx context.Context, query string, arg string) (*domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		return nil, classify("find user", err)
	}
	return toDomain(&m), nil
}

func classify(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, domain.ErrConflict)
	default:
		return fmt.Errorf("%s: %w: %v", op, domain.ErrTransient, err)
	}
}

func toModel(u *domain.User) *UserModel {
	return &UserModel{
		ID:           u.UserID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Bio:          u.Bio,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func toDomain(m *UserModel) *domain.User {
	return &domain.User{
		UserID:       m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Bio:          m.Bio,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
