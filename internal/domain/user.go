package domain

import "time"

// User is the persistent identity owned by the user store.
type User struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	Username     string    `json:"username" dynamodbav:"username"`
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Bio          string    `json:"bio" dynamodbav:"bio"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

// Principal is the identity resolved from a validated access token.
type Principal struct {
	UserID   string
	Username string
}

// UpdateUserRequest is a partial profile update; nil fields are left unchanged.
type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=30"`
	Bio      *string `json:"bio" validate:"omitempty,max=500"`
}
