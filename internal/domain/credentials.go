package domain

import "time"

// TokenPair is the access + refresh credential pair issued after authentication.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
