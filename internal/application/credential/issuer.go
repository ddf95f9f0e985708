// Package credential mints, rotates and revokes access/refresh token pairs.
package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/go-api-auth/internal/domain"
	jwtinfra "github.com/go-api-auth/internal/infrastructure/jwt"
)

const blacklistPrefix = "blacklist:"

type tokenSigner interface {
	SignAccess(userID, username string) (jwtinfra.Signed, error)
	SignRefresh(userID, username string) (jwtinfra.Signed, error)
	VerifyAccess(token string) (*jwtinfra.Claims, error)
	VerifyRefresh(token string) (*jwtinfra.Claims, error)
}

type blacklistStore interface {
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// Issuer is the only component that hands out credential pairs. Refresh
// tokens are single-use: rotating one blacklists its jti until it would
// have expired anyway.
type Issuer struct {
	signer tokenSigner
	store  blacklistStore
	now    func() time.Time
}

func NewIssuer(signer tokenSigner, store blacklistStore) *Issuer {
	return &Issuer{signer: signer, store: store, now: time.Now}
}

// Issue mints a fresh pair for u.
func (i *Issuer) Issue(_ context.Context, u *domain.User) (*domain.TokenPair, error) {
	return i.mint(u.UserID, u.Username)
}

func (i *Issuer) mint(userID, username string) (*domain.TokenPair, error) {
	access, err := i.signer.SignAccess(userID, username)
	if err != nil {
		return nil, err
	}
	refresh, err := i.signer.SignRefresh(userID, username)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// Rotate exchanges a live refresh token for a new pair. The old token's jti
// is blacklisted with SETNX before anything is minted, so of two concurrent
// rotations of the same token exactly one succeeds and the other gets
// domain.ErrRevoked.
func (i *Issuer) Rotate(ctx context.Context, refresh string) (*domain.TokenPair, error) {
	claims, err := i.signer.VerifyRefresh(refresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRevoked, err)
	}
	won, err := i.blacklist(ctx, claims)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("refresh token already used: %w", domain.ErrRevoked)
	}
	return i.mint(claims.UserID, claims.Username)
}

// Revoke blacklists refresh. Malformed, expired and already revoked tokens
// are a no-op; only a store failure is reported.
func (i *Issuer) Revoke(ctx context.Context, refresh string) error {
	if refresh == "" {
		return nil
	}
	claims, err := i.signer.VerifyRefresh(refresh)
	if err != nil {
		return nil
	}
	_, err = i.blacklist(ctx, claims)
	return err
}

// ValidateAccess resolves an access token to the identity it was issued for.
func (i *Issuer) ValidateAccess(_ context.Context, access string) (*domain.Principal, error) {
	claims, err := i.signer.VerifyAccess(access)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	return &domain.Principal{UserID: claims.UserID, Username: claims.Username}, nil
}

// blacklist records the jti for the token's remaining lifetime and reports
// whether this call was the one that recorded it.
func (i *Issuer) blacklist(ctx context.Context, claims *jwtinfra.Claims) (bool, error) {
	ttl := time.Second
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Sub(i.now()); remaining > ttl {
			ttl = remaining
		}
	}
	won, err := i.store.SetNX(ctx, blacklistPrefix+claims.ID, []byte(claims.UserID), ttl)
	if err != nil {
		return false, fmt.Errorf("blacklist refresh token: %w", err)
	}
	return won, nil
}
