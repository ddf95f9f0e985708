package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-api-auth/internal/config"
	"github.com/go-api-auth/internal/domain"
	"github.com/go-api-auth/internal/pkg/id"
	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the token_type claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims holds the JWT payload fields.
type Claims struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 access and refresh tokens.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	lifetimes  config.TokenLifetimes
	now        func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithClock overrides the time source used for signing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func NewProvider(cfg *config.Config, opts ...Option) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return newProvider(privKey, pubKey, cfg.JWTIssuer, cfg.Tokens, opts...), nil
}

// NewProviderFromKey builds a Provider around an in-memory key pair.
func NewProviderFromKey(key *rsa.PrivateKey, issuer string, lifetimes config.TokenLifetimes, opts ...Option) *Provider {
	return newProvider(key, &key.PublicKey, issuer, lifetimes, opts...)
}

func newProvider(priv *rsa.PrivateKey, pub *rsa.PublicKey, issuer string, lifetimes config.TokenLifetimes, opts ...Option) *Provider {
	p := &Provider{privateKey: priv, publicKey: pub, issuer: issuer, lifetimes: lifetimes, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Signed is a freshly minted token with its identifier and expiry.
type Signed struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

func (p *Provider) SignAccess(userID, username string) (Signed, error) {
	return p.sign(userID, username, TypeAccess, p.lifetimes.Access)
}

func (p *Provider) SignRefresh(userID, username string) (Signed, error) {
	return p.sign(userID, username, TypeRefresh, p.lifetimes.Refresh)
}

func (p *Provider) sign(userID, username, typ string, ttl time.Duration) (Signed, error) {
	now := p.now()
	exp := now.Add(ttl)
	jti := id.NewToken()
	claims := Claims{
		UserID:    userID,
		Username:  username,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    p.issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	s, err := token.SignedString(p.privateKey)
	if err != nil {
		return Signed{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return Signed{Token: s, ID: jti, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (p *Provider) VerifyAccess(tokenStr string) (*Claims, error) {
	return p.verify(tokenStr, TypeAccess)
}

func (p *Provider) VerifyRefresh(tokenStr string) (*Claims, error) {
	return p.verify(tokenStr, TypeRefresh)
}

// verify checks signature, issuer, expiry and token type. Every failure
// wraps domain.ErrInvalidToken.
func (p *Provider) verify(tokenStr, typ string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(p.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims: %w", domain.ErrInvalidToken)
	}
	if claims.TokenType != typ {
		return nil, fmt.Errorf("expected %s token: %w", typ, domain.ErrInvalidToken)
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, fmt.Errorf("incomplete token claims: %w", domain.ErrInvalidToken)
	}
	return claims, nil
}
