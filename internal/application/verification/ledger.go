// Package verification issues and checks single-use email verification codes.
package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-api-auth/internal/pkg/code"
)

const keyPrefix = "verify_code:"

type codeStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)
}

// Ledger holds at most one live code per email. Issuing a new code replaces
// the previous one; a code is deleted the first time it is matched.
type Ledger struct {
	store codeStore
	gen   code.Generator
	ttl   time.Duration
}

func NewLedger(store codeStore, gen code.Generator, ttl time.Duration) *Ledger {
	return &Ledger{store: store, gen: gen, ttl: ttl}
}

// Issue generates a code for email and commits it to the store.
func (l *Ledger) Issue(ctx context.Context, email string) (string, error) {
	c, err := l.gen.Generate()
	if err != nil {
		return "", err
	}
	if err := l.store.Set(ctx, key(email), []byte(c), l.ttl); err != nil {
		return "", fmt.Errorf("store verification code: %w", err)
	}
	return c, nil
}

// Verify reports whether submitted equals the live code for email, deleting
// it on a match. A wrong code and a missing code are indistinguishable.
// The error is non-nil only when the store itself failed.
func (l *Ledger) Verify(ctx context.Context, email, submitted string) (bool, error) {
	if submitted == "" {
		return false, nil
	}
	ok, err := l.store.CompareAndDelete(ctx, key(email), []byte(submitted))
	if err != nil {
		return false, fmt.Errorf("check verification code: %w", err)
	}
	return ok, nil
}

func key(email string) string {
	return keyPrefix + strings.ToLower(strings.TrimSpace(email))
}
