package credential

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-api-auth/internal/config"
	"github.com/go-api-auth/internal/domain"
	jwtinfra "github.com/go-api-auth/internal/infrastructure/jwt"
	"github.com/go-api-auth/internal/infrastructure/memory"
	redisinfra "github.com/go-api-auth/internal/infrastructure/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lifetimes = config.TokenLifetimes{Access: 15 * time.Minute, Refresh: 7 * 24 * time.Hour}

func newProvider(t *testing.T, opts ...jwtinfra.Option) *jwtinfra.Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jwtinfra.NewProviderFromKey(key, "test", lifetimes, opts...)
}

var alice = &domain.User{UserID: "01HZX", Username: "alice", Email: "a@b.com"}

func TestIssuer_IssueAndValidate(t *testing.T) {
	iss := NewIssuer(newProvider(t), memory.NewStore())
	ctx := context.Background()

	pair, err := iss.Issue(ctx, alice)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	p, err := iss.ValidateAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, p.UserID)
	assert.Equal(t, "alice", p.Username)

	_, err = iss.ValidateAccess(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestIssuer_RotateInvalidatesOldToken(t *testing.T) {
	store := memory.NewStore()
	iss := NewIssuer(newProvider(t), store)
	ctx := context.Background()

	pair, err := iss.Issue(ctx, alice)
	require.NoError(t, err)

	next, err := iss.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	_, err = iss.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrRevoked)

	// the rotated token carries the identity forward
	p, err := iss.ValidateAccess(ctx, next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)

	_, err = iss.Rotate(ctx, next.RefreshToken)
	assert.NoError(t, err)
}

func TestIssuer_BlacklistLivesForRemainingLifetime(t *testing.T) {
	store := memory.NewStore()
	iss := NewIssuer(newProvider(t), store)
	ctx := context.Background()

	pair, err := iss.Issue(ctx, alice)
	require.NoError(t, err)
	claims, err := iss.signer.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, iss.Revoke(ctx, pair.RefreshToken))
	ttl := store.TTL(blacklistPrefix + claims.ID)
	assert.InDelta(t, lifetimes.Refresh.Seconds(), ttl.Seconds(), 5)
}

func TestIssuer_RotateRejectsGarbageAndExpired(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	past := time.Now().Add(-8 * 24 * time.Hour)
	old := NewIssuer(jwtinfra.NewProviderFromKey(key, "test", lifetimes, jwtinfra.WithClock(func() time.Time { return past })), memory.NewStore())
	iss := NewIssuer(jwtinfra.NewProviderFromKey(key, "test", lifetimes), memory.NewStore())
	ctx := context.Background()

	stale, err := old.Issue(ctx, alice)
	require.NoError(t, err)

	_, err = iss.Rotate(ctx, stale.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrRevoked)
	_, err = iss.Rotate(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrRevoked)
	_, err = iss.Rotate(ctx, stale.AccessToken)
	assert.ErrorIs(t, err, domain.ErrRevoked)
}

func TestIssuer_RevokeIsIdempotent(t *testing.T) {
	iss := NewIssuer(newProvider(t), memory.NewStore())
	ctx := context.Background()
	pair, err := iss.Issue(ctx, alice)
	require.NoError(t, err)

	assert.NoError(t, iss.Revoke(ctx, pair.RefreshToken))
	assert.NoError(t, iss.Revoke(ctx, pair.RefreshToken))
	assert.NoError(t, iss.Revoke(ctx, "garbage"))
	assert.NoError(t, iss.Revoke(ctx, ""))

	_, err = iss.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrRevoked)
}

func TestIssuer_ConcurrentRotateExactlyOneWins(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	iss := NewIssuer(newProvider(t), redisinfra.NewStore(rdb, time.Second))
	ctx := context.Background()

	pair, err := iss.Issue(ctx, alice)
	require.NoError(t, err)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for k := 0; k < n; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			_, errs[k] = iss.Rotate(ctx, pair.RefreshToken)
		}(k)
	}
	wg.Wait()

	var ok, revoked int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrRevoked):
			revoked++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, revoked)
}

func TestIssuer_StoreOutageIsTransient(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	iss := NewIssuer(newProvider(t), redisinfra.NewStore(rdb, 200*time.Millisecond))
	ctx := context.Background()

	pair, err := iss.Issue(ctx, alice)
	require.NoError(t, err)
	mr.Close()

	_, err = iss.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrTransient)
}
