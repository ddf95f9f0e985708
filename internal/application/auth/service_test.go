package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-api-auth/internal/application/credential"
	"github.com/go-api-auth/internal/application/flow"
	"github.com/go-api-auth/internal/application/verification"
	"github.com/go-api-auth/internal/config"
	"github.com/go-api-auth/internal/domain"
	jwtinfra "github.com/go-api-auth/internal/infrastructure/jwt"
	"github.com/go-api-auth/internal/infrastructure/memory"
	"github.com/go-api-auth/internal/pkg/code"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) Dispatch(ctx context.Context, email, code string) {
	m.Called(ctx, email, code)
}

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

// --- fixture ---

var flows = config.FlowLifetimes{
	Code:                 10 * time.Minute,
	Registration:         15 * time.Minute,
	RegistrationVerified: 30 * time.Minute,
	Login:                5 * time.Minute,
}

// frozen pins the store clock so remaining lifetimes read back exactly.
var frozen = time.Unix(1_700_000_000, 0)

type fixture struct {
	svc    Service
	store  *memory.Store
	users  *memory.UserRepo
	mail   *mockDispatcher
	issuer *credential.Issuer
}

func newFixture(t *testing.T, users userStore) *fixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	provider := jwtinfra.NewProviderFromKey(key, "test", config.TokenLifetimes{Access: 15 * time.Minute, Refresh: 7 * 24 * time.Hour})

	store := memory.NewStore(memory.WithClock(func() time.Time { return frozen }))
	repo := memory.NewUserRepo()
	if users == nil {
		users = repo
	}
	mail := &mockDispatcher{}
	mail.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).Return()
	issuer := credential.NewIssuer(provider, store)

	svc := NewService(ServiceDeps{
		Users:         users,
		Codes:         verification.NewLedger(store, code.Fixed("123456"), flows.Code),
		Registrations: flow.NewManager[domain.RegistrationState](store, flow.RegistrationPrefix),
		Logins:        flow.NewManager[domain.LoginState](store, flow.LoginPrefix),
		Credentials:   issuer,
		Mail:          mail,
		Flows:         flows,
		BcryptCost:    bcrypt.MinCost,
	})
	return &fixture{svc: svc, store: store, users: repo, mail: mail, issuer: issuer}
}

func (f *fixture) register(t *testing.T, username, email, password string) *Session {
	t.Helper()
	ctx := context.Background()
	tok, err := f.svc.RegisterEmail(ctx, RegisterEmailRequest{Username: username, Email: email})
	require.NoError(t, err)
	_, err = f.svc.RegisterVerify(ctx, RegisterVerifyRequest{RegToken: tok, Code: "123456"})
	require.NoError(t, err)
	sess, err := f.svc.RegisterPassword(ctx, RegisterPasswordRequest{RegToken: tok, Password: password, Password2: password})
	require.NoError(t, err)
	return sess
}

// --- registration ---

func TestRegisterEmail_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.RegisterEmail(ctx, RegisterEmailRequest{Username: "al", Email: "a@b.com"})
	var fe domain.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe, "username")
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, err = f.svc.RegisterEmail(ctx, RegisterEmailRequest{Username: "alice", Email: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	f.mail.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterEmail_DuplicateIdentity(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "alice", "a@b.com", "secretpass")

	_, err := f.svc.RegisterEmail(context.Background(), RegisterEmailRequest{Username: "alice", Email: "other@b.com"})
	var fe domain.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe, "username")

	_, err = f.svc.RegisterEmail(context.Background(), RegisterEmailRequest{Username: "bob", Email: "a@b.com"})
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe, "email")
}

func TestRegisterEmail_DispatchesCode(t *testing.T) {
	f := newFixture(t, nil)
	tok, err := f.svc.RegisterEmail(context.Background(), RegisterEmailRequest{Username: "alice", Email: "a@b.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	f.mail.AssertCalled(t, "Dispatch", mock.Anything, "a@b.com", "123456")
	assert.Equal(t, 15*time.Minute, f.store.TTL(flow.RegistrationPrefix+tok))
}

func TestRegisterVerify_WrongCodeThenRight(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tok, err := f.svc.RegisterEmail(ctx, RegisterEmailRequest{Username: "alice", Email: "a@b.com"})
	require.NoError(t, err)

	_, err = f.svc.RegisterVerify(ctx, RegisterVerifyRequest{RegToken: tok, Code: "000000"})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	got, err := f.svc.RegisterVerify(ctx, RegisterVerifyRequest{RegToken: tok, Code: "123456"})
	require.NoError(t, err)
	assert.Equal(t, tok, got)
	assert.Equal(t, 30*time.Minute, f.store.TTL(flow.RegistrationPrefix+tok))

	// code is single-use
	_, err = f.svc.RegisterVerify(ctx, RegisterVerifyRequest{RegToken: tok, Code: "123456"})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestRegisterVerify_UnknownToken(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.RegisterVerify(context.Background(), RegisterVerifyRequest{RegToken: "0f8fad5b-d9cb-469f-a165-70867728950e", Code: "123456"})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestRegisterPassword_RequiresVerifiedCode(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tok, err := f.svc.RegisterEmail(ctx, RegisterEmailRequest{Username: "alice", Email: "a@b.com"})
	require.NoError(t, err)

	_, err = f.svc.RegisterPassword(ctx, RegisterPasswordRequest{RegToken: tok, Password: "secretpass", Password2: "secretpass"})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	// an unverified attempt must not burn the flow
	_, err = f.svc.RegisterVerify(ctx, RegisterVerifyRequest{RegToken: tok, Code: "123456"})
	assert.NoError(t, err)
}

func TestRegisterPassword_Mismatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tok, err := f.svc.RegisterEmail(ctx, RegisterEmailRequest{Username: "alice", Email: "a@b.com"})
	require.NoError(t, err)
	_, err = f.svc.RegisterVerify(ctx, RegisterVerifyRequest{RegToken: tok, Code: "123456"})
	require.NoError(t, err)

	_, err = f.svc.RegisterPassword(ctx, RegisterPasswordRequest{RegToken: tok, Password: "p1", Password2: "p2"})
	var fe domain.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe, "password2")

	_, err = f.svc.RegisterPassword(ctx, RegisterPasswordRequest{RegToken: tok, Password: "secret pass", Password2: "secret pass"})
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe, "password")

	// validation failures leave the flow usable
	sess, err := f.svc.RegisterPassword(ctx, RegisterPasswordRequest{RegToken: tok, Password: "secretpass", Password2: "secretpass"})
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.User.Username)
}

func TestRegisterPassword_CreatesUserAndConsumesFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tok, err := f.svc.RegisterEmail(ctx, RegisterEmailRequest{Username: "alice", Email: "a@b.com"})
	require.NoError(t, err)
	_, err = f.svc.RegisterVerify(ctx, RegisterVerifyRequest{RegToken: tok, Code: "123456"})
	require.NoError(t, err)

	sess, err := f.svc.RegisterPassword(ctx, RegisterPasswordRequest{RegToken: tok, Password: "secretpass", Password2: "secretpass"})
	require.NoError(t, err)
	require.NotNil(t, sess.Tokens)
	assert.NotEmpty(t, sess.Tokens.AccessToken)

	u, err := f.users.GetByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, sess.User.UserID, u.UserID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secretpass")))

	_, err = f.svc.RegisterPassword(ctx, RegisterPasswordRequest{RegToken: tok, Password: "secretpass", Password2: "secretpass"})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

// --- login ---

func TestLogin_BadCredentials(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "alice", "a@b.com", "secretpass")

	_, err := f.svc.Login(context.Background(), LoginRequest{Username: "alice", Password: "wrongpass"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.svc.Login(context.Background(), LoginRequest{Username: "nobody", Password: "secretpass"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestLogin_StoreFailureSurfaces(t *testing.T) {
	users := &mockUserStore{}
	users.On("GetByUsername", mock.Anything, "alice").Return(nil, domain.ErrTransient)
	f := newFixture(t, users)

	_, err := f.svc.Login(context.Background(), LoginRequest{Username: "alice", Password: "secretpass"})
	assert.ErrorIs(t, err, domain.ErrTransient)
	users.AssertExpectations(t)
}

func TestLoginVerify_RetryAfterWrongCode(t *testing.T) {
	f := newFixture(t, nil)
	f.register(t, "alice", "a@b.com", "secretpass")
	ctx := context.Background()

	tok, err := f.svc.Login(ctx, LoginRequest{Username: "alice", Password: "secretpass"})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, f.store.TTL(flow.LoginPrefix+tok))

	_, err = f.svc.LoginVerify(ctx, LoginVerifyRequest{LoginToken: tok, Code: "000000"})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	sess, err := f.svc.LoginVerify(ctx, LoginVerifyRequest{LoginToken: tok, Code: "123456"})
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.User.Username)
	assert.NotEmpty(t, sess.Tokens.RefreshToken)

	_, err = f.svc.LoginVerify(ctx, LoginVerifyRequest{LoginToken: tok, Code: "123456"})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

// --- refresh / logout ---

func TestRefreshAndLogout(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.register(t, "alice", "a@b.com", "secretpass")
	ctx := context.Background()

	_, err := f.svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	next, err := f.svc.Refresh(ctx, sess.Tokens.RefreshToken)
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, sess.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrRevoked)

	f.svc.Logout(ctx, next.RefreshToken)
	f.svc.Logout(ctx, next.RefreshToken)
	f.svc.Logout(ctx, "garbage")
	_, err = f.svc.Refresh(ctx, next.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrRevoked)
}

func TestRegister_AcceptsShortPasswordAndSpacedUsername(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.register(t, "bob smith", "b@b.com", "pass")
	assert.Equal(t, "bob smith", sess.User.Username)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(sess.User.PasswordHash), []byte("pass")))
}

func TestRegisterPassword_TooLongForBcrypt(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tok, err := f.svc.RegisterEmail(ctx, RegisterEmailRequest{Username: "alice", Email: "a@b.com"})
	require.NoError(t, err)
	_, err = f.svc.RegisterVerify(ctx, RegisterVerifyRequest{RegToken: tok, Code: "123456"})
	require.NoError(t, err)

	long := strings.Repeat("x", 73)
	_, err = f.svc.RegisterPassword(ctx, RegisterPasswordRequest{RegToken: tok, Password: long, Password2: long})
	var fe domain.FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Contains(t, fe, "password")
}
