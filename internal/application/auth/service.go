package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-api-auth/internal/config"
	"github.com/go-api-auth/internal/domain"
	"github.com/go-api-auth/internal/pkg/id"
	"github.com/go-api-auth/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

type RegisterEmailRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email,max=254"`
}

type RegisterVerifyRequest struct {
	RegToken string `json:"reg_token" validate:"required"`
	Code     string `json:"code" validate:"required,len=6"`
}

type RegisterPasswordRequest struct {
	RegToken  string `json:"reg_token" validate:"required"`
	Password  string `json:"password" validate:"required,nospace,max=72"`
	Password2 string `json:"password2" validate:"required,eqfield=Password"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginVerifyRequest struct {
	LoginToken string `json:"login_token" validate:"required"`
	Code       string `json:"code" validate:"required,len=6"`
}

// Session is the result of a completed flow: who signed in and their credentials.
type Session struct {
	User   *domain.User
	Tokens *domain.TokenPair
}

type Service interface {
	RegisterEmail(ctx context.Context, req RegisterEmailRequest) (regToken string, err error)
	RegisterVerify(ctx context.Context, req RegisterVerifyRequest) (regToken string, err error)
	RegisterPassword(ctx context.Context, req RegisterPasswordRequest) (*Session, error)
	Login(ctx context.Context, req LoginRequest) (loginToken string, err error)
	LoginVerify(ctx context.Context, req LoginVerifyRequest) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, refreshToken string)
}

type userStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
}

type codeLedger interface {
	Issue(ctx context.Context, email string) (string, error)
	Verify(ctx context.Context, email, code string) (bool, error)
}

type registrationFlows interface {
	Begin(ctx context.Context, state domain.RegistrationState, ttl time.Duration) (string, error)
	Load(ctx context.Context, token string) (domain.RegistrationState, error)
	Advance(ctx context.Context, token string, mutate func(*domain.RegistrationState), ttl time.Duration) (domain.RegistrationState, error)
	Consume(ctx context.Context, token string) (domain.RegistrationState, error)
}

type loginFlows interface {
	Begin(ctx context.Context, state domain.LoginState, ttl time.Duration) (string, error)
	Load(ctx context.Context, token string) (domain.LoginState, error)
	Consume(ctx context.Context, token string) (domain.LoginState, error)
}

type credentialIssuer interface {
	Issue(ctx context.Context, u *domain.User) (*domain.TokenPair, error)
	Rotate(ctx context.Context, refresh string) (*domain.TokenPair, error)
	Revoke(ctx context.Context, refresh string) error
}

// codeDispatcher hands a code to the mail pipeline. It never reports failure
// to the caller: by the time it runs the code is already committed.
type codeDispatcher interface {
	Dispatch(ctx context.Context, email, code string)
}

type service struct {
	users         userStore
	codes         codeLedger
	registrations registrationFlows
	logins        loginFlows
	credentials   credentialIssuer
	mail          codeDispatcher
	flows         config.FlowLifetimes
	bcryptCost    int
}

type ServiceDeps struct {
	Users         userStore
	Codes         codeLedger
	Registrations registrationFlows
	Logins        loginFlows
	Credentials   credentialIssuer
	Mail          codeDispatcher
	Flows         config.FlowLifetimes
	BcryptCost    int // 0 means bcrypt.DefaultCost
}

func NewService(deps ServiceDeps) Service {
	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &service{
		users:         deps.Users,
		codes:         deps.Codes,
		registrations: deps.Registrations,
		logins:        deps.Logins,
		credentials:   deps.Credentials,
		mail:          deps.Mail,
		flows:         deps.Flows,
		bcryptCost:    cost,
	}
}

func (s *service) RegisterEmail(ctx context.Context, req RegisterEmailRequest) (string, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if err := validate.Struct(&req); err != nil {
		return "", err
	}
	if err := s.checkAvailable(ctx, req.Username, req.Email); err != nil {
		return "", err
	}

	c, err := s.codes.Issue(ctx, req.Email)
	if err != nil {
		return "", err
	}
	token, err := s.registrations.Begin(ctx, domain.RegistrationState{
		Email:    req.Email,
		Username: req.Username,
	}, s.flows.Registration)
	if err != nil {
		return "", err
	}
	s.mail.Dispatch(ctx, req.Email, c)
	return token, nil
}

// checkAvailable reports a taken username or email as field errors.
func (s *service) checkAvailable(ctx context.Context, username, email string) error {
	fields := domain.FieldErrors{}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		fields["email"] = "is already in use"
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		fields["username"] = "is already in use"
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if len(fields) > 0 {
		return fields
	}
	return nil
}

func (s *service) RegisterVerify(ctx context.Context, req RegisterVerifyRequest) (string, error) {
	if err := validate.Struct(&req); err != nil {
		return "", err
	}
	state, err := s.registrations.Load(ctx, req.RegToken)
	if err != nil {
		return "", err
	}
	ok, err := s.codes.Verify(ctx, state.Email, req.Code)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("verification code: %w", domain.ErrInvalidToken)
	}
	_, err = s.registrations.Advance(ctx, req.RegToken, func(st *domain.RegistrationState) {
		st.CodeVerified = true
	}, s.flows.RegistrationVerified)
	if err != nil {
		return "", err
	}
	return req.RegToken, nil
}

// RegisterPassword completes registration. The flow token is consumed before
// the user is created; if creation then fails the client restarts the flow.
func (s *service) RegisterPassword(ctx context.Context, req RegisterPasswordRequest) (*Session, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	state, err := s.registrations.Load(ctx, req.RegToken)
	if err != nil {
		return nil, err
	}
	// Checked before Consume so an unverified token is not burned.
	if !state.CodeVerified {
		return nil, fmt.Errorf("registration not verified: %w", domain.ErrInvalidToken)
	}
	state, err = s.registrations.Consume(ctx, req.RegToken)
	if err != nil {
		return nil, err
	}
	if !state.CodeVerified {
		return nil, fmt.Errorf("registration not verified: %w", domain.ErrInvalidToken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Username:     state.Username,
		Email:        state.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.FieldErrors{"username": "username or email is already in use"}
		}
		return nil, err
	}
	slog.InfoContext(ctx, "user registered", "user_id", u.UserID)

	tokens, err := s.credentials.Issue(ctx, u)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Tokens: tokens}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (string, error) {
	if err := validate.Struct(&req); err != nil {
		return "", err
	}
	u, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return "", domain.ErrInvalidCredentials
	}

	c, err := s.codes.Issue(ctx, u.Email)
	if err != nil {
		return "", err
	}
	token, err := s.logins.Begin(ctx, domain.LoginState{Email: u.Email}, s.flows.Login)
	if err != nil {
		return "", err
	}
	s.mail.Dispatch(ctx, u.Email, c)
	return token, nil
}

// LoginVerify leaves the login token intact on a wrong code so the client
// can retry until the token expires.
func (s *service) LoginVerify(ctx context.Context, req LoginVerifyRequest) (*Session, error) {
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	state, err := s.logins.Load(ctx, req.LoginToken)
	if err != nil {
		return nil, err
	}
	ok, err := s.codes.Verify(ctx, state.Email, req.Code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("verification code: %w", domain.ErrInvalidToken)
	}
	if _, err := s.logins.Consume(ctx, req.LoginToken); err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, state.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("account no longer exists: %w", domain.ErrInvalidToken)
		}
		return nil, err
	}
	tokens, err := s.credentials.Issue(ctx, u)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "user logged in", "user_id", u.UserID)
	return &Session{User: u, Tokens: tokens}, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("missing refresh token: %w", domain.ErrUnauthorized)
	}
	return s.credentials.Rotate(ctx, refreshToken)
}

// Logout never fails; a token that cannot be revoked is logged and dropped.
func (s *service) Logout(ctx context.Context, refreshToken string) {
	if err := s.credentials.Revoke(ctx, refreshToken); err != nil {
		slog.WarnContext(ctx, "revoke refresh token", "err", err)
	}
}
