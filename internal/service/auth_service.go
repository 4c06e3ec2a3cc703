package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/restaurant-auth/internal/apperr"
	"github.com/iliyamo/restaurant-auth/internal/model"
	"github.com/iliyamo/restaurant-auth/internal/queue"
	"github.com/iliyamo/restaurant-auth/internal/repository"
	"github.com/iliyamo/restaurant-auth/internal/token"
	"github.com/iliyamo/restaurant-auth/internal/utils"
)

// TokenPair is what a client stores after login, register or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // access token lifetime in seconds

	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// AuthResult is returned by Login and Register.
type AuthResult struct {
	User   model.PublicUser `json:"user"`
	Tokens TokenPair        `json:"tokens"`
}

// RegisterInput carries a new identity.  Password is plaintext and is
// hashed before it reaches the store.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	Role      string
	FirstName string
	LastName  string
	Phone     string
}

// AuthService is the credential verifier: it turns email+password into a
// token pair and drives refresh, logout and current-identity lookups.
type AuthService struct {
	users   UserStore
	refresh *RefreshService
	codec   *token.Codec
	hasher  *utils.PasswordHasher

	Events queue.Publisher
	Logger echo.Logger
	Now    func() time.Time
}

func NewAuthService(users UserStore, refresh *RefreshService, codec *token.Codec, hasher *utils.PasswordHasher) *AuthService {
	return &AuthService{
		users:   users,
		refresh: refresh,
		codec:   codec,
		hasher:  hasher,
		Events:  queue.NopPublisher{},
		Logger:  log.New("auth"),
		Now:     time.Now,
	}
}

// Login authenticates by email and password.
//
// Unknown email and wrong password both return apperr.ErrInvalidCredentials.
// A disabled account returns apperr.ErrInactiveAccount before its password
// is checked.  Every path runs exactly one bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.hasher.VerifyMissing(password)
		s.loginFailed(ctx, 0, email, "unknown email")
		return AuthResult{}, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, fmt.Errorf("loading user: %w", err)
	}
	if !u.IsActive {
		s.hasher.VerifyMissing(password)
		s.loginFailed(ctx, u.ID, u.Email, "inactive account")
		return AuthResult{}, apperr.ErrInactiveAccount
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		s.loginFailed(ctx, u.ID, u.Email, "wrong password")
		return AuthResult{}, apperr.ErrInvalidCredentials
	}

	pair, err := s.issue(ctx, u)
	if err != nil {
		return AuthResult{}, err
	}

	now := s.Now().UTC()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		s.Logger.Warnf("auth: touching last login for user %d: %v", u.ID, err)
	} else {
		u.LastLogin = &now
	}
	s.emitter().emit(ctx, queue.AuthEvent{Type: queue.EventLoginSucceeded, UserID: u.ID, Email: u.Email})
	return AuthResult{User: u.Public(), Tokens: pair}, nil
}

// Register creates an identity and issues its first token pair.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	role, ok := model.ParseRole(in.Role)
	if !ok {
		return AuthResult{}, fmt.Errorf("%w: unknown role %q", apperr.ErrValidation, in.Role)
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}

	u := model.User{
		Username:     strings.TrimSpace(in.Username),
		Email:        repository.NormalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         role,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		IsActive:     true,
	}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return AuthResult{}, apperr.ErrEmailExists
		}
		return AuthResult{}, fmt.Errorf("creating user: %w", err)
	}

	pair, err := s.issue(ctx, u)
	if err != nil {
		return AuthResult{}, err
	}
	s.emitter().emit(ctx, queue.AuthEvent{Type: queue.EventRegistered, UserID: u.ID, Email: u.Email})
	return AuthResult{User: u.Public(), Tokens: pair}, nil
}

// EnsureOwner creates the initial owner account when no identity with
// in.Email exists yet.  It reports whether an account was created.
func (s *AuthService) EnsureOwner(ctx context.Context, in RegisterInput) (bool, error) {
	_, err := s.users.GetByEmail(ctx, in.Email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("looking up bootstrap owner: %w", err)
	}
	in.Role = string(model.RoleOwner)
	if in.Username == "" {
		in.Username, _, _ = strings.Cut(in.Email, "@")
	}
	if _, err := s.Register(ctx, in); err != nil {
		return false, err
	}
	s.Logger.Infof("auth: created bootstrap owner %s", repository.NormalizeEmail(in.Email))
	return true, nil
}

// Refresh exchanges a refresh token for a new pair.  The identity is
// re-read so a disabled account cannot keep a session alive.
func (s *AuthService) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	userID, nextRaw, nextExp, err := s.refresh.Rotate(ctx, strings.TrimSpace(raw))
	if err != nil {
		if errors.Is(err, apperr.ErrRefreshTokenInvalid) || errors.Is(err, apperr.ErrRotationFailed) {
			s.emitter().emit(ctx, queue.AuthEvent{Type: queue.EventRefreshRejected, Reason: apperr.From(err).Code})
		}
		return TokenPair{}, err
	}

	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, apperr.ErrRefreshTokenInvalid
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("loading user: %w", err)
	}
	if !u.IsActive {
		// Do not leave the successor live for a disabled identity.
		n, err := s.refresh.RevokeAll(ctx, u.ID, model.RevokeInactive)
		if err != nil {
			s.Logger.Errorf("auth: revoking tokens of inactive user %d: %v", u.ID, err)
		} else {
			s.emitter().emit(ctx, queue.AuthEvent{Type: queue.EventTokensRevoked, UserID: u.ID, Email: u.Email, Reason: "inactive account", Count: n})
		}
		return TokenPair{}, apperr.ErrInactiveAccount
	}

	access, err := s.codec.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return TokenPair{}, err
	}
	return s.pair(access, nextRaw, nextExp), nil
}

// Logout revokes every refresh token of the identity in claims.  Access
// tokens already issued stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, claims token.Claims) error {
	n, err := s.refresh.RevokeAll(ctx, claims.UserID, model.RevokeLogout)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.emitter().emit(ctx, queue.AuthEvent{Type: queue.EventLoggedOut, UserID: claims.UserID, Email: claims.Email, Count: n})
	return nil
}

// Me re-fetches the identity behind claims.  It fails when the account was
// removed or disabled after the access token was issued.
func (s *AuthService) Me(ctx context.Context, claims token.Claims) (model.PublicUser, error) {
	u, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.PublicUser{}, apperr.ErrUnauthorized
	}
	if err != nil {
		return model.PublicUser{}, fmt.Errorf("loading user: %w", err)
	}
	if !u.IsActive {
		return model.PublicUser{}, apperr.ErrInactiveAccount
	}
	return u.Public(), nil
}

func (s *AuthService) issue(ctx context.Context, u model.User) (TokenPair, error) {
	access, err := s.codec.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return TokenPair{}, err
	}
	raw, exp, err := s.refresh.Create(ctx, u.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issuing refresh token: %w", err)
	}
	return s.pair(access, raw, exp), nil
}

func (s *AuthService) pair(access token.AccessToken, refreshRaw string, refreshExp time.Time) TokenPair {
	return TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     refreshRaw,
		ExpiresIn:        int64(s.codec.TTL() / time.Second),
		AccessExpiresAt:  access.Exp,
		RefreshExpiresAt: refreshExp,
	}
}

func (s *AuthService) loginFailed(ctx context.Context, userID uint64, email, reason string) {
	s.emitter().emit(ctx, queue.AuthEvent{Type: queue.EventLoginFailed, UserID: userID, Email: email, Reason: reason})
}

func (s *AuthService) emitter() emitter {
	return emitter{pub: s.Events, logger: s.Logger, now: s.Now}
}
