package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/restaurant-auth/internal/apperr"
	"github.com/iliyamo/restaurant-auth/internal/model"
	"github.com/iliyamo/restaurant-auth/internal/queue"
	"github.com/iliyamo/restaurant-auth/internal/repository"
	"github.com/iliyamo/restaurant-auth/internal/token"
)

// DefaultRefreshTTL is the lifetime of a refresh token.
const DefaultRefreshTTL = 7 * 24 * time.Hour

// RefreshService is the refresh-token store and rotator.
//
// Per row: LIVE -> ROTATED (Rotate) | REVOKED (RevokeAll) | EXPIRED (lazily
// detected by Verify).  Only the SHA-256 of the raw value is persisted.
type RefreshService struct {
	tokens TokenStore
	ttl    time.Duration

	// RevokeAllOnReuse revokes every live token of an identity when one of
	// its already-revoked tokens is presented again.
	RevokeAllOnReuse bool

	Events queue.Publisher
	Logger echo.Logger
	Now    func() time.Time
}

func NewRefreshService(tokens TokenStore, ttl time.Duration) *RefreshService {
	if ttl <= 0 {
		ttl = DefaultRefreshTTL
	}
	return &RefreshService{
		tokens: tokens,
		ttl:    ttl,
		Events: queue.NopPublisher{},
		Logger: log.New("refresh"),
		Now:    time.Now,
	}
}

// TTL is the lifetime given to new refresh tokens.
func (s *RefreshService) TTL() time.Duration { return s.ttl }

// Create issues a new refresh token for userID and returns the raw value.
// This is the only place the raw value is ever exposed.
func (s *RefreshService) Create(ctx context.Context, userID uint64) (string, time.Time, error) {
	raw, err := token.NewRefreshRaw()
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.Now().UTC()
	exp := now.Add(s.ttl)
	if err := s.tokens.StoreRefresh(ctx, userID, token.HashRefresh(raw), exp, now); err != nil {
		return "", time.Time{}, err
	}
	return raw, exp, nil
}

// Verify returns the owning identity of a LIVE token.  Absent, revoked and
// expired tokens all fail with apperr.ErrRefreshTokenInvalid; an expired
// row is revoked on the way out.  Presenting a token that was already
// rotated is reported as reuse.
func (s *RefreshService) Verify(ctx context.Context, raw string) (uint64, error) {
	if raw == "" {
		return 0, apperr.ErrRefreshTokenInvalid
	}
	hash := token.HashRefresh(raw)
	row, err := s.tokens.FindByHash(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, apperr.ErrRefreshTokenInvalid
	}
	if err != nil {
		return 0, fmt.Errorf("verifying refresh token: %w", err)
	}

	now := s.Now()
	if row.Live(now) {
		return row.UserID, nil
	}
	if !now.Before(row.ExpiresAt) {
		if !row.Revoked {
			if _, err := s.tokens.RevokeLive(ctx, hash, model.RevokeExpired); err != nil {
				s.Logger.Warnf("refresh: lazy revoke of expired token for user %d: %v", row.UserID, err)
			}
		}
		return 0, apperr.ErrRefreshTokenInvalid
	}
	if row.RevokeReason == model.RevokeRotated {
		s.onReuse(ctx, row.UserID)
	}
	return 0, apperr.ErrRefreshTokenInvalid
}

// Rotate consumes a LIVE token and issues its successor.  The consume step
// is a conditional write: if a concurrent Rotate already flipped the row,
// this call fails with apperr.ErrRotationFailed and issues nothing.
func (s *RefreshService) Rotate(ctx context.Context, raw string) (uint64, string, time.Time, error) {
	userID, err := s.Verify(ctx, raw)
	if err != nil {
		return 0, "", time.Time{}, err
	}
	won, err := s.tokens.RevokeLive(ctx, token.HashRefresh(raw), model.RevokeRotated)
	if err != nil {
		return 0, "", time.Time{}, fmt.Errorf("consuming refresh token: %w", err)
	}
	if !won {
		s.Logger.Warnf("refresh: concurrent rotation detected for user %d", userID)
		return 0, "", time.Time{}, apperr.ErrRotationFailed
	}

	next, exp, err := s.Create(ctx, userID)
	if err != nil {
		return 0, "", time.Time{}, fmt.Errorf("issuing successor token: %w", err)
	}
	s.emitter().emit(ctx, queue.AuthEvent{Type: queue.EventRefreshRotated, UserID: userID})
	return userID, next, exp, nil
}

// RevokeAll revokes every live token owned by userID, recording reason
// (one of the model.Revoke* values).
func (s *RefreshService) RevokeAll(ctx context.Context, userID uint64, reason string) (int64, error) {
	n, err := s.tokens.RevokeAllForUser(ctx, userID, reason)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Sweep deletes expired and revoked rows.  It changes nothing a client can
// observe: those rows already fail Verify.
func (s *RefreshService) Sweep(ctx context.Context) (int64, error) {
	return s.tokens.DeleteDead(ctx, s.Now().UTC())
}

func (s *RefreshService) onReuse(ctx context.Context, userID uint64) {
	s.Logger.Warnf("refresh: rotated token presented again for user %d", userID)
	ev := queue.AuthEvent{Type: queue.EventRefreshReuse, UserID: userID, Reason: "rotated token presented"}
	if s.RevokeAllOnReuse {
		n, err := s.tokens.RevokeAllForUser(ctx, userID, model.RevokeReuse)
		if err != nil {
			s.Logger.Errorf("refresh: revoking tokens after reuse for user %d: %v", userID, err)
		}
		ev.Count = n
	}
	s.emitter().emit(ctx, ev)
}

func (s *RefreshService) emitter() emitter {
	return emitter{pub: s.Events, logger: s.Logger, now: s.Now}
}
