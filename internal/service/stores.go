// Package service implements the session lifecycle: refresh-token
// issuance, verification and rotation, and the login/register/refresh/
// logout flows built on top of it.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-auth/internal/model"
	"github.com/iliyamo/restaurant-auth/internal/queue"
)

// TokenStore is the persistence the refresh rotator needs.
// repository.TokenRepo satisfies it.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp, now time.Time) error
	FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	RevokeLive(ctx context.Context, tokenHash, reason string) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uint64, reason string) (int64, error)
	DeleteDead(ctx context.Context, now time.Time) (int64, error)
}

// UserStore is the identity collaborator.  repository.UserRepo satisfies it.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, u *model.User) error
	TouchLastLogin(ctx context.Context, id uint64, at time.Time) error
}

// emitter stamps and publishes audit events.  Publishing is best-effort.
type emitter struct {
	pub    queue.Publisher
	logger echo.Logger
	now    func() time.Time
}

func (e emitter) emit(ctx context.Context, ev queue.AuthEvent) {
	if e.pub == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.OccurredAt = e.now().UTC()
	if err := e.pub.Publish(ctx, ev); err != nil {
		e.logger.Warnf("auth: publishing %s event: %v", ev.Type, err)
	}
}
