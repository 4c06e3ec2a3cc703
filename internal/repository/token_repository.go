package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/restaurant-auth/internal/model"
)

// TokenRepo persists refresh-token rows keyed by their SHA-256 hash.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// StoreRefresh inserts a live refresh token hash row.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp, now time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at, revoked, created_at) VALUES (?,?,?,0,?)",
		userID, tokenHash, exp.UTC(), now.UTC())
	if err != nil {
		return fmt.Errorf("storing refresh token: %w", err)
	}
	return nil
}

// FindByHash returns the row for tokenHash regardless of its state.
func (r *TokenRepo) FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, expires_at, revoked, revoke_reason, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.RevokeReason, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, ErrNotFound
		}
		return model.RefreshToken{}, fmt.Errorf("finding refresh token: %w", err)
	}
	return t, nil
}

// RevokeLive flips a non-revoked row to revoked and records reason.  It
// reports true only when this call performed the flip, so of two concurrent
// callers exactly one wins.
func (r *TokenRepo) RevokeLive(ctx context.Context, tokenHash, reason string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1, revoke_reason=? WHERE token_hash=? AND revoked=0",
		reason, tokenHash)
	if err != nil {
		return false, fmt.Errorf("revoking refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoking refresh token: %w", err)
	}
	return n == 1, nil
}

// RevokeAllForUser revokes all user's active tokens with reason and returns
// how many rows changed.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64, reason string) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1, revoke_reason=? WHERE user_id=? AND revoked=0",
		reason, userID)
	if err != nil {
		return 0, fmt.Errorf("revoking tokens for user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoking tokens for user: %w", err)
	}
	return n, nil
}

// DeleteDead removes rows that are revoked or expired at now.
func (r *TokenRepo) DeleteDead(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE revoked=1 OR expires_at<=?",
		now.UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting dead refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting dead refresh tokens: %w", err)
	}
	return n, nil
}
