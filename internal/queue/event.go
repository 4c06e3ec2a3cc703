// Package queue defines the auth audit events exchanged over the message
// broker, together with the publisher and the log-writing consumer.
package queue

import "time"

// Event types.
const (
	EventLoginSucceeded  = "login.succeeded"
	EventLoginFailed     = "login.failed"
	EventRegistered      = "register"
	EventRefreshRotated  = "refresh.rotated"
	EventRefreshReuse    = "refresh.reuse"
	EventLoggedOut       = "logout"
	EventTokensRevoked   = "tokens.revoked"
	EventRefreshRejected = "refresh.rejected"
)

// AuthEvent is published after each session state change.  It never
// carries a raw token or password.
type AuthEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     uint64    `json:"user_id,omitempty"`
	Email      string    `json:"email,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Count      int64     `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
