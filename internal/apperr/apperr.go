// Package apperr defines the error taxonomy shared by the auth services,
// middleware and handlers. Each value carries a stable machine-readable code
// and the HTTP status it maps to, so handlers never have to guess.
package apperr

import (
	"errors"
	"net/http"
)

// Error is a classified failure. Instances declared in this package are
// sentinels; compare with errors.Is and extract with errors.As.
type Error struct {
	Code    string // machine-readable code (e.g. INVALID_CREDENTIALS)
	Status  int    // HTTP status the code maps to
	Message string // client-safe message
}

func (e *Error) Error() string { return e.Message }

func newErr(code string, status int, msg string) *Error {
	return &Error{Code: code, Status: status, Message: msg}
}

// Authentication and session errors.
var (
	ErrInvalidCredentials  = newErr("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount     = newErr("INACTIVE_ACCOUNT", http.StatusForbidden, "account is disabled")
	ErrMissingToken        = newErr("MISSING_TOKEN", http.StatusUnauthorized, "missing bearer token")
	ErrMalformedToken      = newErr("MALFORMED_TOKEN", http.StatusUnauthorized, "malformed access token")
	ErrExpiredToken        = newErr("EXPIRED_TOKEN", http.StatusUnauthorized, "access token expired")
	ErrInvalidSignature    = newErr("INVALID_SIGNATURE", http.StatusUnauthorized, "invalid access token")
	ErrRefreshTokenInvalid = newErr("REFRESH_TOKEN_INVALID", http.StatusUnauthorized, "refresh token is invalid, expired or revoked")
	ErrRotationFailed      = newErr("ROTATION_FAILED", http.StatusUnauthorized, "refresh token was already used")
	ErrForbidden           = newErr("FORBIDDEN", http.StatusForbidden, "insufficient role")
	ErrUnauthorized        = newErr("UNAUTHORIZED", http.StatusUnauthorized, "authentication required")
	ErrConfiguration       = newErr("CONFIGURATION_ERROR", http.StatusInternalServerError, "server misconfigured")
)

// Request-level errors.
var (
	ErrValidation  = newErr("VALIDATION_ERROR", http.StatusBadRequest, "invalid request")
	ErrEmailExists = newErr("EMAIL_EXISTS", http.StatusConflict, "email or username already registered")
	ErrRateLimited = newErr("RATE_LIMITED", http.StatusTooManyRequests, "rate limit exceeded")
	ErrInternal    = newErr("INTERNAL_ERROR", http.StatusInternalServerError, "internal error")
)

// From classifies err. Unclassified errors become ErrInternal so internal
// details never leak to clients.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal
}
