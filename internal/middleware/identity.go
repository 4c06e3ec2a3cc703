package middleware

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-auth/internal/token"
)

// claimsKey is the echo context key holding verified access-token claims.
const claimsKey = "auth.claims"

type claimsCtxKey struct{}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims token.Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey{}, claims)
}

// ClaimsFrom returns the claims attached by Authenticate, if any.
func ClaimsFrom(ctx context.Context) (token.Claims, bool) {
	cl, ok := ctx.Value(claimsCtxKey{}).(token.Claims)
	return cl, ok
}

// CurrentClaims looks on the echo context first, then on the request context.
func CurrentClaims(c echo.Context) (token.Claims, bool) {
	if cl, ok := c.Get(claimsKey).(token.Claims); ok {
		return cl, true
	}
	return ClaimsFrom(c.Request().Context())
}

// userID is the rate-limit identity of the caller; "anon" before
// authentication.
func userID(c echo.Context) string {
	if cl, ok := CurrentClaims(c); ok && cl.UserID != 0 {
		return strconv.FormatUint(cl.UserID, 10)
	}
	return "anon"
}
