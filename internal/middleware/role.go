package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-auth/internal/apperr"
	"github.com/iliyamo/restaurant-auth/internal/model"
)

// RequireRole admits callers whose verified role is in roles.  It must run
// after Authenticate: without attached claims it fails with
// apperr.ErrUnauthorized, and with a role outside the set it fails with
// apperr.ErrForbidden.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cl, ok := CurrentClaims(c)
			if !ok {
				return apperr.ErrUnauthorized
			}
			if !allowed[cl.Role] {
				return apperr.ErrForbidden
			}
			return next(c)
		}
	}
}
