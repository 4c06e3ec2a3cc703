package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-auth/internal/apperr"
	"github.com/iliyamo/restaurant-auth/internal/token"
)

// Authenticate verifies the bearer access token and attaches its claims to
// the request.  It never consults the store; handlers that must see a
// disabled account re-fetch the identity themselves.
func Authenticate(codec *token.Codec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return apperr.ErrMissingToken
			}
			claims, err := codec.Verify(raw)
			if err != nil {
				return err
			}
			c.Set(claimsKey, claims)
			c.SetRequest(c.Request().WithContext(WithClaims(c.Request().Context(), claims)))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
