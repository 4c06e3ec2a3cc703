package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-auth/internal/handler"
	"github.com/iliyamo/restaurant-auth/internal/middleware"
	"github.com/iliyamo/restaurant-auth/internal/model"
	"github.com/iliyamo/restaurant-auth/internal/token"
)

// RegisterRoutes registers routes that need no authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the /v1/auth endpoints.  login and refresh are
// public; register, logout and me need a bearer access token, and register
// additionally needs the owner or admin role.  limiter guards the
// endpoints that accept credentials.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, codec *token.Codec, limiter echo.MiddlewareFunc) {
	authn := middleware.Authenticate(codec)

	g := e.Group("/v1/auth")
	g.POST("/login", a.Login, limiter)
	g.POST("/refresh", a.Refresh, limiter)
	g.POST("/register", a.Register, authn, middleware.RequireRole(model.RoleOwner, model.RoleAdmin), limiter)
	g.POST("/logout", a.Logout, authn)
	g.GET("/me", a.Me, authn)
}
