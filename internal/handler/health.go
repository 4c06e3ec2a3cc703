package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports liveness and, when db is non-nil, database reachability.
func Health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				c.Logger().Warnf("healthz: database ping: %v", err)
				return c.JSON(http.StatusServiceUnavailable, Envelope{
					Success: false,
					Error:   &ErrorBody{Code: "UNAVAILABLE", Message: "database unreachable"},
					Meta:    meta(c),
				})
			}
		}
		return OK(c, http.StatusOK, map[string]string{"status": "ok"})
	}
}
