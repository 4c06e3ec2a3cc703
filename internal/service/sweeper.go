package service

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
)

// Sweeper periodically reclaims dead refresh-token rows.
type Sweeper struct {
	Refresh  *RefreshService
	Interval time.Duration
	Logger   echo.Logger
}

// Run sweeps once per Interval until ctx is cancelled.  A non-positive
// Interval returns immediately.
func (s *Sweeper) Run(ctx context.Context) {
	if s.Interval <= 0 {
		return
	}
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	n, err := s.Refresh.Sweep(ctx)
	if err != nil {
		s.Logger.Errorf("sweeper: %v", err)
		return
	}
	if n > 0 {
		s.Logger.Infof("sweeper: removed %d dead refresh tokens", n)
	}
}
