package server

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pricewire/pricewire/internal/listener"
	"github.com/pricewire/pricewire/internal/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	uptime := s.clock.Since(s.startTime).Seconds()
	return c.JSON(200, map[string]any{
		"status":   "ok",
		"uptime":   uptime,
		"upstream": s.feed.State().String(),
		"build":    version.Get(),
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"postgres", s.checkPostgres},
		{"listener", s.checkListener},
	}

	for _, check := range checks {
		if err := check.fn(ctx); err != nil {
			return c.JSON(503, map[string]any{
				"status":       "unhealthy",
				"failed_check": check.name,
				"error":        err.Error(),
			})
		}
	}

	return c.JSON(200, map[string]any{
		"status":  "ready",
		"clients": s.registry.Len(),
	})
}

func (s *Server) checkPostgres(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Server) checkListener(context.Context) error {
	if state := s.feed.State(); state != listener.StateSubscribed {
		return fmt.Errorf("upstream listener not subscribed (state: %s)", state)
	}
	return nil
}
