// Package server is the HTTP surface: WebSocket admission, the read-only
// price queries, token administration, and health endpoints.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pricewire/pricewire/internal/auth"
	"github.com/pricewire/pricewire/internal/config"
	"github.com/pricewire/pricewire/internal/domain"
	"github.com/pricewire/pricewire/internal/listener"
	"github.com/pricewire/pricewire/internal/registry"
)

// databasePinger is the subset of *pgxpool.Pool the readiness check needs.
type databasePinger interface {
	Ping(ctx context.Context) error
}

// listenerStatus exposes the upstream listener's lifecycle state.
type listenerStatus interface {
	State() listener.State
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	gate      *auth.Gate
	registry  *registry.Registry
	prices    domain.PriceRepository
	tokens    domain.TokenRepository
	feed      listenerStatus
	db        databasePinger
	limits    *ConnectionLimits
	clock     clockwork.Clock
	startTime time.Time
}

func NewServer(
	cfg *config.Config,
	gate *auth.Gate,
	reg *registry.Registry,
	prices domain.PriceRepository,
	tokens domain.TokenRepository,
	feed listenerStatus,
	db databasePinger,
	clock clockwork.Clock,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:     e,
		config:   cfg,
		gate:     gate,
		registry: reg,
		prices:   prices,
		tokens:   tokens,
		feed:     feed,
		db:       db,
		limits: NewConnectionLimits(
			cfg.MaxConnections,
			cfg.MaxConnectionsPerIP,
			cfg.ConnectionsPerSec,
			cfg.ConnectionBurst,
		),
		clock:     clock,
		startTime: clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
