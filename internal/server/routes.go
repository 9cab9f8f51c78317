package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Live feed - credential checked inside the handler before upgrade
	s.echo.GET("/ws", s.handleWebSocket)

	// Read-only price queries
	s.echo.GET("/api/eod", s.handleEOD)
	s.echo.GET("/api/prices/:ticker", s.handleLatestPrice)

	// Token administration
	s.echo.POST("/api/tokens", s.handleCreateToken, s.requireAdmin)
	s.echo.GET("/api/tokens", s.handleListTokens, s.requireAdmin)
	s.echo.DELETE("/api/tokens/:token", s.handleRevokeToken, s.requireAdmin)
}
