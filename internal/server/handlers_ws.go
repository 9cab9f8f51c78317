package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pricewire/pricewire/internal/broadcast"
	"github.com/pricewire/pricewire/internal/domain"
	"github.com/pricewire/pricewire/internal/logging"
	"github.com/pricewire/pricewire/internal/metrics"
	"github.com/pricewire/pricewire/internal/registry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Clients connect from native apps, not browsers
	},
}

// handleWebSocket admits a client to the live price feed. The credential is
// validated strictly before the upgrade: an invalid or missing token refuses
// the connection and no session object is ever created.
func (s *Server) handleWebSocket(c echo.Context) error {
	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		slog.Warn("Connection rejected by limiter", "remote_ip", ip, "reason", reason)
		if reason == LimitReasonGlobal {
			return c.String(http.StatusServiceUnavailable, "server at capacity")
		}
		return c.String(http.StatusTooManyRequests, "too many connections")
	}

	ctx := c.Request().Context()

	if err := s.gate.Validate(ctx, c.QueryParam("token")); err != nil {
		s.limits.Release(ip)
		if errors.Is(err, domain.ErrAuthRejected) {
			metrics.AuthRejectionsTotal.Inc()
			return c.String(http.StatusUnauthorized, "invalid or missing token")
		}
		slog.Error("Credential store unavailable", "error", err)
		return c.String(http.StatusInternalServerError, "credential check failed")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.limits.Release(ip)
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	writer := broadcast.NewClientWriter(conn, s.clock)
	session := registry.NewSession(writer, s.clock.Now())
	log := logging.WithSession(session.ID().String())

	if err := s.registry.Add(session); err != nil {
		// Session identities are freshly generated, so a duplicate means a
		// logic error. Fatal for this admission only.
		log.Error("Session admission failed", "error", err)
		writer.Close(websocket.CloseInternalServerErr, "admission failed")
		s.limits.Release(ip)
		return nil
	}

	metrics.ConnectedClients.Set(float64(s.registry.Len()))
	log.Info("Session admitted", "remote_ip", ip)

	// Read pump. This is a push channel: inbound frames only serve
	// keepalive, so we block here until the connection dies.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.registry.Remove(session.ID())
	writer.Close(websocket.CloseNormalClosure, "")
	s.limits.Release(ip)
	metrics.ConnectedClients.Set(float64(s.registry.Len()))
	log.Info("Session disconnected")

	return nil
}
