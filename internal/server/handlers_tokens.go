package server

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pricewire/pricewire/internal/domain"
)

// requireAdmin guards the token management surface with the static admin
// bearer token.
func (s *Server) requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		const prefix = "Bearer "
		header := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(header, prefix) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
		presented := strings.TrimPrefix(header, prefix)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(s.config.AdminToken)) != 1 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}
		return next(c)
	}
}

func (s *Server) handleCreateToken(c echo.Context) error {
	token, err := s.tokens.Create(c.Request().Context())
	if err != nil {
		slog.Error("Failed to create token", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create token"})
	}
	return c.JSON(http.StatusCreated, map[string]string{"token": token})
}

func (s *Server) handleListTokens(c echo.Context) error {
	tokens, err := s.tokens.List(c.Request().Context())
	if err != nil {
		slog.Error("Failed to list tokens", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list tokens"})
	}
	if tokens == nil {
		tokens = []domain.Token{}
	}
	return c.JSON(http.StatusOK, tokens)
}

func (s *Server) handleRevokeToken(c echo.Context) error {
	err := s.tokens.Revoke(c.Request().Context(), c.Param("token"))
	if errors.Is(err, domain.ErrTokenNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "token not found"})
	}
	if err != nil {
		slog.Error("Failed to revoke token", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to revoke token"})
	}
	return c.NoContent(http.StatusNoContent)
}
