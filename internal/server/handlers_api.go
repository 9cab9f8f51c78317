package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pricewire/pricewire/internal/domain"
)

const dateLayout = "2006-01-02"

func (s *Server) handleEOD(c echo.Context) error {
	ticker := c.QueryParam("ticker")
	if ticker == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "ticker is required"})
	}

	day, err := time.Parse(dateLayout, c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid date format, use YYYY-MM-DD"})
	}

	price, err := s.prices.ClosingPrice(c.Request().Context(), ticker, day)
	if errors.Is(err, domain.ErrPriceNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("no data found for %s on %s", ticker, day.Format(dateLayout)),
		})
	}
	if err != nil {
		slog.Error("EOD query failed", "ticker", ticker, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to query prices"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"ticker": price.Ticker,
		"date":   price.Date.Format(dateLayout),
		"price":  price.Price,
	})
}

func (s *Server) handleLatestPrice(c echo.Context) error {
	ticker := c.Param("ticker")

	update, err := s.prices.LatestPrice(c.Request().Context(), ticker)
	if errors.Is(err, domain.ErrPriceNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": fmt.Sprintf("no data found for %s", ticker),
		})
	}
	if err != nil {
		slog.Error("Latest price query failed", "ticker", ticker, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to query prices"})
	}

	return c.JSON(http.StatusOK, update)
}
