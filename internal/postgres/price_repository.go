package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pricewire/pricewire/internal/domain"
)

// PriceRepo implements domain.PriceRepository over the historical_prices
// and live_prices tables.
type PriceRepo struct {
	pool *pgxpool.Pool
}

func NewPriceRepo(pool *pgxpool.Pool) *PriceRepo {
	return &PriceRepo{pool: pool}
}

func (r *PriceRepo) ClosingPrice(ctx context.Context, ticker string, day time.Time) (*domain.ClosingPrice, error) {
	price := &domain.ClosingPrice{Ticker: ticker}

	err := r.pool.QueryRow(ctx, `
		SELECT close_price, recorded_at
		FROM historical_prices
		WHERE ticker = $1 AND recorded_at = $2::date
	`, ticker, day).Scan(&price.Price, &price.Date)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPriceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query closing price: %w", err)
	}

	return price, nil
}

func (r *PriceRepo) LatestPrice(ctx context.Context, ticker string) (*domain.PriceUpdate, error) {
	update := &domain.PriceUpdate{Ticker: ticker}

	err := r.pool.QueryRow(ctx, `
		SELECT price, updated_at
		FROM live_prices
		WHERE ticker = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`, ticker).Scan(&update.Price, &update.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPriceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest price: %w", err)
	}

	return update, nil
}
