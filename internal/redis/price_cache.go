package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pricewire/pricewire/internal/domain"
	"github.com/pricewire/pricewire/internal/metrics"
)

const (
	priceCachePrefix = "eod_cache:"
	priceCacheTTL    = 24 * time.Hour
)

// PriceCacheRepo wraps a domain.PriceRepository with read-through caching
// of end-of-day prices: Redis GET, then Postgres, then populate. Closing
// prices never change once recorded, so a long TTL is safe. Cache failures
// are logged and fall through to Postgres - never surfaced to callers.
type PriceCacheRepo struct {
	rdb    goredis.Cmdable
	prices domain.PriceRepository
}

func NewPriceCacheRepo(rdb goredis.Cmdable, prices domain.PriceRepository) *PriceCacheRepo {
	return &PriceCacheRepo{rdb: rdb, prices: prices}
}

func cacheKey(ticker string, day time.Time) string {
	return priceCachePrefix + ticker + ":" + day.Format("2006-01-02")
}

func (r *PriceCacheRepo) ClosingPrice(ctx context.Context, ticker string, day time.Time) (*domain.ClosingPrice, error) {
	key := cacheKey(ticker, day)

	data, err := r.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var price domain.ClosingPrice
		if err := json.Unmarshal(data, &price); err != nil {
			slog.Warn("Failed to unmarshal cached price, falling through to Postgres",
				"ticker", ticker, "error", err)
		} else {
			metrics.PriceCacheHitsTotal.Inc()
			price.Date = day
			return &price, nil
		}
	} else if !errors.Is(err, goredis.Nil) {
		slog.Warn("Price cache GET failed, falling through to Postgres",
			"ticker", ticker, "error", err)
	}

	metrics.PriceCacheMissesTotal.Inc()
	price, err := r.prices.ClosingPrice(ctx, ticker, day)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(price); err == nil {
		if err := r.rdb.Set(ctx, key, data, priceCacheTTL).Err(); err != nil {
			slog.Warn("Price cache SET failed", "ticker", ticker, "error", err)
		}
	}

	return price, nil
}

// LatestPrice is not cached: the live table moves on every tick and the
// broadcast channel already covers the real-time case.
func (r *PriceCacheRepo) LatestPrice(ctx context.Context, ticker string) (*domain.PriceUpdate, error) {
	update, err := r.prices.LatestPrice(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("latest price lookup: %w", err)
	}
	return update, nil
}
