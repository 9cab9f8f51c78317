package domain

import (
	"context"
	"time"
)

// --- Model types ---

// PriceUpdate is a single live price change received from the upstream
// notification channel. It exists only for the duration of one broadcast.
type PriceUpdate struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClosingPrice is an end-of-day price row from the historical table.
type ClosingPrice struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"-"`
	Price  float64   `json:"price"`
}

// Token is an issued API credential. Revoked tokens fail validation but
// stay in the table for auditing.
type Token struct {
	Token     string     `json:"token"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// --- Repository interfaces ---

// TokenRepository stores and validates API tokens.
type TokenRepository interface {
	// Create issues a new token and returns its opaque value.
	Create(ctx context.Context) (string, error)
	// Revoke marks a token as revoked. Returns ErrTokenNotFound if the
	// token does not exist or is already revoked.
	Revoke(ctx context.Context, token string) error
	// Validate reports whether the token exists and is not revoked.
	Validate(ctx context.Context, token string) (bool, error)
	// List returns every issued token, revoked ones included, newest first.
	List(ctx context.Context) ([]Token, error)
}

// PriceRepository serves the read-only snapshot and historical queries.
type PriceRepository interface {
	// ClosingPrice returns the end-of-day price for a ticker on a given day.
	// Returns ErrPriceNotFound when no row exists.
	ClosingPrice(ctx context.Context, ticker string, day time.Time) (*ClosingPrice, error)
	// LatestPrice returns the most recent live price for a ticker.
	// Returns ErrPriceNotFound when the ticker has never traded.
	LatestPrice(ctx context.Context, ticker string) (*PriceUpdate, error)
}
