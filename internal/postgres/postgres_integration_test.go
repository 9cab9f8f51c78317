package postgres

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pricewire/pricewire/internal/domain"
)

var (
	testPool        *pgxpool.Pool
	testDatabaseURL string
)

func TestMain(m *testing.M) {
	flag.Parse()

	// Skip container setup if running in short mode
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to terminate postgres container: %v\n", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get connection string: %v\n", err)
		os.Exit(1)
	}
	testDatabaseURL = connStr

	testPool, err = Connect(ctx, testDatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to test database: %v\n", err)
		os.Exit(1)
	}
	defer testPool.Close()

	if err := RunMigrations(ctx, testPool); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// setupTestDB returns the shared pool and truncates the tables afterwards.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	t.Cleanup(func() {
		_, err := testPool.Exec(context.Background(),
			"TRUNCATE api_tokens, historical_prices, live_prices")
		require.NoError(t, err)
	})

	return testPool
}

func TestTokenRepo_CreateValidateRevoke(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTokenRepo(pool)
	ctx := context.Background()

	token, err := repo.Create(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	valid, err := repo.Validate(ctx, token)
	require.NoError(t, err)
	assert.True(t, valid)

	require.NoError(t, repo.Revoke(ctx, token))

	valid, err = repo.Validate(ctx, token)
	require.NoError(t, err)
	assert.False(t, valid, "revoked token must not validate")

	// Revoking again reports not found
	err = repo.Revoke(ctx, token)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestTokenRepo_ListIncludesRevoked(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTokenRepo(pool)
	ctx := context.Background()

	first, err := repo.Create(ctx)
	require.NoError(t, err)
	second, err := repo.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.Revoke(ctx, first))

	tokens, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	byValue := make(map[string]domain.Token, len(tokens))
	for _, tok := range tokens {
		byValue[tok.Token] = tok
	}
	require.Contains(t, byValue, first)
	require.Contains(t, byValue, second)
	assert.NotNil(t, byValue[first].RevokedAt, "revoked token keeps its revocation timestamp")
	assert.Nil(t, byValue[second].RevokedAt)
	assert.False(t, byValue[second].CreatedAt.IsZero())
}

func TestTokenRepo_ValidateUnknownToken(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewTokenRepo(pool)

	valid, err := repo.Validate(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestPriceRepo_ClosingPrice(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPriceRepo(pool)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		INSERT INTO historical_prices (ticker, close_price, recorded_at)
		VALUES ('TRG', 72.45, '2026-01-12')
	`)
	require.NoError(t, err)

	day := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	price, err := repo.ClosingPrice(ctx, "TRG", day)
	require.NoError(t, err)
	assert.Equal(t, "TRG", price.Ticker)
	assert.Equal(t, 72.45, price.Price)
	assert.Equal(t, day, price.Date.UTC())

	_, err = repo.ClosingPrice(ctx, "TRG", day.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, domain.ErrPriceNotFound)
}

func TestPriceRepo_LatestPrice(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewPriceRepo(pool)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
		INSERT INTO live_prices (ticker, price, updated_at) VALUES
			('TRG', 71.00, '2026-01-12T08:00:00Z'),
			('TRG', 72.45, '2026-01-12T08:10:00Z')
	`)
	require.NoError(t, err)

	update, err := repo.LatestPrice(ctx, "TRG")
	require.NoError(t, err)
	assert.Equal(t, 72.45, update.Price)
	assert.Equal(t, time.Date(2026, 1, 12, 8, 10, 0, 0, time.UTC), update.UpdatedAt.UTC())

	_, err = repo.LatestPrice(ctx, "NOPE")
	assert.ErrorIs(t, err, domain.ErrPriceNotFound)
}
