package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pricewire/pricewire/internal/domain"
)

// TokenRepo implements domain.TokenRepository on top of the api_tokens table.
type TokenRepo struct {
	pool *pgxpool.Pool
}

func NewTokenRepo(pool *pgxpool.Pool) *TokenRepo {
	return &TokenRepo{pool: pool}
}

func (r *TokenRepo) Create(ctx context.Context) (string, error) {
	token := uuid.NewString()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO api_tokens (token, created_at)
		VALUES ($1, NOW())
	`, token)
	if err != nil {
		return "", fmt.Errorf("failed to insert token: %w", err)
	}

	return token, nil
}

func (r *TokenRepo) Revoke(ctx context.Context, token string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE api_tokens
		SET revoked_at = NOW()
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

func (r *TokenRepo) List(ctx context.Context) ([]domain.Token, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT token, created_at, revoked_at
		FROM api_tokens
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.Token
	for rows.Next() {
		var t domain.Token
		if err := rows.Scan(&t.Token, &t.CreatedAt, &t.RevokedAt); err != nil {
			return nil, fmt.Errorf("failed to scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}

func (r *TokenRepo) Validate(ctx context.Context, token string) (bool, error) {
	var valid bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM api_tokens
			WHERE token = $1 AND revoked_at IS NULL
		)
	`, token).Scan(&valid)
	if err != nil {
		return false, fmt.Errorf("failed to validate token: %w", err)
	}
	return valid, nil
}
