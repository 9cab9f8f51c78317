// Package auth validates client credentials at connection-admission time.
package auth

import (
	"context"
	"fmt"

	"github.com/pricewire/pricewire/internal/domain"
)

// Gate checks opaque API tokens against the credential store. It has no
// state of its own: validation happens strictly before a session is created.
type Gate struct {
	tokens domain.TokenRepository
}

func NewGate(tokens domain.TokenRepository) *Gate {
	return &Gate{tokens: tokens}
}

// Validate returns nil when the credential is accepted. A missing, unknown,
// or revoked token yields ErrAuthRejected; any other error means the
// credential store itself could not be queried.
func (g *Gate) Validate(ctx context.Context, credential string) error {
	if credential == "" {
		return domain.ErrAuthRejected
	}

	ok, err := g.tokens.Validate(ctx, credential)
	if err != nil {
		return fmt.Errorf("query credential store: %w", err)
	}
	if !ok {
		return domain.ErrAuthRejected
	}
	return nil
}
