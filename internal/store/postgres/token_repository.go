// Copyright 2026 The Authgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/authgate/authgate/internal/m2m"
)

// TokenRepository implements m2m.TokenRepository
type TokenRepository struct {
	db Querier
}

// NewTokenRepository creates a new access token repository
func NewTokenRepository(db Querier) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create stores a newly issued token
func (r *TokenRepository) Create(ctx context.Context, tok *m2m.AccessToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO oauth_access_tokens (id, client_id, token_hash, scope, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tok.ID, tok.ClientID, tok.TokenHash, tok.Scope, tok.ExpiresAt, tok.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert access token: %w", err)
	}
	return nil
}

// GetActiveByHash retrieves an unexpired token by hash. The expiry
// check lives in the query so expired tokens are indistinguishable
// from absent ones.
func (r *TokenRepository) GetActiveByHash(ctx context.Context, tokenHash string) (*m2m.AccessToken, error) {
	var tok m2m.AccessToken
	err := r.db.QueryRow(ctx, `
		SELECT id, client_id, token_hash, scope, expires_at, created_at
		FROM oauth_access_tokens
		WHERE token_hash = $1 AND expires_at > NOW()
	`, tokenHash).Scan(
		&tok.ID, &tok.ClientID, &tok.TokenHash, &tok.Scope, &tok.ExpiresAt, &tok.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, m2m.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}
	return &tok, nil
}

// DeleteForClient removes every token bound to a client
func (r *TokenRepository) DeleteForClient(ctx context.Context, clientID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM oauth_access_tokens WHERE client_id = $1`, clientID)
	if err != nil {
		return fmt.Errorf("failed to delete client tokens: %w", err)
	}
	return nil
}

// DeleteExpired removes expired tokens and reports how many
func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM oauth_access_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
