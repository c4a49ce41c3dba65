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
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/authgate/authgate/internal/m2m"
)

// ClientRepository implements m2m.ClientRepository
type ClientRepository struct {
	db Querier
}

// NewClientRepository creates a new client repository
func NewClientRepository(db Querier) *ClientRepository {
	return &ClientRepository{db: db}
}

const clientColumns = `id, name, client_id, secret_hash, grant_types, redirect_uris, disabled, created_at, updated_at`

func scanClient(row pgx.Row) (*m2m.Client, error) {
	var client m2m.Client
	var grantTypes, redirectURIs string
	err := row.Scan(
		&client.ID, &client.Name, &client.ClientID, &client.SecretHash,
		&grantTypes, &redirectURIs, &client.Disabled, &client.CreatedAt, &client.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	client.GrantTypes = splitList(grantTypes)
	client.RedirectURIs = splitList(redirectURIs)
	return &client, nil
}

// Create registers a new client
func (r *ClientRepository) Create(ctx context.Context, client *m2m.Client) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO oauth_clients (id, name, client_id, secret_hash, grant_types, redirect_uris, disabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, client.ID, client.Name, client.ClientID, client.SecretHash,
		strings.Join(client.GrantTypes, ","), strings.Join(client.RedirectURIs, ","),
		client.Disabled, client.CreatedAt, client.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert client: %w", err)
	}
	return nil
}

// GetByID retrieves a client by internal ID
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*m2m.Client, error) {
	client, err := scanClient(r.db.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, m2m.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return client, nil
}

// GetByClientID retrieves a client by public identifier
func (r *ClientRepository) GetByClientID(ctx context.Context, clientID string) (*m2m.Client, error) {
	client, err := scanClient(r.db.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients WHERE client_id = $1`, clientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, m2m.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client by client_id: %w", err)
	}
	return client, nil
}

// List retrieves all clients
func (r *ClientRepository) List(ctx context.Context) ([]*m2m.Client, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+clientColumns+` FROM oauth_clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*m2m.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}
	return clients, nil
}

// Update persists changes to an existing client
func (r *ClientRepository) Update(ctx context.Context, client *m2m.Client) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE oauth_clients
		SET name = $2, grant_types = $3, redirect_uris = $4, disabled = $5, updated_at = $6
		WHERE id = $1
	`, client.ID, client.Name, strings.Join(client.GrantTypes, ","),
		strings.Join(client.RedirectURIs, ","), client.Disabled, client.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return m2m.ErrClientNotFound
	}
	return nil
}

// Delete removes a client; its tokens cascade
func (r *ClientRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM oauth_clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return m2m.ErrClientNotFound
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
