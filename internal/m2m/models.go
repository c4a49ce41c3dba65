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

// Package m2m implements machine-to-machine credentials: a client
// registry, a client_credentials token issuer and a request verifier.
package m2m

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrClientNotFound     = errors.New("client not found")
	ErrInvalidClient      = errors.New("invalid client credentials")
	ErrInvalidToken       = errors.New("invalid or expired access token")
	ErrMissingCredentials = errors.New("missing client credentials")
	ErrGrantNotAllowed    = errors.New("grant type not allowed for client")
	ErrClientDisabled     = errors.New("client is disabled")
	ErrInvalidClientName  = errors.New("client name must be at least 3 characters")
	ErrInvalidRedirectURI = errors.New("redirect URI is not a valid absolute URI")
)

// GrantClientCredentials is the only grant the issuer supports.
const GrantClientCredentials = "client_credentials"

// Client is a registered machine client. SecretHash is a bcrypt hash;
// the secret itself is returned exactly once at registration.
type Client struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ClientID     string    `json:"client_id"` // public identifier presented by callers
	SecretHash   string    `json:"-"`
	GrantTypes   []string  `json:"grant_types"`
	RedirectURIs []string  `json:"redirect_uris"`
	Disabled     bool      `json:"disabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AllowsGrant reports whether the client may use a grant type.
func (c *Client) AllowsGrant(grant string) bool {
	for _, g := range c.GrantTypes {
		if g == grant {
			return true
		}
	}
	return false
}

// AccessToken is an issued bearer token. Only the hash is stored.
type AccessToken struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"` // public client identifier the token is bound to
	TokenHash string    `json:"-"`
	Scope     string    `json:"scope,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientRepository defines persistence for machine clients
type ClientRepository interface {
	// Create registers a new client
	Create(ctx context.Context, client *Client) error

	// GetByID retrieves a client by internal ID
	GetByID(ctx context.Context, id string) (*Client, error)

	// GetByClientID retrieves a client by public identifier
	GetByClientID(ctx context.Context, clientID string) (*Client, error)

	// List retrieves all clients
	List(ctx context.Context) ([]*Client, error)

	// Update persists changes to an existing client
	Update(ctx context.Context, client *Client) error

	// Delete removes a client and its tokens
	Delete(ctx context.Context, id string) error
}

// TokenRepository defines persistence for access tokens
type TokenRepository interface {
	// Create stores a newly issued token
	Create(ctx context.Context, tok *AccessToken) error

	// GetActiveByHash retrieves an unexpired token by hash.
	// Expired tokens are indistinguishable from absent ones.
	GetActiveByHash(ctx context.Context, tokenHash string) (*AccessToken, error)

	// DeleteForClient removes every token bound to a client
	DeleteForClient(ctx context.Context, clientID string) error

	// DeleteExpired removes expired tokens and reports how many
	DeleteExpired(ctx context.Context) (int64, error)
}
