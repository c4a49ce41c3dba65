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

package m2m

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/id"
	"github.com/authgate/authgate/internal/token"
)

const minClientNameLen = 3

// Registry manages the machine client registry.
type Registry struct {
	clients    ClientRepository
	tokens     TokenRepository
	auditor    audit.Logger
	secretLen  int
	bcryptCost int
}

// NewRegistry creates a new client registry
func NewRegistry(
	clients ClientRepository,
	tokens TokenRepository,
	auditor audit.Logger,
	secretLen, bcryptCost int,
) *Registry {
	return &Registry{
		clients:    clients,
		tokens:     tokens,
		auditor:    auditor,
		secretLen:  secretLen,
		bcryptCost: bcryptCost,
	}
}

// CreateClient registers a machine client restricted to the
// client_credentials grant. The plaintext secret is returned exactly
// once; only its bcrypt hash is stored and it cannot be recovered later.
func (r *Registry) CreateClient(ctx context.Context, actorID, name string, redirectURIs []string) (*Client, string, error) {
	name = strings.TrimSpace(name)
	if len(name) < minClientNameLen {
		return nil, "", ErrInvalidClientName
	}
	for _, uri := range redirectURIs {
		if u, err := url.ParseRequestURI(uri); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, "", fmt.Errorf("%w: %q", ErrInvalidRedirectURI, uri)
		}
	}

	secret, err := token.Generate(r.secretLen)
	if err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), r.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash client secret: %w", err)
	}

	clientID, err := randomHex(16)
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	client := &Client{
		ID:           id.NewUUIDv7(),
		Name:         name,
		ClientID:     clientID,
		SecretHash:   string(hash),
		GrantTypes:   []string{GrantClientCredentials},
		RedirectURIs: redirectURIs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.clients.Create(ctx, client); err != nil {
		return nil, "", fmt.Errorf("failed to create client: %w", err)
	}

	r.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeClientCreated,
		ActorID:  actorID,
		Resource: "client:" + client.ID,
		Metadata: map[string]any{"name": name, "oauth_client_id": clientID},
	})
	return client, secret, nil
}

// GetClient retrieves a client by internal ID
func (r *Registry) GetClient(ctx context.Context, id string) (*Client, error) {
	return r.clients.GetByID(ctx, id)
}

// ListClients retrieves all registered clients. Secrets are not
// recoverable and are never part of the listing.
func (r *Registry) ListClients(ctx context.Context) ([]*Client, error) {
	return r.clients.List(ctx)
}

// SetDisabled toggles the disable flag on a client. Disabling also
// revokes the client's outstanding tokens so access ends immediately.
func (r *Registry) SetDisabled(ctx context.Context, actorID, clientID string, disabled bool) (*Client, error) {
	client, err := r.clients.GetByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if client.Disabled == disabled {
		return client, nil
	}

	client.Disabled = disabled
	client.UpdatedAt = time.Now()
	if err := r.clients.Update(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	if disabled {
		if err := r.tokens.DeleteForClient(ctx, client.ClientID); err != nil {
			return nil, fmt.Errorf("failed to revoke client tokens: %w", err)
		}
	}

	r.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeClientUpdated,
		ActorID:  actorID,
		Resource: "client:" + client.ID,
		Metadata: map[string]any{"disabled": disabled},
	})
	return client, nil
}

// DeleteClient removes a client and revokes its outstanding tokens
func (r *Registry) DeleteClient(ctx context.Context, actorID, clientID string) error {
	client, err := r.clients.GetByID(ctx, clientID)
	if err != nil {
		return err
	}
	if err := r.tokens.DeleteForClient(ctx, client.ClientID); err != nil {
		return fmt.Errorf("failed to revoke client tokens: %w", err)
	}
	if err := r.clients.Delete(ctx, client.ID); err != nil {
		return err
	}
	r.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeClientDeleted,
		ActorID:  actorID,
		Resource: "client:" + client.ID,
	})
	return nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read randomness: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
