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
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/id"
	"github.com/authgate/authgate/internal/observability/metrics"
	"github.com/authgate/authgate/internal/token"
)

const accessTokenBytes = 32

// TokenResponse is the client_credentials grant response body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// Issuer mints access tokens for the client_credentials grant.
type Issuer struct {
	clients  ClientRepository
	tokens   TokenRepository
	auditor  audit.Logger
	metrics  *metrics.Metrics
	lifetime time.Duration
}

// NewIssuer creates a new token issuer. m may be nil.
func NewIssuer(
	clients ClientRepository,
	tokens TokenRepository,
	auditor audit.Logger,
	m *metrics.Metrics,
	lifetime time.Duration,
) *Issuer {
	return &Issuer{
		clients:  clients,
		tokens:   tokens,
		auditor:  auditor,
		metrics:  m,
		lifetime: lifetime,
	}
}

// Issue authenticates a client and mints a bearer token. Unknown
// clients and wrong secrets are indistinguishable to the caller.
func (i *Issuer) Issue(ctx context.Context, grantType, clientID, clientSecret string) (*TokenResponse, error) {
	if grantType != GrantClientCredentials {
		return nil, ErrGrantNotAllowed
	}
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingCredentials
	}

	client, err := i.clients.GetByClientID(ctx, clientID)
	if errors.Is(err, ErrClientNotFound) {
		return nil, ErrInvalidClient
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load client: %w", err)
	}
	if client.Disabled {
		return nil, ErrClientDisabled
	}
	if !client.AllowsGrant(GrantClientCredentials) {
		return nil, ErrGrantNotAllowed
	}
	if bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(clientSecret)) != nil {
		return nil, ErrInvalidClient
	}

	value, err := token.Generate(accessTokenBytes)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tok := &AccessToken{
		ID:        id.NewUUIDv7(),
		ClientID:  client.ClientID,
		TokenHash: token.Hash(value),
		ExpiresAt: now.Add(i.lifetime),
		CreatedAt: now,
	}
	if err := i.tokens.Create(ctx, tok); err != nil {
		return nil, fmt.Errorf("failed to store access token: %w", err)
	}

	if i.metrics != nil {
		i.metrics.M2MTokensIssuedTotal.Inc()
	}
	i.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeTokenIssued,
		ActorID:  client.ClientID,
		Resource: "token:" + tok.ID,
	})

	return &TokenResponse{
		AccessToken: value,
		TokenType:   "Bearer",
		ExpiresIn:   int64(i.lifetime.Seconds()),
	}, nil
}
