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

	"golang.org/x/crypto/bcrypt"

	"github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/observability/metrics"
	"github.com/authgate/authgate/internal/token"
)

// Credentials is the full credential triple a machine caller presents.
type Credentials struct {
	BearerToken  string
	ClientID     string
	ClientSecret string
}

// Verifier authenticates machine requests.
type Verifier struct {
	clients ClientRepository
	tokens  TokenRepository
	auditor audit.Logger
	metrics *metrics.Metrics
}

// NewVerifier creates a new credential verifier. m may be nil.
func NewVerifier(
	clients ClientRepository,
	tokens TokenRepository,
	auditor audit.Logger,
	m *metrics.Metrics,
) *Verifier {
	return &Verifier{clients: clients, tokens: tokens, auditor: auditor, metrics: m}
}

// Verify checks the full credential triple: the bearer token must be
// live and bound to the presented client ID, and the client secret
// must match the registered client. All three legs must pass.
func (v *Verifier) Verify(ctx context.Context, creds Credentials) (*Client, error) {
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.BearerToken == "" {
		return nil, ErrMissingCredentials
	}

	tok, err := v.tokens.GetActiveByHash(ctx, token.Hash(creds.BearerToken))
	if errors.Is(err, ErrInvalidToken) {
		return nil, v.reject(ctx, creds.ClientID, "unknown or expired token")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if tok.ClientID != creds.ClientID {
		// Token belongs to a different client; treat as invalid.
		return nil, v.reject(ctx, creds.ClientID, "token not bound to client")
	}

	client, err := v.clients.GetByClientID(ctx, creds.ClientID)
	if errors.Is(err, ErrClientNotFound) {
		return nil, v.reject(ctx, creds.ClientID, "unknown client")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load client: %w", err)
	}
	if client.Disabled {
		return nil, v.reject(ctx, creds.ClientID, "client disabled")
	}
	if bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(creds.ClientSecret)) != nil {
		return nil, v.reject(ctx, creds.ClientID, "secret mismatch")
	}

	if v.metrics != nil {
		v.metrics.M2MVerificationsTotal.WithLabelValues("ok").Inc()
	}
	return client, nil
}

// reject records the rejection detail in the audit log and returns the
// uniform ErrInvalidToken so callers cannot probe which leg failed.
func (v *Verifier) reject(ctx context.Context, clientID, reason string) error {
	if v.metrics != nil {
		v.metrics.M2MVerificationsTotal.WithLabelValues("rejected").Inc()
	}
	v.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeTokenRejected,
		ActorID:  clientID,
		Metadata: map[string]any{"reason": reason},
	})
	return ErrInvalidToken
}
