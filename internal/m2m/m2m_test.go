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

package m2m_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/m2m"
	"github.com/authgate/authgate/internal/token"
)

// MockClientRepository implements m2m.ClientRepository for testing
type MockClientRepository struct {
	clients map[string]*m2m.Client // by internal ID
}

func NewMockClientRepository() *MockClientRepository {
	return &MockClientRepository{clients: map[string]*m2m.Client{}}
}

func (m *MockClientRepository) Create(ctx context.Context, client *m2m.Client) error {
	m.clients[client.ID] = client
	return nil
}

func (m *MockClientRepository) GetByID(ctx context.Context, id string) (*m2m.Client, error) {
	if c, ok := m.clients[id]; ok {
		return c, nil
	}
	return nil, m2m.ErrClientNotFound
}

func (m *MockClientRepository) GetByClientID(ctx context.Context, clientID string) (*m2m.Client, error) {
	for _, c := range m.clients {
		if c.ClientID == clientID {
			return c, nil
		}
	}
	return nil, m2m.ErrClientNotFound
}

func (m *MockClientRepository) List(ctx context.Context) ([]*m2m.Client, error) {
	var out []*m2m.Client
	for _, c := range m.clients {
		out = append(out, c)
	}
	return out, nil
}

func (m *MockClientRepository) Update(ctx context.Context, client *m2m.Client) error {
	if _, ok := m.clients[client.ID]; !ok {
		return m2m.ErrClientNotFound
	}
	m.clients[client.ID] = client
	return nil
}

func (m *MockClientRepository) Delete(ctx context.Context, id string) error {
	delete(m.clients, id)
	return nil
}

// MockTokenRepository implements m2m.TokenRepository for testing
type MockTokenRepository struct {
	tokens map[string]*m2m.AccessToken // by hash
}

func NewMockTokenRepository() *MockTokenRepository {
	return &MockTokenRepository{tokens: map[string]*m2m.AccessToken{}}
}

func (m *MockTokenRepository) Create(ctx context.Context, tok *m2m.AccessToken) error {
	m.tokens[tok.TokenHash] = tok
	return nil
}

func (m *MockTokenRepository) GetActiveByHash(ctx context.Context, tokenHash string) (*m2m.AccessToken, error) {
	tok, ok := m.tokens[tokenHash]
	if !ok || time.Now().After(tok.ExpiresAt) {
		return nil, m2m.ErrInvalidToken
	}
	return tok, nil
}

func (m *MockTokenRepository) DeleteForClient(ctx context.Context, clientID string) error {
	for hash, tok := range m.tokens {
		if tok.ClientID == clientID {
			delete(m.tokens, hash)
		}
	}
	return nil
}

func (m *MockTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for hash, tok := range m.tokens {
		if time.Now().After(tok.ExpiresAt) {
			delete(m.tokens, hash)
			n++
		}
	}
	return n, nil
}

func newRegistry(clients *MockClientRepository, tokens *MockTokenRepository) *m2m.Registry {
	return m2m.NewRegistry(clients, tokens, audit.NewSlogLogger(), 32, bcrypt.MinCost)
}

// TestPurpose: Validates that client registration returns the plaintext secret exactly once and stores only a bcrypt hash.
// Scope: Unit Test
// Security: Credential Storage (CWE-257)
// Expected: The returned secret verifies against the stored hash, the stored hash is not the secret, and listings carry no secret.
// Test Case ID: M2M-01
func TestRegistry_CreateClient_SecretShownOnce(t *testing.T) {
	clients := NewMockClientRepository()
	tokens := NewMockTokenRepository()
	reg := newRegistry(clients, tokens)
	ctx := context.Background()

	client, secret, err := reg.CreateClient(ctx, "actor", "billing-service", nil)
	require.NoError(t, err)
	require.NotEmpty(t, secret)
	assert.NotEqual(t, secret, client.SecretHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(secret)))
	assert.Equal(t, []string{m2m.GrantClientCredentials}, client.GrantTypes)
	assert.Len(t, client.ClientID, 32)

	listed, err := reg.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	// Only the hash survives; the plaintext secret is unrecoverable.
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(listed[0].SecretHash), []byte(secret)))
}

// TestPurpose: Validates the client_credentials issuance path and that bad credentials are indistinguishable from unknown clients.
// Scope: Unit Test
// Security: Authentication Bypass Prevention (CWE-287)
// Expected: Correct credentials yield a bearer token with expiry; wrong secret and unknown client both return ErrInvalidClient.
// Test Case ID: M2M-02
func TestIssuer_Issue(t *testing.T) {
	clients := NewMockClientRepository()
	tokens := NewMockTokenRepository()
	reg := newRegistry(clients, tokens)
	ctx := context.Background()

	client, secret, err := reg.CreateClient(ctx, "actor", "billing-service", nil)
	require.NoError(t, err)

	issuer := m2m.NewIssuer(clients, tokens, audit.NewSlogLogger(), nil, time.Hour)

	resp, err := issuer.Issue(ctx, m2m.GrantClientCredentials, client.ClientID, secret)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	// Stored by hash, bound to the public client ID.
	stored, err := tokens.GetActiveByHash(ctx, token.Hash(resp.AccessToken))
	require.NoError(t, err)
	assert.Equal(t, client.ClientID, stored.ClientID)

	_, err = issuer.Issue(ctx, m2m.GrantClientCredentials, client.ClientID, "wrong")
	assert.ErrorIs(t, err, m2m.ErrInvalidClient)

	_, err = issuer.Issue(ctx, m2m.GrantClientCredentials, "ghost", secret)
	assert.ErrorIs(t, err, m2m.ErrInvalidClient)

	_, err = issuer.Issue(ctx, "authorization_code", client.ClientID, secret)
	assert.ErrorIs(t, err, m2m.ErrGrantNotAllowed)
}

// TestPurpose: Validates the verifier's fail-fast on missing credentials before any storage access.
// Scope: Unit Test
// Expected: Any empty leg of the credential triple returns ErrMissingCredentials.
// Test Case ID: M2M-03
func TestVerifier_MissingCredentials(t *testing.T) {
	verifier := m2m.NewVerifier(NewMockClientRepository(), NewMockTokenRepository(), audit.NewSlogLogger(), nil)
	ctx := context.Background()

	cases := []m2m.Credentials{
		{},
		{BearerToken: "tok"},
		{BearerToken: "tok", ClientID: "cid"},
		{ClientID: "cid", ClientSecret: "sec"},
	}
	for _, creds := range cases {
		_, err := verifier.Verify(ctx, creds)
		assert.ErrorIs(t, err, m2m.ErrMissingCredentials)
	}
}

// TestPurpose: Validates full triple verification: live token, token-client binding and client secret must all hold.
// Scope: Unit Test
// Security: Token Binding
// Expected: Valid triple passes; expired token, foreign token and wrong secret all return the uniform ErrInvalidToken.
// Test Case ID: M2M-04
func TestVerifier_Verify(t *testing.T) {
	clients := NewMockClientRepository()
	tokens := NewMockTokenRepository()
	reg := newRegistry(clients, tokens)
	issuer := m2m.NewIssuer(clients, tokens, audit.NewSlogLogger(), nil, time.Hour)
	verifier := m2m.NewVerifier(clients, tokens, audit.NewSlogLogger(), nil)
	ctx := context.Background()

	clientA, secretA, err := reg.CreateClient(ctx, "actor", "service-a", nil)
	require.NoError(t, err)
	clientB, secretB, err := reg.CreateClient(ctx, "actor", "service-b", nil)
	require.NoError(t, err)

	respA, err := issuer.Issue(ctx, m2m.GrantClientCredentials, clientA.ClientID, secretA)
	require.NoError(t, err)

	got, err := verifier.Verify(ctx, m2m.Credentials{
		BearerToken:  respA.AccessToken,
		ClientID:     clientA.ClientID,
		ClientSecret: secretA,
	})
	require.NoError(t, err)
	assert.Equal(t, clientA.ID, got.ID)

	// Token issued to A presented with B's identity.
	_, err = verifier.Verify(ctx, m2m.Credentials{
		BearerToken:  respA.AccessToken,
		ClientID:     clientB.ClientID,
		ClientSecret: secretB,
	})
	assert.ErrorIs(t, err, m2m.ErrInvalidToken)

	// Correct token and client, wrong secret.
	_, err = verifier.Verify(ctx, m2m.Credentials{
		BearerToken:  respA.AccessToken,
		ClientID:     clientA.ClientID,
		ClientSecret: "wrong",
	})
	assert.ErrorIs(t, err, m2m.ErrInvalidToken)

	// Expired token.
	expired := &m2m.AccessToken{
		ID:        "t-old",
		ClientID:  clientA.ClientID,
		TokenHash: token.Hash("old-token"),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, tokens.Create(ctx, expired))
	_, err = verifier.Verify(ctx, m2m.Credentials{
		BearerToken:  "old-token",
		ClientID:     clientA.ClientID,
		ClientSecret: secretA,
	})
	assert.ErrorIs(t, err, m2m.ErrInvalidToken)
}

// TestPurpose: Validates that deleting a client revokes its outstanding tokens.
// Scope: Unit Test
// Expected: After DeleteClient, a previously issued token no longer verifies.
// Test Case ID: M2M-05
func TestRegistry_DeleteClient_RevokesTokens(t *testing.T) {
	clients := NewMockClientRepository()
	tokens := NewMockTokenRepository()
	reg := newRegistry(clients, tokens)
	issuer := m2m.NewIssuer(clients, tokens, audit.NewSlogLogger(), nil, time.Hour)
	ctx := context.Background()

	client, secret, err := reg.CreateClient(ctx, "actor", "service", nil)
	require.NoError(t, err)
	resp, err := issuer.Issue(ctx, m2m.GrantClientCredentials, client.ClientID, secret)
	require.NoError(t, err)

	require.NoError(t, reg.DeleteClient(ctx, "actor", client.ID))

	_, err = tokens.GetActiveByHash(ctx, token.Hash(resp.AccessToken))
	assert.ErrorIs(t, err, m2m.ErrInvalidToken)
}

// TestPurpose: Validates registration input checks on client name and redirect URIs.
// Scope: Unit Test
// Security: Input Validation (CWE-20)
// Expected: Names under 3 characters and non-absolute redirect URIs are rejected before any write; a trimmed valid name passes.
// Test Case ID: M2M-06
func TestRegistry_CreateClient_Validation(t *testing.T) {
	clients := NewMockClientRepository()
	reg := newRegistry(clients, NewMockTokenRepository())
	ctx := context.Background()

	_, _, err := reg.CreateClient(ctx, "actor", "ab", nil)
	assert.ErrorIs(t, err, m2m.ErrInvalidClientName)

	_, _, err = reg.CreateClient(ctx, "actor", "  a  ", nil)
	assert.ErrorIs(t, err, m2m.ErrInvalidClientName)

	for _, uri := range []string{"not-a-uri", "/relative/path", "http://"} {
		_, _, err = reg.CreateClient(ctx, "actor", "service", []string{uri})
		assert.ErrorIs(t, err, m2m.ErrInvalidRedirectURI, "uri %q", uri)
	}
	assert.Empty(t, clients.clients)

	_, _, err = reg.CreateClient(ctx, "actor", "  billing  ", []string{"https://example.com/callback"})
	require.NoError(t, err)
}

// TestPurpose: Validates that disabling a client cuts off both new issuance and existing tokens, and that re-enabling restores issuance.
// Scope: Unit Test
// Security: Access Revocation
// Expected: Disable revokes outstanding tokens, Issue returns ErrClientDisabled and Verify the uniform ErrInvalidToken; after re-enable, issuance works again.
// Test Case ID: M2M-07
func TestRegistry_SetDisabled(t *testing.T) {
	clients := NewMockClientRepository()
	tokens := NewMockTokenRepository()
	reg := newRegistry(clients, tokens)
	issuer := m2m.NewIssuer(clients, tokens, audit.NewSlogLogger(), nil, time.Hour)
	verifier := m2m.NewVerifier(clients, tokens, audit.NewSlogLogger(), nil)
	ctx := context.Background()

	client, secret, err := reg.CreateClient(ctx, "actor", "service", nil)
	require.NoError(t, err)
	resp, err := issuer.Issue(ctx, m2m.GrantClientCredentials, client.ClientID, secret)
	require.NoError(t, err)

	updated, err := reg.SetDisabled(ctx, "actor", client.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Disabled)

	// Outstanding tokens are gone and new ones cannot be minted.
	_, err = tokens.GetActiveByHash(ctx, token.Hash(resp.AccessToken))
	assert.ErrorIs(t, err, m2m.ErrInvalidToken)
	_, err = issuer.Issue(ctx, m2m.GrantClientCredentials, client.ClientID, secret)
	assert.ErrorIs(t, err, m2m.ErrClientDisabled)

	// Even a token that survived revocation must not verify.
	survivor := &m2m.AccessToken{
		ID:        "t-survivor",
		ClientID:  client.ClientID,
		TokenHash: token.Hash("survivor-token"),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, tokens.Create(ctx, survivor))
	_, err = verifier.Verify(ctx, m2m.Credentials{
		BearerToken:  "survivor-token",
		ClientID:     client.ClientID,
		ClientSecret: secret,
	})
	assert.ErrorIs(t, err, m2m.ErrInvalidToken)

	updated, err = reg.SetDisabled(ctx, "actor", client.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Disabled)
	_, err = issuer.Issue(ctx, m2m.GrantClientCredentials, client.ClientID, secret)
	assert.NoError(t, err)
}

// TestPurpose: Validates caller-side token caching, refresh before expiry and explicit invalidation.
// Scope: Unit Test
// Expected: One fetch serves repeated calls while fresh; tokens inside the 30s margin or invalidated trigger a refetch.
// Test Case ID: M2M-08
func TestTokenSource(t *testing.T) {
	var fetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, m2m.GrantClientCredentials, r.Form.Get("grant_type"))
		assert.Equal(t, "cid", r.Form.Get("client_id"))
		assert.Equal(t, "sec", r.Form.Get("client_secret"))

		n := fetches.Add(1)
		expiresIn := int64(3600)
		if n == 2 {
			// Second token is already inside the refresh margin.
			expiresIn = 10
		}
		json.NewEncoder(w).Encode(m2m.TokenResponse{
			AccessToken: "tok-" + string(rune('0'+n)),
			TokenType:   "Bearer",
			ExpiresIn:   expiresIn,
		})
	}))
	defer srv.Close()

	ts := m2m.NewTokenSource(srv.Client(), srv.URL, "cid", "sec")
	ctx := context.Background()

	tok1, err := ts.Token(ctx)
	require.NoError(t, err)
	tok2, err := ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, tok1, tok2)
	assert.Equal(t, int64(1), fetches.Load())

	ts.Invalidate()
	tok3, err := ts.Token(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, tok1, tok3)
	assert.Equal(t, int64(2), fetches.Load())

	// tok3 expires in 10s, within the margin, so the next call refetches.
	_, err = ts.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), fetches.Load())
}
