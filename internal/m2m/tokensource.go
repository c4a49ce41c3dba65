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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// refreshMargin is how long before expiry a cached token is considered
// stale, so a token never expires mid-flight.
const refreshMargin = 30 * time.Second

// TokenSource is the caller-side half of the flow: it fetches a token
// via the client_credentials grant, caches it until shortly before
// expiry and refetches on demand. Invalidate drops the cached token,
// which is what a caller does after a 401.
type TokenSource struct {
	client       *http.Client
	tokenURL     string
	clientID     string
	clientSecret string

	mu        sync.Mutex
	cached    string
	expiresAt time.Time
}

// NewTokenSource creates a token source. httpClient may be nil, in
// which case a client with a 10s timeout is used.
func NewTokenSource(httpClient *http.Client, tokenURL, clientID, clientSecret string) *TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TokenSource{
		client:       httpClient,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// Token returns a live access token, fetching a fresh one when the
// cached token is absent or within the refresh margin of expiry.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.cached != "" && time.Now().Before(ts.expiresAt.Add(-refreshMargin)) {
		return ts.cached, nil
	}

	form := url.Values{
		"grant_type":    {GrantClientCredentials},
		"client_id":     {ts.clientID},
		"client_secret": {ts.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access_token")
	}

	ts.cached = tr.AccessToken
	ts.expiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return ts.cached, nil
}

// Invalidate drops the cached token so the next Token call refetches.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.cached = ""
	ts.expiresAt = time.Time{}
}

// Authenticate decorates an outbound request with the full credential
// triple expected by machine endpoints.
func (ts *TokenSource) Authenticate(ctx context.Context, req *http.Request) error {
	tok, err := ts.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("X-Client-Id", ts.clientID)
	req.Header.Set("X-Client-Secret", ts.clientSecret)
	return nil
}
