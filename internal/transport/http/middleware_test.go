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

package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"
)

// TestSessionAuthFlow exercises the cookie-authenticated surface: the
// augmented session endpoint, logout, and rejection after logout.
func TestSessionAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, token, err := env.sessions.Create(ctx, env.admin.ID, "127.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "authgate_session", Value: token})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", w.Code, w.Body.String())
	}

	var me struct {
		UserID      string   `json:"user_id"`
		Roles       []string `json:"roles"`
		Permissions []string `json:"permissions"`
		PrimaryRole string   `json:"primary_role"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &me); err != nil {
		t.Fatal(err)
	}
	if me.UserID != env.admin.ID {
		t.Errorf("expected user %s, got %s", env.admin.ID, me.UserID)
	}
	if !slices.Contains(me.Roles, "admin") {
		t.Errorf("expected admin role in %v", me.Roles)
	}
	// The admin role carries the full default permission registry.
	if len(me.Permissions) == 0 {
		t.Error("expected resolved permissions, got none")
	}

	// Logout revokes the session server-side.
	req = httptest.NewRequest("POST", "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "authgate_session", Value: token})
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "authgate_session", Value: token})
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", w.Code)
	}
}

// TestSessionAuthBearerFallback verifies non-browser callers can pass
// the session token as a bearer token instead of a cookie.
func TestSessionAuthBearerFallback(t *testing.T) {
	env := newTestEnv(t)

	_, token, err := env.sessions.Create(context.Background(), env.admin.ID, "127.0.0.1", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d, body: %s", w.Code, w.Body.String())
	}
}

// TestPermissionGuardUniformDenial verifies that a user without the
// required permission receives a generic denial that does not name the
// missing permission, while a privileged user passes.
func TestPermissionGuardUniformDenial(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, userToken, err := env.sessions.Create(ctx, env.user.ID, "127.0.0.1", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest("GET", "/admin/roles", nil)
	req.AddCookie(&http.Cookie{Name: "authgate_session", Value: userToken})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["error"] != "access denied" {
		t.Errorf("expected uniform denial message, got %q", resp["error"])
	}
	if strings.Contains(w.Body.String(), "role:read") {
		t.Error("denial response must not name the missing permission")
	}

	_, adminToken, err := env.sessions.Create(ctx, env.admin.ID, "127.0.0.1", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	req = httptest.NewRequest("GET", "/admin/roles", nil)
	req.AddCookie(&http.Cookie{Name: "authgate_session", Value: adminToken})
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for admin, got %d, body: %s", w.Code, w.Body.String())
	}
}

// TestBannedUserRejected verifies a banned user cannot use an existing
// session even before it expires.
func TestBannedUserRejected(t *testing.T) {
	env := newTestEnv(t)

	_, token, err := env.sessions.Create(context.Background(), env.user.ID, "127.0.0.1", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	// Flip the ban flag directly so the session survives and the
	// middleware check is what rejects the request.
	env.users.users[env.user.ID].Banned = true

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "authgate_session", Value: token})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for banned user, got %d", w.Code)
	}
}

// TestM2MMiddlewareHeaderChecks verifies the fail-fast header
// validation order: client headers first, then the bearer token.
func TestM2MMiddlewareHeaderChecks(t *testing.T) {
	env := newTestEnv(t)

	// No credentials at all.
	req := httptest.NewRequest("GET", "/m2m/users/u1/authz", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "X-Client-Id or X-Client-Secret") {
		t.Errorf("expected client header error, got %s", w.Body.String())
	}

	// Client headers present, bearer missing.
	req = httptest.NewRequest("GET", "/m2m/users/u1/authz", nil)
	req.Header.Set("X-Client-Id", "cid")
	req.Header.Set("X-Client-Secret", "secret")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Authorization header") {
		t.Errorf("expected authorization header error, got %s", w.Body.String())
	}

	// All three present but invalid.
	req = httptest.NewRequest("GET", "/m2m/users/u1/authz", nil)
	req.Header.Set("X-Client-Id", "cid")
	req.Header.Set("X-Client-Secret", "secret")
	req.Header.Set("Authorization", "Bearer bogus")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid or expired access token") {
		t.Errorf("expected token error, got %s", w.Body.String())
	}
}

// TestM2MFullFlow registers a client, obtains a token through the
// client_credentials grant and calls a machine endpoint with the full
// credential triple.
func TestM2MFullFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client, secret, err := env.registry.CreateClient(ctx, "test", "backend-service", nil)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {client.ClientID},
		"client_secret": {secret},
	}
	req := httptest.NewRequest("POST", "/m2m/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("token: expected 200, got %d, body: %s", w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected Cache-Control no-store, got %q", cc)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &tok); err != nil {
		t.Fatal(err)
	}
	if tok.TokenType != "Bearer" {
		t.Errorf("expected Bearer token type, got %q", tok.TokenType)
	}
	if tok.ExpiresIn <= 0 {
		t.Errorf("expected positive expiry, got %d", tok.ExpiresIn)
	}

	req = httptest.NewRequest("GET", "/m2m/users/"+env.admin.ID+"/authz", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("X-Client-Id", client.ClientID)
	req.Header.Set("X-Client-Secret", secret)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("authz: expected 200, got %d, body: %s", w.Code, w.Body.String())
	}
	var authz struct {
		UserID      string   `json:"user_id"`
		Roles       []string `json:"roles"`
		Permissions []string `json:"permissions"`
		PrimaryRole string   `json:"primary_role"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &authz); err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(authz.Roles, "admin") {
		t.Errorf("expected admin role in %v", authz.Roles)
	}

	// The same token with the wrong client secret must be rejected.
	req = httptest.NewRequest("GET", "/m2m/users/"+env.admin.ID+"/authz", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("X-Client-Id", client.ClientID)
	req.Header.Set("X-Client-Secret", "wrong")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong secret, got %d", w.Code)
	}
}

// TestM2MUserRoutes exercises the machine-facing user fetch and patch
// routes behind the credential triple.
func TestM2MUserRoutes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client, secret, err := env.registry.CreateClient(ctx, "test", "auth-frontend", nil)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	resp, err := env.issuer.Issue(ctx, "client_credentials", client.ClientID, secret)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	withTriple := func(req *http.Request) *http.Request {
		req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
		req.Header.Set("X-Client-Id", client.ClientID)
		req.Header.Set("X-Client-Secret", secret)
		return req
	}

	req := withTriple(httptest.NewRequest("GET", "/m2m/user/"+env.user.ID, nil))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get user: expected 200, got %d, body: %s", w.Code, w.Body.String())
	}
	var fetched struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &fetched); err != nil {
		t.Fatal(err)
	}
	if fetched.ID != env.user.ID {
		t.Errorf("expected user %s, got %s", env.user.ID, fetched.ID)
	}
	// Limited view: ban state stays internal.
	if strings.Contains(w.Body.String(), "ban") {
		t.Errorf("machine user view must not expose ban fields: %s", w.Body.String())
	}

	body := strings.NewReader(`{"name": "Renamed", "email_verified": true, "properties": {"locale": "de"}}`)
	req = withTriple(httptest.NewRequest("PATCH", "/m2m/user/"+env.user.ID, body))
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("patch user: expected 200, got %d, body: %s", w.Code, w.Body.String())
	}
	var patched struct {
		Name          string         `json:"name"`
		EmailVerified bool           `json:"email_verified"`
		Properties    map[string]any `json:"properties"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &patched); err != nil {
		t.Fatal(err)
	}
	if patched.Name != "Renamed" || !patched.EmailVerified {
		t.Errorf("patch not applied: %+v", patched)
	}
	if patched.Properties["locale"] != "de" {
		t.Errorf("properties not applied: %+v", patched.Properties)
	}

	req = withTriple(httptest.NewRequest("GET", "/m2m/user/no-such-user", nil))
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", w.Code)
	}
}

// TestClientDisable covers the admin disable toggle: a disabled
// client loses both its live tokens and the ability to mint new ones.
func TestClientDisable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client, secret, err := env.registry.CreateClient(ctx, "test", "batch-worker", nil)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	resp, err := env.issuer.Issue(ctx, "client_credentials", client.ClientID, secret)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	_, adminToken, err := env.sessions.Create(ctx, env.admin.ID, "127.0.0.1", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	req := httptest.NewRequest("PATCH", "/admin/m2m/client/"+client.ID, strings.NewReader(`{"disabled": true}`))
	req.AddCookie(&http.Cookie{Name: "authgate_session", Value: adminToken})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("disable: expected 200, got %d, body: %s", w.Code, w.Body.String())
	}

	// Existing token no longer verifies.
	req = httptest.NewRequest("GET", "/m2m/users/"+env.user.ID+"/authz", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	req.Header.Set("X-Client-Id", client.ClientID)
	req.Header.Set("X-Client-Secret", secret)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for disabled client, got %d", w.Code)
	}

	// New issuance is refused with the OAuth vocabulary.
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {client.ClientID},
		"client_secret": {secret},
	}
	req = httptest.NewRequest("POST", "/m2m/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for disabled client, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "invalid_client") {
		t.Errorf("expected invalid_client error, got %s", w.Body.String())
	}
}

// TestClientAdminEndpoints covers client registration and listing:
// the plaintext secret appears exactly once in the creation response,
// the stored bcrypt hash never leaves the server, and malformed
// registration input is rejected.
func TestClientAdminEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, adminToken, err := env.sessions.Create(ctx, env.admin.ID, "127.0.0.1", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	adminReq := func(method, path, body string) *http.Request {
		var rd io.Reader
		if body != "" {
			rd = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, rd)
		req.AddCookie(&http.Cookie{Name: "authgate_session", Value: adminToken})
		return req
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, adminReq("POST", "/admin/m2m/client", `{"name": "billing-service", "redirect_uris": ["https://example.com/cb"]}`))
	if w.Code != http.StatusCreated {
		t.Fatalf("create client: expected 201, got %d, body: %s", w.Code, w.Body.String())
	}
	var created struct {
		Client       map[string]any `json:"client"`
		ClientSecret string         `json:"client_secret"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ClientSecret == "" {
		t.Error("expected plaintext secret in creation response")
	}
	if strings.Contains(w.Body.String(), "$2a$") || strings.Contains(w.Body.String(), "SecretHash") {
		t.Errorf("creation response leaks the secret hash: %s", w.Body.String())
	}
	if _, ok := created.Client["client_id"]; !ok {
		t.Errorf("expected snake_case client fields, got %v", created.Client)
	}

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, adminReq("GET", "/admin/m2m/client", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("list clients: expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "$2a$") || strings.Contains(body, "SecretHash") {
		t.Errorf("listing leaks the secret hash: %s", body)
	}
	if strings.Contains(body, created.ClientSecret) {
		t.Error("listing must not return the plaintext secret")
	}

	// Registration input checks.
	for _, payload := range []string{
		`{"name": "ab"}`,
		`{"name": "batch-worker", "redirect_uris": ["not-a-uri"]}`,
	} {
		w = httptest.NewRecorder()
		env.router.ServeHTTP(w, adminReq("POST", "/admin/m2m/client", payload))
		if w.Code != http.StatusBadRequest {
			t.Errorf("payload %s: expected 400, got %d", payload, w.Code)
		}
	}
}

// TestAdminResponsesUseSnakeCase verifies that serialized domain
// objects answer with the same snake_case field names the request
// bodies are decoded with.
func TestAdminResponsesUseSnakeCase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, adminToken, err := env.sessions.Create(ctx, env.admin.ID, "127.0.0.1", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest("POST", "/admin/roles", strings.NewReader(`{"name": "Support", "value": "support", "order": 5}`))
	req.AddCookie(&http.Cookie{Name: "authgate_session", Value: adminToken})
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create role: expected 201, got %d, body: %s", w.Code, w.Body.String())
	}
	var role map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &role); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"id", "value", "is_active", "created_at"} {
		if _, ok := role[key]; !ok {
			t.Errorf("expected %q in role response, got %v", key, role)
		}
	}
	if _, ok := role["ID"]; ok {
		t.Errorf("role response uses Go field names: %v", role)
	}

	req = httptest.NewRequest("GET", "/admin/users", nil)
	req.AddCookie(&http.Cookie{Name: "authgate_session", Value: adminToken})
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list users: expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"email_verified"`) {
		t.Errorf("expected snake_case user fields, got %s", w.Body.String())
	}
}

// TestIssueTokenErrorMapping verifies the OAuth error vocabulary on
// the token endpoint.
func TestIssueTokenErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	client, secret, err := env.registry.CreateClient(context.Background(), "test", "backend-service", nil)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	cases := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantError  string
	}{
		{
			name: "unsupported grant",
			form: url.Values{
				"grant_type":    {"authorization_code"},
				"client_id":     {client.ClientID},
				"client_secret": {secret},
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "unsupported_grant_type",
		},
		{
			name: "missing credentials",
			form: url.Values{
				"grant_type": {"client_credentials"},
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name: "wrong secret",
			form: url.Values{
				"grant_type":    {"client_credentials"},
				"client_id":     {client.ClientID},
				"client_secret": {"wrong"},
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_client",
		},
		{
			name: "unknown client",
			form: url.Values{
				"grant_type":    {"client_credentials"},
				"client_id":     {"nope"},
				"client_secret": {"nope"},
			},
			wantStatus: http.StatusUnauthorized,
			wantError:  "invalid_client",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/m2m/token", strings.NewReader(tc.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d, body: %s", tc.wantStatus, w.Code, w.Body.String())
			}
			var resp map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp["error"] != tc.wantError {
				t.Errorf("expected error %q, got %q", tc.wantError, resp["error"])
			}
		})
	}
}

// TestExchangeSession verifies a machine-minted session token can be
// turned into a browser cookie, and that invalid tokens set nothing.
func TestExchangeSession(t *testing.T) {
	env := newTestEnv(t)

	_, token, err := env.sessions.Create(context.Background(), env.user.ID, "127.0.0.1", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest("POST", "/auth/session/exchange", strings.NewReader(`{"token":"`+token+`"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	var found bool
	for _, c := range cookies {
		if c.Name == "authgate_session" && c.Value == token {
			found = true
		}
	}
	if !found {
		t.Error("expected session cookie to be set")
	}

	req = httptest.NewRequest("POST", "/auth/session/exchange", strings.NewReader(`{"token":"bogus"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bogus token, got %d", w.Code)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("invalid exchange must not set a cookie")
	}
}

// TestHealthCheck verifies the unauthenticated health endpoint.
func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("expected healthy status, got %q", resp["status"])
	}
}
