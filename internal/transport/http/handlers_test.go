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
	"net/http"
	"slices"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/identity"
	"github.com/authgate/authgate/internal/m2m"
	"github.com/authgate/authgate/internal/rbac"
	"github.com/authgate/authgate/internal/session"
)

// In-memory repositories backing the handler tests. They implement the
// same contracts as the postgres store.

type stubRoleRepo struct {
	roles       map[string]*rbac.Role
	assignments map[string][]string // userID -> roleIDs
}

func newStubRoleRepo() *stubRoleRepo {
	return &stubRoleRepo{
		roles:       make(map[string]*rbac.Role),
		assignments: make(map[string][]string),
	}
}

func (s *stubRoleRepo) Create(_ context.Context, role *rbac.Role) error {
	for _, r := range s.roles {
		if r.Value == role.Value {
			return rbac.ErrRoleAlreadyExists
		}
	}
	s.roles[role.ID] = role
	return nil
}

func (s *stubRoleRepo) GetByID(_ context.Context, id string) (*rbac.Role, error) {
	if r, ok := s.roles[id]; ok {
		return r, nil
	}
	return nil, rbac.ErrRoleNotFound
}

func (s *stubRoleRepo) GetByValue(_ context.Context, value string) (*rbac.Role, error) {
	for _, r := range s.roles {
		if r.Value == value {
			return r, nil
		}
	}
	return nil, rbac.ErrRoleNotFound
}

func (s *stubRoleRepo) List(_ context.Context) ([]*rbac.Role, error) {
	out := make([]*rbac.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, r)
	}
	return out, nil
}

func (s *stubRoleRepo) Update(_ context.Context, role *rbac.Role) error {
	if _, ok := s.roles[role.ID]; !ok {
		return rbac.ErrRoleNotFound
	}
	s.roles[role.ID] = role
	return nil
}

func (s *stubRoleRepo) Delete(_ context.Context, id string) error {
	if _, ok := s.roles[id]; !ok {
		return rbac.ErrRoleNotFound
	}
	delete(s.roles, id)
	return nil
}

func (s *stubRoleRepo) ListDirectForUser(_ context.Context, userID string) ([]*rbac.Role, error) {
	var out []*rbac.Role
	for _, id := range s.assignments[userID] {
		if r, ok := s.roles[id]; ok && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRoleRepo) AssignToUser(_ context.Context, userID, roleID string) error {
	if !slices.Contains(s.assignments[userID], roleID) {
		s.assignments[userID] = append(s.assignments[userID], roleID)
	}
	return nil
}

func (s *stubRoleRepo) RevokeFromUser(_ context.Context, userID, roleID string) error {
	s.assignments[userID] = slices.DeleteFunc(s.assignments[userID], func(id string) bool {
		return id == roleID
	})
	return nil
}

type stubPermRepo struct {
	perms      map[string]*rbac.Permission
	roleGrants map[string][]string // roleID -> permIDs
	userGrants map[string][]string // userID -> permIDs
}

func newStubPermRepo() *stubPermRepo {
	return &stubPermRepo{
		perms:      make(map[string]*rbac.Permission),
		roleGrants: make(map[string][]string),
		userGrants: make(map[string][]string),
	}
}

func (s *stubPermRepo) Create(_ context.Context, perm *rbac.Permission) error {
	for _, p := range s.perms {
		if p.Value == perm.Value {
			return rbac.ErrPermissionAlreadyExists
		}
	}
	s.perms[perm.ID] = perm
	return nil
}

func (s *stubPermRepo) GetByID(_ context.Context, id string) (*rbac.Permission, error) {
	if p, ok := s.perms[id]; ok {
		return p, nil
	}
	return nil, rbac.ErrPermissionNotFound
}

func (s *stubPermRepo) GetByValue(_ context.Context, value string) (*rbac.Permission, error) {
	for _, p := range s.perms {
		if p.Value == value {
			return p, nil
		}
	}
	return nil, rbac.ErrPermissionNotFound
}

func (s *stubPermRepo) List(_ context.Context) ([]*rbac.Permission, error) {
	out := make([]*rbac.Permission, 0, len(s.perms))
	for _, p := range s.perms {
		out = append(out, p)
	}
	return out, nil
}

func (s *stubPermRepo) Update(_ context.Context, perm *rbac.Permission) error {
	if _, ok := s.perms[perm.ID]; !ok {
		return rbac.ErrPermissionNotFound
	}
	s.perms[perm.ID] = perm
	return nil
}

func (s *stubPermRepo) Delete(_ context.Context, id string) error {
	if _, ok := s.perms[id]; !ok {
		return rbac.ErrPermissionNotFound
	}
	delete(s.perms, id)
	return nil
}

func (s *stubPermRepo) ListValuesForRoles(_ context.Context, roleIDs []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, roleID := range roleIDs {
		for _, permID := range s.roleGrants[roleID] {
			if p, ok := s.perms[permID]; ok && !seen[p.Value] {
				seen[p.Value] = true
				out = append(out, p.Value)
			}
		}
	}
	return out, nil
}

func (s *stubPermRepo) ListValuesForUser(_ context.Context, userID string) ([]string, error) {
	var out []string
	for _, permID := range s.userGrants[userID] {
		if p, ok := s.perms[permID]; ok {
			out = append(out, p.Value)
		}
	}
	return out, nil
}

func (s *stubPermRepo) ListForRole(_ context.Context, roleID string) ([]*rbac.Permission, error) {
	var out []*rbac.Permission
	for _, permID := range s.roleGrants[roleID] {
		if p, ok := s.perms[permID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPermRepo) ListForUser(_ context.Context, userID string) ([]*rbac.Permission, error) {
	var out []*rbac.Permission
	for _, permID := range s.userGrants[userID] {
		if p, ok := s.perms[permID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPermRepo) GrantToRole(_ context.Context, roleID, permissionID string) error {
	if !slices.Contains(s.roleGrants[roleID], permissionID) {
		s.roleGrants[roleID] = append(s.roleGrants[roleID], permissionID)
	}
	return nil
}

func (s *stubPermRepo) RevokeFromRole(_ context.Context, roleID, permissionID string) error {
	s.roleGrants[roleID] = slices.DeleteFunc(s.roleGrants[roleID], func(id string) bool {
		return id == permissionID
	})
	return nil
}

func (s *stubPermRepo) GrantToUser(_ context.Context, userID, permissionID string) error {
	if !slices.Contains(s.userGrants[userID], permissionID) {
		s.userGrants[userID] = append(s.userGrants[userID], permissionID)
	}
	return nil
}

func (s *stubPermRepo) RevokeFromUser(_ context.Context, userID, permissionID string) error {
	s.userGrants[userID] = slices.DeleteFunc(s.userGrants[userID], func(id string) bool {
		return id == permissionID
	})
	return nil
}

type stubUserRepo struct {
	users map[string]*identity.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*identity.User)}
}

func (s *stubUserRepo) Create(_ context.Context, user *identity.User) error {
	for _, u := range s.users {
		if u.Email == user.Email {
			return identity.ErrUserAlreadyExists
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *stubUserRepo) GetByID(_ context.Context, id string) (*identity.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, identity.ErrUserNotFound
}

func (s *stubUserRepo) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (s *stubUserRepo) List(_ context.Context, filter identity.ListFilter) ([]*identity.User, int, error) {
	var out []*identity.User
	for _, u := range s.users {
		if filter.Query == "" ||
			strings.Contains(u.Name, filter.Query) ||
			strings.Contains(u.Email, filter.Query) {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (s *stubUserRepo) Update(_ context.Context, user *identity.User) error {
	if _, ok := s.users[user.ID]; !ok {
		return identity.ErrUserNotFound
	}
	s.users[user.ID] = user
	return nil
}

func (s *stubUserRepo) SetBan(_ context.Context, userID string, banned bool, reason *string, expires *time.Time) error {
	u, ok := s.users[userID]
	if !ok {
		return identity.ErrUserNotFound
	}
	u.Banned = banned
	u.BanReason = reason
	u.BanExpires = expires
	return nil
}

func (s *stubUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := s.users[id]; !ok {
		return identity.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

type stubSessionRepo struct {
	sessions map[string]*session.Session // by ID
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{sessions: make(map[string]*session.Session)}
}

func (s *stubSessionRepo) Create(_ context.Context, sess *session.Session) error {
	s.sessions[sess.ID] = sess
	return nil
}

func (s *stubSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*session.Session, error) {
	for _, sess := range s.sessions {
		if sess.TokenHash == tokenHash {
			return sess, nil
		}
	}
	return nil, session.ErrSessionNotFound
}

func (s *stubSessionRepo) Touch(_ context.Context, sessionID string, lastSeenAt time.Time) error {
	if sess, ok := s.sessions[sessionID]; ok {
		sess.LastSeenAt = lastSeenAt
	}
	return nil
}

func (s *stubSessionRepo) Delete(_ context.Context, sessionID string) error {
	delete(s.sessions, sessionID)
	return nil
}

func (s *stubSessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (s *stubSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	var n int64
	for id, sess := range s.sessions {
		if sess.IsExpired() {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

type stubClientRepo struct {
	clients map[string]*m2m.Client // by internal ID
}

func newStubClientRepo() *stubClientRepo {
	return &stubClientRepo{clients: make(map[string]*m2m.Client)}
}

func (s *stubClientRepo) Create(_ context.Context, client *m2m.Client) error {
	s.clients[client.ID] = client
	return nil
}

func (s *stubClientRepo) GetByID(_ context.Context, id string) (*m2m.Client, error) {
	if c, ok := s.clients[id]; ok {
		return c, nil
	}
	return nil, m2m.ErrClientNotFound
}

func (s *stubClientRepo) GetByClientID(_ context.Context, clientID string) (*m2m.Client, error) {
	for _, c := range s.clients {
		if c.ClientID == clientID {
			return c, nil
		}
	}
	return nil, m2m.ErrClientNotFound
}

func (s *stubClientRepo) List(_ context.Context) ([]*m2m.Client, error) {
	out := make([]*m2m.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out, nil
}

func (s *stubClientRepo) Update(_ context.Context, client *m2m.Client) error {
	if _, ok := s.clients[client.ID]; !ok {
		return m2m.ErrClientNotFound
	}
	s.clients[client.ID] = client
	return nil
}

func (s *stubClientRepo) Delete(_ context.Context, id string) error {
	if _, ok := s.clients[id]; !ok {
		return m2m.ErrClientNotFound
	}
	delete(s.clients, id)
	return nil
}

type stubTokenRepo struct {
	tokens map[string]*m2m.AccessToken // by hash
}

func newStubTokenRepo() *stubTokenRepo {
	return &stubTokenRepo{tokens: make(map[string]*m2m.AccessToken)}
}

func (s *stubTokenRepo) Create(_ context.Context, tok *m2m.AccessToken) error {
	s.tokens[tok.TokenHash] = tok
	return nil
}

func (s *stubTokenRepo) GetActiveByHash(_ context.Context, tokenHash string) (*m2m.AccessToken, error) {
	tok, ok := s.tokens[tokenHash]
	if !ok || !tok.ExpiresAt.After(time.Now()) {
		return nil, m2m.ErrInvalidToken
	}
	return tok, nil
}

func (s *stubTokenRepo) DeleteForClient(_ context.Context, clientID string) error {
	for hash, tok := range s.tokens {
		if tok.ClientID == clientID {
			delete(s.tokens, hash)
		}
	}
	return nil
}

func (s *stubTokenRepo) DeleteExpired(_ context.Context) (int64, error) {
	var n int64
	for hash, tok := range s.tokens {
		if !tok.ExpiresAt.After(time.Now()) {
			delete(s.tokens, hash)
			n++
		}
	}
	return n, nil
}

// testEnv wires real services over the stub repositories, seeds the
// default registry and provisions an admin and a plain user.
type testEnv struct {
	handler  *Handler
	router   http.Handler
	rbac     *rbac.Service
	identity *identity.Service
	sessions *session.Service
	registry *m2m.Registry
	issuer   *m2m.Issuer
	admin    *identity.User
	user     *identity.User
	users    *stubUserRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	roleRepo := newStubRoleRepo()
	permRepo := newStubPermRepo()
	userRepo := newStubUserRepo()
	sessionRepo := newStubSessionRepo()
	clientRepo := newStubClientRepo()
	tokenRepo := newStubTokenRepo()

	auditor := audit.NewSlogLogger()
	rbacSvc := rbac.NewService(roleRepo, permRepo, nil, auditor, nil)
	guard := rbac.NewGuard(rbacSvc, auditor, nil)
	sessionSvc := session.NewService(sessionRepo, rbacSvc, auditor, 24*time.Hour, time.Hour)
	identitySvc := identity.NewService(userRepo, rbacSvc, sessionRepo, nil, auditor)
	registry := m2m.NewRegistry(clientRepo, tokenRepo, auditor, 32, bcrypt.MinCost)
	issuer := m2m.NewIssuer(clientRepo, tokenRepo, auditor, nil, time.Hour)
	verifier := m2m.NewVerifier(clientRepo, tokenRepo, auditor, nil)

	if err := rbac.Seed(ctx, roleRepo, permRepo); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	admin, err := identitySvc.CreateUser(ctx, "test", identity.CreateUserInput{
		Name:  "Admin",
		Email: "admin@example.com",
	})
	if err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	if err := rbacSvc.AssignRole(ctx, "test", admin.ID, "admin"); err != nil {
		t.Fatalf("assign admin role failed: %v", err)
	}

	user, err := identitySvc.CreateUser(ctx, "test", identity.CreateUserInput{
		Name:  "Plain User",
		Email: "user@example.com",
	})
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	h := NewHandler(identitySvc, sessionSvc, rbacSvc, guard, registry, issuer, verifier, auditor, nil, SessionConfig{
		CookieName:     "authgate_session",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
		CookieMaxAge:   86400,
	})

	return &testEnv{
		handler:  h,
		router:   NewRouter(h, NewRateLimiter(1000, 1000)),
		rbac:     rbacSvc,
		identity: identitySvc,
		sessions: sessionSvc,
		registry: registry,
		issuer:   issuer,
		admin:    admin,
		user:     user,
		users:    userRepo,
	}
}
