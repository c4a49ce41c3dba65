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

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/id"
	"github.com/authgate/authgate/internal/rbac"
	"github.com/authgate/authgate/internal/token"
)

const sessionTokenBytes = 32

// AuthSession is a session augmented with resolved authorization state.
type AuthSession struct {
	SessionID   string   `json:"session_id"`
	UserID      string   `json:"user_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	PrimaryRole string   `json:"primary_role"`
}

// Service provides session lifecycle and augmentation
type Service struct {
	sessions    Repository
	rbac        *rbac.Service
	auditor     audit.Logger
	lifetime    time.Duration
	idleTimeout time.Duration
}

// NewService creates a new session service
func NewService(
	sessions Repository,
	rbacService *rbac.Service,
	auditor audit.Logger,
	lifetime, idleTimeout time.Duration,
) *Service {
	return &Service{
		sessions:    sessions,
		rbac:        rbacService,
		auditor:     auditor,
		lifetime:    lifetime,
		idleTimeout: idleTimeout,
	}
}

// Create starts a session for a user and returns the bearer value.
// The value is shown exactly once; only its hash is stored.
func (s *Service) Create(ctx context.Context, userID, ipAddress, userAgent string) (*Session, string, error) {
	value, err := token.Generate(sessionTokenBytes)
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	sess := &Session{
		ID:         id.NewUUIDv7(),
		UserID:     userID,
		TokenHash:  token.Hash(value),
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		ExpiresAt:  now.Add(s.lifetime),
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}
	return sess, value, nil
}

// Validate resolves a bearer value to a live session and touches its
// last seen time. Expired or idle sessions are removed on sight.
func (s *Service) Validate(ctx context.Context, value string) (*Session, error) {
	sess, err := s.sessions.GetByTokenHash(ctx, token.Hash(value))
	if err != nil {
		return nil, err
	}
	if sess.IsExpired() || sess.IsIdle(s.idleTimeout) {
		_ = s.sessions.Delete(ctx, sess.ID)
		return nil, ErrSessionExpired
	}

	now := time.Now()
	if err := s.sessions.Touch(ctx, sess.ID, now); err != nil {
		return nil, fmt.Errorf("failed to touch session: %w", err)
	}
	sess.LastSeenAt = now
	return sess, nil
}

// Augment attaches the user's resolved roles and permissions to a
// session. Users with no roles fall back to the default role so every
// authenticated caller has a usable primary role.
func (s *Service) Augment(ctx context.Context, sess *Session) (*AuthSession, error) {
	res, err := s.rbac.Resolve(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve authorization state: %w", err)
	}

	roles := res.RoleValues()
	primary := res.PrimaryRole()
	if primary == "" {
		primary = rbac.DefaultRole
		roles = []string{rbac.DefaultRole}
	}

	perms := res.Permissions
	if perms == nil {
		perms = []string{}
	}
	return &AuthSession{
		SessionID:   sess.ID,
		UserID:      sess.UserID,
		Roles:       roles,
		Permissions: perms,
		PrimaryRole: primary,
	}, nil
}

// Revoke deletes a single session
func (s *Service) Revoke(ctx context.Context, actorID, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeSessionRevoked,
		ActorID:  actorID,
		Resource: "session:" + sessionID,
	})
	return nil
}

// RevokeAllForUser deletes every session a user holds
func (s *Service) RevokeAllForUser(ctx context.Context, actorID, userID string) error {
	if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
		return err
	}
	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeSessionRevoked,
		ActorID:  actorID,
		Resource: "user:" + userID,
	})
	return nil
}

// CleanupExpired removes expired sessions and reports how many.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx)
}
