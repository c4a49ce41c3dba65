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

package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/id"
	"github.com/authgate/authgate/internal/rbac"
	"github.com/authgate/authgate/internal/session"
)

// Service provides user identity management
type Service struct {
	users    UserRepository
	rbac     *rbac.Service
	sessions session.Repository
	notifier CreatedNotifier
	auditor  audit.Logger
}

// NewService creates a new identity service. notifier may be nil.
func NewService(
	users UserRepository,
	rbacService *rbac.Service,
	sessions session.Repository,
	notifier CreatedNotifier,
	auditor audit.Logger,
) *Service {
	return &Service{
		users:    users,
		rbac:     rbacService,
		sessions: sessions,
		notifier: notifier,
		auditor:  auditor,
	}
}

// CreateUserInput holds the caller-supplied user fields
type CreateUserInput struct {
	Name       string
	Email      string
	Image      string
	Properties map[string]any
}

// CreateUser creates a user, assigns the default role and notifies the
// configured webhook. Role assignment and notification are best-effort:
// the created user is returned even if they fail.
func (s *Service) CreateUser(ctx context.Context, actorID string, in CreateUserInput) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}

	now := time.Now()
	user := &User{
		ID:         id.NewUUIDv7(),
		Name:       in.Name,
		Email:      email,
		Image:      in.Image,
		Properties: in.Properties,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.rbac.AssignRole(ctx, actorID, user.ID, rbac.DefaultRole); err != nil {
		slog.ErrorContext(ctx, "failed to assign default role",
			slog.String("user_id", user.ID), slog.String("error", err.Error()))
	}

	if s.notifier != nil {
		s.notifier.NotifyUserCreated(ctx, user)
	}

	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeUserCreated,
		ActorID:  actorID,
		Resource: "user:" + user.ID,
		Metadata: map[string]any{"email": user.Email},
	})
	return user, nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.users.GetByID(ctx, userID)
}

// GetUserByEmail retrieves a user by email
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// ListUsers retrieves users matching the filter. Limit defaults to 50
// and is capped at 200.
func (s *Service) ListUsers(ctx context.Context, filter ListFilter) ([]*User, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.users.List(ctx, filter)
}

// UpdateUserInput holds updatable user fields; nil means unchanged
type UpdateUserInput struct {
	Name          *string
	Email         *string
	EmailVerified *bool
	Image         *string
	Properties    map[string]any
}

// UpdateUser applies a partial update to a user
func (s *Service) UpdateUser(ctx context.Context, actorID, userID string, in UpdateUserInput) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, ErrInvalidEmail
		}
		user.Email = email
	}
	if in.EmailVerified != nil {
		user.EmailVerified = *in.EmailVerified
	}
	if in.Image != nil {
		user.Image = *in.Image
	}
	if in.Properties != nil {
		user.Properties = in.Properties
	}
	user.UpdatedAt = time.Now()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeUserUpdated,
		ActorID:  actorID,
		Resource: "user:" + userID,
	})
	return user, nil
}

// BanUser bans a user and revokes every live session they hold.
// expires may be nil for a permanent ban.
func (s *Service) BanUser(ctx context.Context, actorID, userID, reason string, expires *time.Time) error {
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	if err := s.users.SetBan(ctx, userID, true, reasonPtr, expires); err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}

	// A banned user must not retain an authenticated session.
	if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	s.rbac.InvalidateUser(userID)

	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeUserBanned,
		ActorID:  actorID,
		Resource: "user:" + userID,
		Metadata: map[string]any{"reason": reason},
	})
	return nil
}

// UnbanUser lifts a user's ban
func (s *Service) UnbanUser(ctx context.Context, actorID, userID string) error {
	if err := s.users.SetBan(ctx, userID, false, nil, nil); err != nil {
		return fmt.Errorf("failed to unban user: %w", err)
	}
	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeUserUnbanned,
		ActorID:  actorID,
		Resource: "user:" + userID,
	})
	return nil
}

// DeleteUser removes a user, their sessions and their grants
func (s *Service) DeleteUser(ctx context.Context, actorID, userID string) error {
	if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	s.rbac.InvalidateUser(userID)

	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeUserDeleted,
		ActorID:  actorID,
		Resource: "user:" + userID,
	})
	return nil
}
