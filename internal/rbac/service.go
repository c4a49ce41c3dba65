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

package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/id"
	"github.com/authgate/authgate/internal/observability/metrics"
)

// Service provides role and permission management plus resolution
type Service struct {
	roles   RoleRepository
	perms   PermissionRepository
	cache   *ResolutionCache
	auditor audit.Logger
	metrics *metrics.Metrics
}

// NewService creates a new RBAC service. cache and m may be nil.
func NewService(
	roles RoleRepository,
	perms PermissionRepository,
	cache *ResolutionCache,
	auditor audit.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		roles:   roles,
		perms:   perms,
		cache:   cache,
		auditor: auditor,
		metrics: m,
	}
}

// CreateRoleInput holds the caller-supplied role fields
type CreateRoleInput struct {
	Name        string
	Value       string
	Description string
	Order       int
	ParentID    *string
}

// CreateRole creates a new role
func (s *Service) CreateRole(ctx context.Context, actorID string, in CreateRoleInput) (*Role, error) {
	if in.ParentID != nil {
		if err := s.checkNoCycle(ctx, "", *in.ParentID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	role := &Role{
		ID:          id.NewUUIDv7(),
		Name:        in.Name,
		Value:       in.Value,
		Description: in.Description,
		IsActive:    true,
		Order:       in.Order,
		ParentID:    in.ParentID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeRoleCreated,
		ActorID:  actorID,
		Resource: "role:" + role.ID,
		Metadata: map[string]any{"value": role.Value},
	})
	return role, nil
}

// GetRole retrieves a role by ID
func (s *Service) GetRole(ctx context.Context, roleID string) (*Role, error) {
	return s.roles.GetByID(ctx, roleID)
}

// ListRoles retrieves all roles
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.roles.List(ctx)
}

// UpdateRoleInput holds updatable role fields; nil means unchanged
type UpdateRoleInput struct {
	Name        *string
	Description *string
	IsActive    *bool
	Order       *int
	ParentID    *string
	ClearParent bool
}

// UpdateRole applies a partial update to a role
func (s *Service) UpdateRole(ctx context.Context, actorID, roleID string, in UpdateRoleInput) (*Role, error) {
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		role.Name = *in.Name
	}
	if in.Description != nil {
		role.Description = *in.Description
	}
	if in.IsActive != nil {
		role.IsActive = *in.IsActive
	}
	if in.Order != nil {
		role.Order = *in.Order
	}
	if in.ClearParent {
		role.ParentID = nil
	} else if in.ParentID != nil {
		if err := s.checkNoCycle(ctx, roleID, *in.ParentID); err != nil {
			return nil, err
		}
		role.ParentID = in.ParentID
	}
	role.UpdatedAt = time.Now()

	if err := s.roles.Update(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	// Role changes can affect every user; drop the whole cache.
	s.cache.Purge()

	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeRoleUpdated,
		ActorID:  actorID,
		Resource: "role:" + roleID,
	})
	return role, nil
}

// DeleteRole removes a role; grants and assignments cascade in storage
func (s *Service) DeleteRole(ctx context.Context, actorID, roleID string) error {
	if err := s.roles.Delete(ctx, roleID); err != nil {
		return err
	}
	s.cache.Purge()
	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeRoleDeleted,
		ActorID:  actorID,
		Resource: "role:" + roleID,
	})
	return nil
}

// checkNoCycle walks up from parentID and fails if it reaches roleID.
// roleID is "" when the role does not exist yet.
func (s *Service) checkNoCycle(ctx context.Context, roleID, parentID string) error {
	current := parentID
	for depth := 0; depth < MaxInheritanceDepth; depth++ {
		if current == roleID {
			return ErrInheritanceCycle
		}
		parent, err := s.roles.GetByID(ctx, current)
		if err != nil {
			return err
		}
		if parent.ParentID == nil {
			return nil
		}
		current = *parent.ParentID
	}
	return ErrInheritanceDepthExceeded
}

// AssignRole assigns a role to a user by role value. Missing roles are
// logged and skipped so callers on the signup path never fail.
func (s *Service) AssignRole(ctx context.Context, actorID, userID, roleValue string) error {
	role, err := s.roles.GetByValue(ctx, roleValue)
	if err != nil {
		slog.WarnContext(ctx, "role not found, skipping assignment",
			slog.String("role", roleValue), slog.String("user_id", userID))
		return nil
	}
	if err := s.roles.AssignToUser(ctx, userID, role.ID); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	s.cache.Invalidate(userID)
	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeRoleAssigned,
		ActorID:  actorID,
		Resource: "user:" + userID,
		Metadata: map[string]any{"role": roleValue},
	})
	return nil
}

// RevokeRole removes a user's role assignment by role value
func (s *Service) RevokeRole(ctx context.Context, actorID, userID, roleValue string) error {
	role, err := s.roles.GetByValue(ctx, roleValue)
	if err != nil {
		return err
	}
	if err := s.roles.RevokeFromUser(ctx, userID, role.ID); err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	s.cache.Invalidate(userID)
	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypeRoleRevoked,
		ActorID:  actorID,
		Resource: "user:" + userID,
		Metadata: map[string]any{"role": roleValue},
	})
	return nil
}

// CreatePermissionInput holds the caller-supplied permission fields
type CreatePermissionInput struct {
	Name        string
	Value       string
	Description string
	IsExclusive bool
}

// CreatePermission creates a new permission
func (s *Service) CreatePermission(ctx context.Context, actorID string, in CreatePermissionInput) (*Permission, error) {
	if err := ValidatePermissionValue(in.Value); err != nil {
		return nil, err
	}
	perm := &Permission{
		ID:          id.NewUUIDv7(),
		Name:        in.Name,
		Value:       in.Value,
		Description: in.Description,
		IsExclusive: in.IsExclusive,
		CreatedAt:   time.Now(),
	}
	if err := s.perms.Create(ctx, perm); err != nil {
		return nil, fmt.Errorf("failed to create permission: %w", err)
	}
	return perm, nil
}

// GetPermission retrieves a permission by ID
func (s *Service) GetPermission(ctx context.Context, permID string) (*Permission, error) {
	return s.perms.GetByID(ctx, permID)
}

// ListPermissions retrieves all permissions
func (s *Service) ListPermissions(ctx context.Context) ([]*Permission, error) {
	return s.perms.List(ctx)
}

// UpdatePermissionInput holds updatable permission fields; nil means unchanged
type UpdatePermissionInput struct {
	Name        *string
	Description *string
	IsExclusive *bool
}

// UpdatePermission applies a partial update to a permission
func (s *Service) UpdatePermission(ctx context.Context, actorID, permID string, in UpdatePermissionInput) (*Permission, error) {
	perm, err := s.perms.GetByID(ctx, permID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		perm.Name = *in.Name
	}
	if in.Description != nil {
		perm.Description = *in.Description
	}
	if in.IsExclusive != nil {
		perm.IsExclusive = *in.IsExclusive
	}
	if err := s.perms.Update(ctx, perm); err != nil {
		return nil, fmt.Errorf("failed to update permission: %w", err)
	}
	s.cache.Purge()
	return perm, nil
}

// DeletePermission removes a permission; grants cascade in storage
func (s *Service) DeletePermission(ctx context.Context, actorID, permID string) error {
	if err := s.perms.Delete(ctx, permID); err != nil {
		return err
	}
	s.cache.Purge()
	return nil
}

// ListRolePermissions retrieves the permissions granted to a role
func (s *Service) ListRolePermissions(ctx context.Context, roleID string) ([]*Permission, error) {
	return s.perms.ListForRole(ctx, roleID)
}

// ListUserPermissions retrieves the permissions granted directly to a user
func (s *Service) ListUserPermissions(ctx context.Context, userID string) ([]*Permission, error) {
	return s.perms.ListForUser(ctx, userID)
}

// GrantPermissionToRole grants a permission to a role
func (s *Service) GrantPermissionToRole(ctx context.Context, actorID, roleID, permID string) error {
	if err := s.perms.GrantToRole(ctx, roleID, permID); err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	s.cache.Purge()
	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypePermissionGranted,
		ActorID:  actorID,
		Resource: "role:" + roleID,
		Metadata: map[string]any{"permission_id": permID},
	})
	return nil
}

// RevokePermissionFromRole removes a role-permission grant
func (s *Service) RevokePermissionFromRole(ctx context.Context, actorID, roleID, permID string) error {
	if err := s.perms.RevokeFromRole(ctx, roleID, permID); err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
	}
	s.cache.Purge()
	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypePermissionRevoked,
		ActorID:  actorID,
		Resource: "role:" + roleID,
		Metadata: map[string]any{"permission_id": permID},
	})
	return nil
}

// GrantPermissionToUser grants a permission directly to a user
func (s *Service) GrantPermissionToUser(ctx context.Context, actorID, userID, permID string) error {
	if err := s.perms.GrantToUser(ctx, userID, permID); err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}
	s.cache.Invalidate(userID)
	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypePermissionGranted,
		ActorID:  actorID,
		Resource: "user:" + userID,
		Metadata: map[string]any{"permission_id": permID},
	})
	return nil
}

// RevokePermissionFromUser removes a direct user-permission grant
func (s *Service) RevokePermissionFromUser(ctx context.Context, actorID, userID, permID string) error {
	if err := s.perms.RevokeFromUser(ctx, userID, permID); err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
	}
	s.cache.Invalidate(userID)
	s.auditor.Log(ctx, audit.Event{
		Type:     audit.TypePermissionRevoked,
		ActorID:  actorID,
		Resource: "user:" + userID,
		Metadata: map[string]any{"permission_id": permID},
	})
	return nil
}

// InvalidateUser drops a user's cached resolution
func (s *Service) InvalidateUser(userID string) {
	s.cache.Invalidate(userID)
}
