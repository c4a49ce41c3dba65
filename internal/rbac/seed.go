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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/authgate/authgate/internal/id"
)

// Built-in role values.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"

	// DefaultRole is the role assigned to every newly created user.
	DefaultRole = "user"
)

// Built-in permission values.
const (
	PermUserCreate        = "user:create"
	PermUserRead          = "user:read"
	PermUserUpdate        = "user:update"
	PermUserDelete        = "user:delete"
	PermUserList          = "user:list"
	PermUserSetRole       = "user:set-role"
	PermUserSetPermission = "user:set-permission"
	PermUserBan           = "user:ban"
	PermUserImpersonate   = "user:impersonate"
	PermUserSetPassword   = "user:set-password"

	PermSystemManageSettings = "system:manage_settings"

	PermRoleCreate = "role:create"
	PermRoleRead   = "role:read"
	PermRoleUpdate = "role:update"
	PermRoleDelete = "role:delete"
	PermRoleList   = "role:list"

	PermPermissionCreate = "permission:create"
	PermPermissionRead   = "permission:read"
	PermPermissionUpdate = "permission:update"
	PermPermissionDelete = "permission:delete"
	PermPermissionList   = "permission:list"
)

// DefaultPermissions is the built-in permission registry.
var DefaultPermissions = []string{
	PermUserCreate,
	PermUserRead,
	PermUserUpdate,
	PermUserDelete,
	PermUserList,
	PermUserSetRole,
	PermUserSetPermission,
	PermUserBan,
	PermUserImpersonate,
	PermUserSetPassword,
	PermSystemManageSettings,
	PermRoleCreate,
	PermRoleRead,
	PermRoleUpdate,
	PermRoleDelete,
	PermRoleList,
	PermPermissionCreate,
	PermPermissionRead,
	PermPermissionUpdate,
	PermPermissionDelete,
	PermPermissionList,
}

// DefaultRoles are the built-in roles in priority order.
var DefaultRoles = []string{RoleSuperAdmin, RoleAdmin, DefaultRole}

// Seed installs the default permission and role registry. It is
// idempotent: existing rows keep their grants, only role order is
// refreshed. super_admin inherits from admin, and admin is granted
// every default permission.
func Seed(ctx context.Context, roles RoleRepository, perms PermissionRepository) error {
	for _, value := range DefaultPermissions {
		resource, action, _ := strings.Cut(value, ":")
		perm := &Permission{
			ID:          id.NewUUIDv7(),
			Name:        titleWords(resource) + " " + titleWords(action),
			Value:       value,
			Description: fmt.Sprintf("Allow %s on %s", action, resource),
			CreatedAt:   time.Now(),
		}
		if err := perms.Create(ctx, perm); err != nil && !errors.Is(err, ErrPermissionAlreadyExists) {
			return fmt.Errorf("failed to seed permission %s: %w", value, err)
		}
	}

	for i, value := range DefaultRoles {
		order := i + 1
		existing, err := roles.GetByValue(ctx, value)
		if err == nil {
			existing.Order = order
			existing.UpdatedAt = time.Now()
			if err := roles.Update(ctx, existing); err != nil {
				return fmt.Errorf("failed to refresh role %s: %w", value, err)
			}
			continue
		}
		if !errors.Is(err, ErrRoleNotFound) {
			return fmt.Errorf("failed to look up role %s: %w", value, err)
		}
		now := time.Now()
		role := &Role{
			ID:          id.NewUUIDv7(),
			Name:        titleWords(value),
			Value:       value,
			Description: titleWords(value) + " role",
			IsActive:    true,
			Order:       order,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := roles.Create(ctx, role); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", value, err)
		}
	}

	admin, err := roles.GetByValue(ctx, RoleAdmin)
	if err != nil {
		return fmt.Errorf("admin role missing after seed: %w", err)
	}

	// super_admin inherits everything admin holds.
	superAdmin, err := roles.GetByValue(ctx, RoleSuperAdmin)
	if err != nil {
		return fmt.Errorf("super_admin role missing after seed: %w", err)
	}
	if superAdmin.ParentID == nil {
		superAdmin.ParentID = &admin.ID
		superAdmin.UpdatedAt = time.Now()
		if err := roles.Update(ctx, superAdmin); err != nil {
			return fmt.Errorf("failed to link super_admin to admin: %w", err)
		}
	}

	all, err := perms.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list permissions: %w", err)
	}
	for _, perm := range all {
		if err := perms.GrantToRole(ctx, admin.ID, perm.ID); err != nil {
			return fmt.Errorf("failed to grant %s to admin: %w", perm.Value, err)
		}
	}

	slog.InfoContext(ctx, "seeded default registry",
		slog.Int("permissions", len(DefaultPermissions)),
		slog.Int("roles", len(DefaultRoles)))
	return nil
}

// titleWords renders a slug like "super_admin" as "Super Admin".
func titleWords(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
