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

// Package rbac implements role-based access control with hierarchical
// role inheritance, permission grants and a resolution engine.
package rbac

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Domain errors
var (
	ErrRoleNotFound             = errors.New("role not found")
	ErrRoleAlreadyExists        = errors.New("role already exists")
	ErrPermissionNotFound       = errors.New("permission not found")
	ErrPermissionAlreadyExists  = errors.New("permission already exists")
	ErrAccessDenied             = errors.New("access denied")
	ErrInvalidPermissionValue   = errors.New("invalid permission value")
	ErrInheritanceCycle         = errors.New("role inheritance cycle")
	ErrInheritanceDepthExceeded = errors.New("role inheritance depth exceeded")
)

// Role is a named grant bundle. Roles form a single-parent hierarchy:
// a role inherits every permission of its parent chain.
// Lower Order means higher priority; 0 is treated as unset.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`  // display name, e.g. "Super Admin"
	Value       string    `json:"value"` // stable slug, e.g. "super_admin"
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	Order       int       `json:"order"`
	ParentID    *string   `json:"parent_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EffectiveOrder returns the sort priority, mapping unset (0) to the
// lowest priority so explicitly ordered roles always come first.
func (r *Role) EffectiveOrder() int {
	if r.Order == 0 {
		return 999
	}
	return r.Order
}

// Permission is a single grantable capability identified by a
// "resource:action" value such as "user:create".
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`  // display name, e.g. "User Create"
	Value       string    `json:"value"` // stable value, e.g. "user:create"
	Description string    `json:"description,omitempty"`
	IsExclusive bool      `json:"is_exclusive"` // exclusive permissions can only be granted directly to users
	CreatedAt   time.Time `json:"created_at"`
}

// ValidatePermissionValue checks the "resource:action" shape.
func ValidatePermissionValue(value string) error {
	resource, action, ok := strings.Cut(value, ":")
	if !ok || resource == "" || action == "" {
		return ErrInvalidPermissionValue
	}
	return nil
}

// RoleRepository defines persistence for roles and user-role assignments
type RoleRepository interface {
	// Create creates a new role
	Create(ctx context.Context, role *Role) error

	// GetByID retrieves a role by ID
	GetByID(ctx context.Context, id string) (*Role, error)

	// GetByValue retrieves a role by its stable value
	GetByValue(ctx context.Context, value string) (*Role, error)

	// List retrieves all roles
	List(ctx context.Context) ([]*Role, error)

	// Update updates role fields
	Update(ctx context.Context, role *Role) error

	// Delete removes a role and cascades its grants
	Delete(ctx context.Context, id string) error

	// ListDirectForUser retrieves active roles directly assigned to a user
	ListDirectForUser(ctx context.Context, userID string) ([]*Role, error)

	// AssignToUser assigns a role to a user, no-op if already assigned
	AssignToUser(ctx context.Context, userID, roleID string) error

	// RevokeFromUser removes a user-role assignment
	RevokeFromUser(ctx context.Context, userID, roleID string) error
}

// PermissionRepository defines persistence for permissions and grants
type PermissionRepository interface {
	// Create creates a new permission
	Create(ctx context.Context, perm *Permission) error

	// GetByID retrieves a permission by ID
	GetByID(ctx context.Context, id string) (*Permission, error)

	// GetByValue retrieves a permission by its stable value
	GetByValue(ctx context.Context, value string) (*Permission, error)

	// List retrieves all permissions
	List(ctx context.Context) ([]*Permission, error)

	// Update updates permission fields
	Update(ctx context.Context, perm *Permission) error

	// Delete removes a permission and cascades its grants
	Delete(ctx context.Context, id string) error

	// ListValuesForRoles retrieves distinct permission values granted to any of the roles
	ListValuesForRoles(ctx context.Context, roleIDs []string) ([]string, error)

	// ListValuesForUser retrieves permission values granted directly to a user
	ListValuesForUser(ctx context.Context, userID string) ([]string, error)

	// ListForRole retrieves permissions granted to a role
	ListForRole(ctx context.Context, roleID string) ([]*Permission, error)

	// ListForUser retrieves permissions granted directly to a user
	ListForUser(ctx context.Context, userID string) ([]*Permission, error)

	// GrantToRole grants a permission to a role, no-op if already granted
	GrantToRole(ctx context.Context, roleID, permissionID string) error

	// RevokeFromRole removes a role-permission grant
	RevokeFromRole(ctx context.Context, roleID, permissionID string) error

	// GrantToUser grants a permission directly to a user, no-op if already granted
	GrantToUser(ctx context.Context, userID, permissionID string) error

	// RevokeFromUser removes a direct user-permission grant
	RevokeFromUser(ctx context.Context, userID, permissionID string) error
}
