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

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/authgate/authgate/internal/rbac"
)

// PermissionRepository implements rbac.PermissionRepository
type PermissionRepository struct {
	db Querier
}

// NewPermissionRepository creates a new permission repository
func NewPermissionRepository(db Querier) *PermissionRepository {
	return &PermissionRepository{db: db}
}

const permissionColumns = `id, name, value, description, is_exclusive, created_at`

func scanPermission(row pgx.Row) (*rbac.Permission, error) {
	var perm rbac.Permission
	err := row.Scan(
		&perm.ID, &perm.Name, &perm.Value, &perm.Description,
		&perm.IsExclusive, &perm.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

// Create creates a new permission
func (r *PermissionRepository) Create(ctx context.Context, perm *rbac.Permission) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO permissions (id, name, value, description, is_exclusive, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, perm.ID, perm.Name, perm.Value, perm.Description, perm.IsExclusive, perm.CreatedAt)
	if isUniqueViolation(err) {
		return rbac.ErrPermissionAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert permission: %w", err)
	}
	return nil
}

// GetByID retrieves a permission by ID
func (r *PermissionRepository) GetByID(ctx context.Context, id string) (*rbac.Permission, error) {
	perm, err := scanPermission(r.db.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rbac.ErrPermissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	return perm, nil
}

// GetByValue retrieves a permission by its stable value
func (r *PermissionRepository) GetByValue(ctx context.Context, value string) (*rbac.Permission, error) {
	perm, err := scanPermission(r.db.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM permissions WHERE value = $1`, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rbac.ErrPermissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission by value: %w", err)
	}
	return perm, nil
}

// List retrieves all permissions
func (r *PermissionRepository) List(ctx context.Context) ([]*rbac.Permission, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+permissionColumns+` FROM permissions ORDER BY value ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// Update updates permission fields
func (r *PermissionRepository) Update(ctx context.Context, perm *rbac.Permission) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE permissions
		SET name = $2, description = $3, is_exclusive = $4
		WHERE id = $1
	`, perm.ID, perm.Name, perm.Description, perm.IsExclusive)
	if err != nil {
		return fmt.Errorf("failed to update permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrPermissionNotFound
	}
	return nil
}

// Delete removes a permission; grants cascade
func (r *PermissionRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrPermissionNotFound
	}
	return nil
}

// ListValuesForRoles retrieves distinct permission values granted to any of the roles
func (r *PermissionRepository) ListValuesForRoles(ctx context.Context, roleIDs []string) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT p.value
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ANY($1)
	`, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permission values: %w", err)
	}
	defer rows.Close()
	return collectValues(rows)
}

// ListValuesForUser retrieves permission values granted directly to a user
func (r *PermissionRepository) ListValuesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.value
		FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user permission values: %w", err)
	}
	defer rows.Close()
	return collectValues(rows)
}

// ListForRole retrieves permissions granted to a role
func (r *PermissionRepository) ListForRole(ctx context.Context, roleID string) ([]*rbac.Permission, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.name, p.value, p.description, p.is_exclusive, p.created_at
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.value ASC
	`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// ListForUser retrieves permissions granted directly to a user
func (r *PermissionRepository) ListForUser(ctx context.Context, userID string) ([]*rbac.Permission, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.name, p.value, p.description, p.is_exclusive, p.created_at
		FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1
		ORDER BY p.value ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user permissions: %w", err)
	}
	defer rows.Close()
	return collectPermissions(rows)
}

// GrantToRole grants a permission to a role, no-op if already granted
func (r *PermissionRepository) GrantToRole(ctx context.Context, roleID, permissionID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to grant permission to role: %w", err)
	}
	return nil
}

// RevokeFromRole removes a role-permission grant
func (r *PermissionRepository) RevokeFromRole(ctx context.Context, roleID, permissionID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`,
		roleID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to revoke permission from role: %w", err)
	}
	return nil
}

// GrantToUser grants a permission directly to a user, no-op if already granted
func (r *PermissionRepository) GrantToUser(ctx context.Context, userID, permissionID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_permissions (user_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to grant permission to user: %w", err)
	}
	return nil
}

// RevokeFromUser removes a direct user-permission grant
func (r *PermissionRepository) RevokeFromUser(ctx context.Context, userID, permissionID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`,
		userID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to revoke permission from user: %w", err)
	}
	return nil
}

func collectPermissions(rows pgx.Rows) ([]*rbac.Permission, error) {
	var perms []*rbac.Permission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permissions: %w", err)
	}
	return perms, nil
}

func collectValues(rows pgx.Rows) ([]string, error) {
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan permission value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permission values: %w", err)
	}
	return values, nil
}
