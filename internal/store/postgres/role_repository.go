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

// RoleRepository implements rbac.RoleRepository
type RoleRepository struct {
	db Querier
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db Querier) *RoleRepository {
	return &RoleRepository{db: db}
}

const roleColumns = `id, name, value, description, is_active, "order", parent_id, created_at, updated_at`

func scanRole(row pgx.Row) (*rbac.Role, error) {
	var role rbac.Role
	err := row.Scan(
		&role.ID, &role.Name, &role.Value, &role.Description,
		&role.IsActive, &role.Order, &role.ParentID,
		&role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// Create creates a new role
func (r *RoleRepository) Create(ctx context.Context, role *rbac.Role) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO roles (id, name, value, description, is_active, "order", parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, role.ID, role.Name, role.Value, role.Description, role.IsActive,
		role.Order, role.ParentID, role.CreatedAt, role.UpdatedAt)
	if isUniqueViolation(err) {
		return rbac.ErrRoleAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert role: %w", err)
	}
	return nil
}

// GetByID retrieves a role by ID
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*rbac.Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rbac.ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetByValue retrieves a role by its stable value
func (r *RoleRepository) GetByValue(ctx context.Context, value string) (*rbac.Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE value = $1`, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, rbac.ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role by value: %w", err)
	}
	return role, nil
}

// List retrieves all roles ordered by priority
func (r *RoleRepository) List(ctx context.Context) ([]*rbac.Role, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+roleColumns+` FROM roles ORDER BY "order" ASC, value ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*rbac.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}

// Update updates role fields
func (r *RoleRepository) Update(ctx context.Context, role *rbac.Role) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE roles
		SET name = $2, description = $3, is_active = $4, "order" = $5, parent_id = $6, updated_at = $7
		WHERE id = $1
	`, role.ID, role.Name, role.Description, role.IsActive, role.Order, role.ParentID, role.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrRoleNotFound
	}
	return nil
}

// Delete removes a role; grants and assignments cascade
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return rbac.ErrRoleNotFound
	}
	return nil
}

// ListDirectForUser retrieves active roles directly assigned to a user
func (r *RoleRepository) ListDirectForUser(ctx context.Context, userID string) ([]*rbac.Role, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.name, r.value, r.description, r.is_active, r."order", r.parent_id, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 AND r.is_active = TRUE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}
	defer rows.Close()

	var roles []*rbac.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roles: %w", err)
	}
	return roles, nil
}

// AssignToUser assigns a role to a user, no-op if already assigned
func (r *RoleRepository) AssignToUser(ctx context.Context, userID, roleID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// RevokeFromUser removes a user-role assignment
func (r *RoleRepository) RevokeFromUser(ctx context.Context, userID, roleID string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	return nil
}
