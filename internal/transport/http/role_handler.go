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
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/authgate/authgate/internal/rbac"
)

// ListRoles returns all roles sorted by priority
// @Summary List roles
// @Tags roles
// @Produce json
// @Security CookieAuth
// @Success 200 {array} rbac.Role
// @Router /admin/roles [get]
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.rbacService.ListRoles(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list roles")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"roles": roles,
	})
}

// CreateRole creates a new role
// @Summary Create role
// @Tags roles
// @Accept json
// @Produce json
// @Security CookieAuth
// @Success 201 {object} rbac.Role
// @Router /admin/roles [post]
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string  `json:"name"`
		Value       string  `json:"value"`
		Description string  `json:"description"`
		Order       int     `json:"order"`
		ParentID    *string `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Value == "" {
		respondError(w, http.StatusBadRequest, "role value is required")
		return
	}

	role, err := h.rbacService.CreateRole(r.Context(), GetUserID(r.Context()), rbac.CreateRoleInput{
		Name:        req.Name,
		Value:       req.Value,
		Description: req.Description,
		Order:       req.Order,
		ParentID:    req.ParentID,
	})
	if err != nil {
		switch {
		case errors.Is(err, rbac.ErrRoleAlreadyExists):
			respondError(w, http.StatusConflict, "role already exists")
		case errors.Is(err, rbac.ErrRoleNotFound):
			respondError(w, http.StatusBadRequest, "parent role not found")
		case errors.Is(err, rbac.ErrInheritanceCycle), errors.Is(err, rbac.ErrInheritanceDepthExceeded):
			respondError(w, http.StatusBadRequest, "invalid role inheritance")
		default:
			respondError(w, http.StatusInternalServerError, "failed to create role")
		}
		return
	}

	respondJSON(w, http.StatusCreated, role)
}

// GetRole returns a single role
// @Summary Get role
// @Tags roles
// @Produce json
// @Security CookieAuth
// @Success 200 {object} rbac.Role
// @Router /admin/roles/{roleID} [get]
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	role, err := h.rbacService.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			respondError(w, http.StatusNotFound, "role not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get role")
		return
	}
	respondJSON(w, http.StatusOK, role)
}

// UpdateRole applies a partial update to a role. Reparenting is
// validated against inheritance cycles before it is persisted.
// @Summary Update role
// @Tags roles
// @Accept json
// @Produce json
// @Security CookieAuth
// @Success 200 {object} rbac.Role
// @Router /admin/roles/{roleID} [put]
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		IsActive    *bool   `json:"is_active"`
		Order       *int    `json:"order"`
		ParentID    *string `json:"parent_id"`
		ClearParent bool    `json:"clear_parent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	role, err := h.rbacService.UpdateRole(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "roleID"), rbac.UpdateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
		Order:       req.Order,
		ParentID:    req.ParentID,
		ClearParent: req.ClearParent,
	})
	if err != nil {
		switch {
		case errors.Is(err, rbac.ErrRoleNotFound):
			respondError(w, http.StatusNotFound, "role not found")
		case errors.Is(err, rbac.ErrInheritanceCycle), errors.Is(err, rbac.ErrInheritanceDepthExceeded):
			respondError(w, http.StatusBadRequest, "invalid role inheritance")
		default:
			respondError(w, http.StatusInternalServerError, "failed to update role")
		}
		return
	}

	respondJSON(w, http.StatusOK, role)
}

// DeleteRole removes a role
// @Summary Delete role
// @Tags roles
// @Security CookieAuth
// @Success 204
// @Router /admin/roles/{roleID} [delete]
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	err := h.rbacService.DeleteRole(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "roleID"))
	if err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			respondError(w, http.StatusNotFound, "role not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete role")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRolePermissions returns the permissions granted to a role
// @Summary List role permissions
// @Tags roles
// @Produce json
// @Security CookieAuth
// @Success 200 {array} rbac.Permission
// @Router /admin/roles/{roleID}/permissions [get]
func (h *Handler) ListRolePermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.rbacService.ListRolePermissions(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			respondError(w, http.StatusNotFound, "role not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to list role permissions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"permissions": perms,
	})
}

// GrantRolePermission grants a permission to a role
// @Summary Grant role permission
// @Tags roles
// @Accept json
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Router /admin/roles/{roleID}/permissions [post]
func (h *Handler) GrantRolePermission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PermissionID string `json:"permission_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PermissionID == "" {
		respondError(w, http.StatusBadRequest, "permission_id is required")
		return
	}

	err := h.rbacService.GrantPermissionToRole(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "roleID"), req.PermissionID)
	if err != nil {
		switch {
		case errors.Is(err, rbac.ErrRoleNotFound):
			respondError(w, http.StatusNotFound, "role not found")
		case errors.Is(err, rbac.ErrPermissionNotFound):
			respondError(w, http.StatusNotFound, "permission not found")
		default:
			respondError(w, http.StatusInternalServerError, "failed to grant permission")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "permission granted",
	})
}

// RevokeRolePermission removes a permission from a role
// @Summary Revoke role permission
// @Tags roles
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Router /admin/roles/{roleID}/permissions/{permissionID} [delete]
func (h *Handler) RevokeRolePermission(w http.ResponseWriter, r *http.Request) {
	err := h.rbacService.RevokePermissionFromRole(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "roleID"), chi.URLParam(r, "permissionID"))
	if err != nil {
		switch {
		case errors.Is(err, rbac.ErrRoleNotFound):
			respondError(w, http.StatusNotFound, "role not found")
		case errors.Is(err, rbac.ErrPermissionNotFound):
			respondError(w, http.StatusNotFound, "permission not found")
		default:
			respondError(w, http.StatusInternalServerError, "failed to revoke permission")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "permission revoked",
	})
}
