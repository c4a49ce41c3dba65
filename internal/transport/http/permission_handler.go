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

// ListPermissions returns all registered permissions
// @Summary List permissions
// @Tags permissions
// @Produce json
// @Security CookieAuth
// @Success 200 {array} rbac.Permission
// @Router /admin/permissions [get]
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.rbacService.ListPermissions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list permissions")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"permissions": perms,
	})
}

// CreatePermission registers a new permission value
// @Summary Create permission
// @Tags permissions
// @Accept json
// @Produce json
// @Security CookieAuth
// @Success 201 {object} rbac.Permission
// @Router /admin/permissions [post]
func (h *Handler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Value       string `json:"value"`
		Description string `json:"description"`
		IsExclusive bool   `json:"is_exclusive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	perm, err := h.rbacService.CreatePermission(r.Context(), GetUserID(r.Context()), rbac.CreatePermissionInput{
		Name:        req.Name,
		Value:       req.Value,
		Description: req.Description,
		IsExclusive: req.IsExclusive,
	})
	if err != nil {
		switch {
		case errors.Is(err, rbac.ErrInvalidPermissionValue):
			respondError(w, http.StatusBadRequest, "permission value must be resource:action")
		case errors.Is(err, rbac.ErrPermissionAlreadyExists):
			respondError(w, http.StatusConflict, "permission already exists")
		default:
			respondError(w, http.StatusInternalServerError, "failed to create permission")
		}
		return
	}

	respondJSON(w, http.StatusCreated, perm)
}

// GetPermission returns a single permission
// @Summary Get permission
// @Tags permissions
// @Produce json
// @Security CookieAuth
// @Success 200 {object} rbac.Permission
// @Router /admin/permissions/{permissionID} [get]
func (h *Handler) GetPermission(w http.ResponseWriter, r *http.Request) {
	perm, err := h.rbacService.GetPermission(r.Context(), chi.URLParam(r, "permissionID"))
	if err != nil {
		if errors.Is(err, rbac.ErrPermissionNotFound) {
			respondError(w, http.StatusNotFound, "permission not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get permission")
		return
	}
	respondJSON(w, http.StatusOK, perm)
}

// UpdatePermission applies a partial update to a permission
// @Summary Update permission
// @Tags permissions
// @Accept json
// @Produce json
// @Security CookieAuth
// @Success 200 {object} rbac.Permission
// @Router /admin/permissions/{permissionID} [put]
func (h *Handler) UpdatePermission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		IsExclusive *bool   `json:"is_exclusive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	perm, err := h.rbacService.UpdatePermission(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "permissionID"), rbac.UpdatePermissionInput{
		Name:        req.Name,
		Description: req.Description,
		IsExclusive: req.IsExclusive,
	})
	if err != nil {
		if errors.Is(err, rbac.ErrPermissionNotFound) {
			respondError(w, http.StatusNotFound, "permission not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update permission")
		return
	}

	respondJSON(w, http.StatusOK, perm)
}

// DeletePermission removes a permission
// @Summary Delete permission
// @Tags permissions
// @Security CookieAuth
// @Success 204
// @Router /admin/permissions/{permissionID} [delete]
func (h *Handler) DeletePermission(w http.ResponseWriter, r *http.Request) {
	err := h.rbacService.DeletePermission(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "permissionID"))
	if err != nil {
		if errors.Is(err, rbac.ErrPermissionNotFound) {
			respondError(w, http.StatusNotFound, "permission not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete permission")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
