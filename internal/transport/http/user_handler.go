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
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/authgate/authgate/internal/identity"
	"github.com/authgate/authgate/internal/rbac"
)

// ListUsers returns a paginated user listing
// @Summary List users
// @Tags users
// @Produce json
// @Param q query string false "Search by name or email"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Security CookieAuth
// @Success 200 {object} map[string]any
// @Router /admin/users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	filter := identity.ListFilter{
		Query: r.URL.Query().Get("q"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	users, total, err := h.identityService.ListUsers(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"total": total,
	})
}

// CreateUser creates a user from the admin API
// @Summary Create user
// @Tags users
// @Accept json
// @Produce json
// @Security CookieAuth
// @Success 201 {object} identity.User
// @Router /admin/users [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string         `json:"name"`
		Email      string         `json:"email"`
		Image      string         `json:"image"`
		Properties map[string]any `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.CreateUser(r.Context(), GetUserID(r.Context()), identity.CreateUserInput{
		Name:       req.Name,
		Email:      req.Email,
		Image:      req.Image,
		Properties: req.Properties,
	})
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidEmail):
			respondError(w, http.StatusBadRequest, "invalid email address")
		case errors.Is(err, identity.ErrUserAlreadyExists):
			respondError(w, http.StatusConflict, "user already exists")
		default:
			respondError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// GetUser returns a single user
// @Summary Get user
// @Tags users
// @Produce json
// @Security CookieAuth
// @Success 200 {object} identity.User
// @Router /admin/users/{userID} [get]
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.identityService.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UpdateUser applies a partial update to a user
// @Summary Update user
// @Tags users
// @Accept json
// @Produce json
// @Security CookieAuth
// @Success 200 {object} identity.User
// @Router /admin/users/{userID} [put]
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          *string        `json:"name"`
		Email         *string        `json:"email"`
		EmailVerified *bool          `json:"email_verified"`
		Image         *string        `json:"image"`
		Properties    map[string]any `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.UpdateUser(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "userID"), identity.UpdateUserInput{
		Name:          req.Name,
		Email:         req.Email,
		EmailVerified: req.EmailVerified,
		Image:         req.Image,
		Properties:    req.Properties,
	})
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUserNotFound):
			respondError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, identity.ErrInvalidEmail):
			respondError(w, http.StatusBadRequest, "invalid email address")
		case errors.Is(err, identity.ErrUserAlreadyExists):
			respondError(w, http.StatusConflict, "email already in use")
		default:
			respondError(w, http.StatusInternalServerError, "failed to update user")
		}
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// DeleteUser removes a user and revokes their sessions
// @Summary Delete user
// @Tags users
// @Security CookieAuth
// @Success 204
// @Router /admin/users/{userID} [delete]
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	err := h.identityService.DeleteUser(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BanUser bans a user and revokes their active sessions
// @Summary Ban user
// @Tags users
// @Accept json
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Router /admin/users/{userID}/ban [post]
func (h *Handler) BanUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason    string     `json:"reason"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.identityService.BanUser(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "userID"), req.Reason, req.ExpiresAt)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to ban user")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "user banned",
	})
}

// UnbanUser lifts a user's ban
// @Summary Unban user
// @Tags users
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Router /admin/users/{userID}/unban [post]
func (h *Handler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	err := h.identityService.UnbanUser(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to unban user")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "user unbanned",
	})
}

// RevokeUserSessions revokes every active session of a user
// @Summary Revoke user sessions
// @Tags users
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Router /admin/users/{userID}/sessions [delete]
func (h *Handler) RevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	err := h.sessionService.RevokeAllForUser(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to revoke sessions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "sessions revoked",
	})
}

// AssignRole assigns a role to a user by role value
// @Summary Assign role
// @Tags users
// @Accept json
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Router /admin/users/{userID}/roles [post]
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Role == "" {
		respondError(w, http.StatusBadRequest, "role value is required")
		return
	}

	err := h.rbacService.AssignRole(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to assign role")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "role assigned",
	})
}

// RevokeRole removes a role from a user by role value
// @Summary Revoke role
// @Tags users
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Router /admin/users/{userID}/roles/{roleValue} [delete]
func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	err := h.rbacService.RevokeRole(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "userID"), chi.URLParam(r, "roleValue"))
	if err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			respondError(w, http.StatusNotFound, "role not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to revoke role")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "role revoked",
	})
}

// GrantUserPermission grants a permission directly to a user
// @Summary Grant user permission
// @Tags users
// @Accept json
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Router /admin/users/{userID}/permissions [post]
func (h *Handler) GrantUserPermission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PermissionID string `json:"permission_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PermissionID == "" {
		respondError(w, http.StatusBadRequest, "permission_id is required")
		return
	}

	err := h.rbacService.GrantPermissionToUser(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "userID"), req.PermissionID)
	if err != nil {
		if errors.Is(err, rbac.ErrPermissionNotFound) {
			respondError(w, http.StatusNotFound, "permission not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to grant permission")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "permission granted",
	})
}

// RevokeUserPermission removes a direct permission from a user
// @Summary Revoke user permission
// @Tags users
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Router /admin/users/{userID}/permissions/{permissionID} [delete]
func (h *Handler) RevokeUserPermission(w http.ResponseWriter, r *http.Request) {
	err := h.rbacService.RevokePermissionFromUser(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "userID"), chi.URLParam(r, "permissionID"))
	if err != nil {
		if errors.Is(err, rbac.ErrPermissionNotFound) {
			respondError(w, http.StatusNotFound, "permission not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to revoke permission")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "permission revoked",
	})
}
