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

	"github.com/authgate/authgate/internal/identity"
	"github.com/authgate/authgate/internal/m2m"
	"github.com/authgate/authgate/internal/rbac"
)

// IssueToken handles the client_credentials token grant
// RFC 6749 Section 4.4. Credentials arrive via client_secret_post.
// @Summary Issue access token
// @Tags oauth2
// @Accept x-www-form-urlencoded
// @Produce json
// @Param grant_type formData string true "Grant type"
// @Param client_id formData string true "Client ID"
// @Param client_secret formData string true "Client secret"
// @Success 200 {object} m2m.TokenResponse
// @Router /m2m/token [post]
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	resp, err := h.issuer.Issue(r.Context(),
		r.PostFormValue("grant_type"),
		r.PostFormValue("client_id"),
		r.PostFormValue("client_secret"),
	)
	if err != nil {
		switch {
		case errors.Is(err, m2m.ErrGrantNotAllowed):
			respondError(w, http.StatusBadRequest, "unsupported_grant_type")
		case errors.Is(err, m2m.ErrMissingCredentials):
			respondError(w, http.StatusBadRequest, "invalid_request")
		case errors.Is(err, m2m.ErrInvalidClient), errors.Is(err, m2m.ErrClientDisabled):
			respondError(w, http.StatusUnauthorized, "invalid_client")
		default:
			respondError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	// Token responses must not be cached
	// RFC 6749 Section 5.1
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	respondJSON(w, http.StatusOK, resp)
}

// M2MCreateUser provisions a user on behalf of an upstream auth
// service. The default role is assigned and the user-created webhook
// fires, same as any other signup path.
// @Summary Create user (machine)
// @Tags m2m
// @Accept json
// @Produce json
// @Success 201 {object} identity.User
// @Router /m2m/users [post]
func (h *Handler) M2MCreateUser(w http.ResponseWriter, r *http.Request) {
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

	actor := m2mActor(r)
	user, err := h.identityService.CreateUser(r.Context(), actor, identity.CreateUserInput{
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

// m2mUser is the limited user view exposed to machine callers.
type m2mUser struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	EmailVerified bool           `json:"email_verified"`
	Image         string         `json:"image,omitempty"`
	Properties    map[string]any `json:"properties,omitempty"`
}

func newM2MUser(u *identity.User) m2mUser {
	return m2mUser{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Image:         u.Image,
		Properties:    u.Properties,
	}
}

// M2MGetUser fetches a user's profile fields for a machine caller
// @Summary Get user (machine)
// @Tags m2m
// @Produce json
// @Success 200 {object} m2mUser
// @Router /m2m/user/{userID} [get]
func (h *Handler) M2MGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.identityService.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	respondJSON(w, http.StatusOK, newM2MUser(user))
}

// M2MUpdateUser patches a user's profile fields for a machine caller.
// Only profile fields are reachable here; ban state and roles are not.
// @Summary Update user (machine)
// @Tags m2m
// @Accept json
// @Produce json
// @Success 200 {object} m2mUser
// @Router /m2m/user/{userID} [patch]
func (h *Handler) M2MUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name          *string        `json:"name"`
		EmailVerified *bool          `json:"email_verified"`
		Image         *string        `json:"image"`
		Properties    map[string]any `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.UpdateUser(r.Context(), m2mActor(r), chi.URLParam(r, "userID"), identity.UpdateUserInput{
		Name:          req.Name,
		EmailVerified: req.EmailVerified,
		Image:         req.Image,
		Properties:    req.Properties,
	})
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	respondJSON(w, http.StatusOK, newM2MUser(user))
}

// M2MCreateSession mints a session for a user after the upstream auth
// service has verified their credentials. The plaintext session token
// appears only in this response.
// @Summary Create session (machine)
// @Tags m2m
// @Accept json
// @Produce json
// @Success 201 {object} map[string]any
// @Router /m2m/sessions [post]
func (h *Handler) M2MCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"user_id"`
		IPAddress string `json:"ip_address"`
		UserAgent string `json:"user_agent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	user, err := h.identityService.GetUser(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	if user.IsBanned() {
		respondError(w, http.StatusForbidden, "account is banned")
		return
	}

	sess, token, err := h.sessionService.Create(r.Context(), req.UserID, req.IPAddress, req.UserAgent)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"session_id": sess.ID,
		"token":      token,
		"expires_at": sess.ExpiresAt,
	})
}

// M2MResolveUser returns a user's resolved roles and permissions so
// upstream services can augment their own session payloads.
// @Summary Resolve user authorization (machine)
// @Tags m2m
// @Produce json
// @Success 200 {object} map[string]any
// @Router /m2m/users/{userID}/authz [get]
func (h *Handler) M2MResolveUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if _, err := h.identityService.GetUser(r.Context(), userID); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to resolve user")
		return
	}

	res, err := h.rbacService.Resolve(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resolve user")
		return
	}

	roles := res.RoleValues()
	primary := res.PrimaryRole()
	if len(roles) == 0 {
		roles = []string{rbac.DefaultRole}
		primary = rbac.DefaultRole
	}
	perms := res.Permissions
	if perms == nil {
		perms = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":      userID,
		"roles":        roles,
		"permissions":  perms,
		"primary_role": primary,
	})
}

// m2mActor identifies the machine caller for audit attribution.
func m2mActor(r *http.Request) string {
	if client := GetM2MClient(r.Context()); client != nil {
		return "m2m:" + client.ClientID
	}
	return "m2m:unknown"
}
