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

	"github.com/authgate/authgate/internal/m2m"
)

// CreateClient registers a machine client. The client secret is
// returned exactly once in this response and never stored in plaintext.
// @Summary Create machine client
// @Tags clients
// @Accept json
// @Produce json
// @Security CookieAuth
// @Success 201 {object} map[string]any
// @Router /admin/m2m/client [post]
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string   `json:"name"`
		RedirectURIs []string `json:"redirect_uris"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	client, secret, err := h.registry.CreateClient(r.Context(), GetUserID(r.Context()), req.Name, req.RedirectURIs)
	if err != nil {
		switch {
		case errors.Is(err, m2m.ErrInvalidClientName):
			respondError(w, http.StatusBadRequest, "client name must be at least 3 characters")
		case errors.Is(err, m2m.ErrInvalidRedirectURI):
			respondError(w, http.StatusBadRequest, "redirect URIs must be absolute URIs")
		default:
			respondError(w, http.StatusInternalServerError, "failed to create client")
		}
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"client":        client,
		"client_secret": secret,
	})
}

// ListClients returns all registered machine clients
// @Summary List machine clients
// @Tags clients
// @Produce json
// @Security CookieAuth
// @Success 200 {array} m2m.Client
// @Router /admin/m2m/client [get]
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.registry.ListClients(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list clients")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"clients": clients,
	})
}

// UpdateClient toggles the disable flag on a machine client.
// Disabling revokes outstanding tokens immediately.
// @Summary Update machine client
// @Tags clients
// @Accept json
// @Produce json
// @Security CookieAuth
// @Success 200 {object} m2m.Client
// @Router /admin/m2m/client/{clientID} [patch]
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Disabled *bool `json:"disabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Disabled == nil {
		respondError(w, http.StatusBadRequest, "disabled flag is required")
		return
	}

	client, err := h.registry.SetDisabled(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "clientID"), *req.Disabled)
	if err != nil {
		if errors.Is(err, m2m.ErrClientNotFound) {
			respondError(w, http.StatusNotFound, "client not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update client")
		return
	}
	respondJSON(w, http.StatusOK, client)
}

// DeleteClient removes a machine client and revokes its issued tokens
// @Summary Delete machine client
// @Tags clients
// @Security CookieAuth
// @Success 204
// @Router /admin/m2m/client/{clientID} [delete]
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	err := h.registry.DeleteClient(r.Context(), GetUserID(r.Context()), chi.URLParam(r, "clientID"))
	if err != nil {
		if errors.Is(err, m2m.ErrClientNotFound) {
			respondError(w, http.StatusNotFound, "client not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete client")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
