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

// Package webhook delivers outbound event notifications. Delivery is
// strictly best-effort: failures are logged, never propagated.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/authgate/authgate/internal/identity"
)

// Notifier posts user lifecycle events to a configured URL.
type Notifier struct {
	client *http.Client
	url    string
}

// NewNotifier creates a notifier. Returns nil when url is empty, which
// callers treat as notifications disabled.
func NewNotifier(url string, timeout time.Duration) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{
		client: &http.Client{Timeout: timeout},
		url:    url,
	}
}

type userCreatedPayload struct {
	Event string      `json:"event"`
	User  userPayload `json:"user"`
}

type userPayload struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Email      string         `json:"email"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NotifyUserCreated posts a user.created event. Safe to call on a nil
// receiver: a disabled notifier delivers nothing.
func (n *Notifier) NotifyUserCreated(ctx context.Context, user *identity.User) {
	if n == nil {
		return
	}
	payload := userCreatedPayload{
		Event: "user.created",
		User: userPayload{
			ID:         user.ID,
			Name:       user.Name,
			Email:      user.Email,
			Properties: user.Properties,
			CreatedAt:  user.CreatedAt,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode webhook payload", slog.String("error", err.Error()))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		slog.ErrorContext(ctx, "failed to build webhook request", slog.String("error", err.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "webhook delivery failed",
			slog.String("url", n.url), slog.String("error", err.Error()))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		slog.WarnContext(ctx, "webhook delivery rejected",
			slog.String("url", n.url), slog.Int("status_code", resp.StatusCode))
		return
	}
	slog.DebugContext(ctx, "webhook delivered",
		slog.String("url", n.url), slog.String("user_id", user.ID))
}
