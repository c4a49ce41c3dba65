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
	"context"

	"github.com/authgate/authgate/internal/m2m"
	"github.com/authgate/authgate/internal/session"
)

type contextKey string

const (
	userIDKey      contextKey = "user_id"
	authSessionKey contextKey = "auth_session"
	m2mClientKey   contextKey = "m2m_client"
)

// GetUserID retrieves the authenticated User ID from context.
func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok {
		return val
	}
	return ""
}

// GetAuthSession retrieves the augmented session from context.
func GetAuthSession(ctx context.Context) *session.AuthSession {
	if val, ok := ctx.Value(authSessionKey).(*session.AuthSession); ok {
		return val
	}
	return nil
}

// GetM2MClient retrieves the verified machine client from context.
func GetM2MClient(ctx context.Context) *m2m.Client {
	if val, ok := ctx.Value(m2mClientKey).(*m2m.Client); ok {
		return val
	}
	return nil
}
