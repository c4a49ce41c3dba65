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
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/authgate/authgate/internal/m2m"
	"github.com/authgate/authgate/internal/observability/logger"
	"github.com/authgate/authgate/internal/observability/metrics"
	"github.com/authgate/authgate/internal/rbac"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// MetricsMiddleware records request counts and latency per chi route
// pattern. The route pattern is used instead of the raw path to keep
// label cardinality bounded.
func MetricsMiddleware(m *metrics.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// AuthMiddleware validates the session token and attaches the augmented
// session to the request context. Banned users are rejected even when
// their session is otherwise valid.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.getSessionToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		sess, err := h.sessionService.Validate(r.Context(), token)
		if err != nil {
			h.clearSessionCookie(w)
			respondError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		user, err := h.identityService.GetUser(r.Context(), sess.UserID)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		if user.IsBanned() {
			respondError(w, http.StatusForbidden, "account is banned")
			return
		}

		auth, err := h.sessionService.Augment(r.Context(), sess)
		if err != nil {
			slog.ErrorContext(r.Context(), "session_augment_failed",
				logger.SessionID(sess.ID),
				logger.Error(err),
			)
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, sess.UserID)
		ctx = context.WithValue(ctx, authSessionKey, auth)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermissions enforces that the authenticated user holds every
// listed permission. Denials are uniform: the response never reveals
// which permission was missing.
func (h *Handler) RequirePermissions(perms ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == "" {
				respondError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			if err := h.guard.CheckPermissions(r.Context(), userID, perms...); err != nil {
				if errors.Is(err, rbac.ErrAccessDenied) {
					respondError(w, http.StatusForbidden, "access denied")
					return
				}
				respondError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoles enforces that the authenticated user holds at least one
// of the listed roles.
func (h *Handler) RequireRoles(roles ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == "" {
				respondError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			if err := h.guard.CheckRoles(r.Context(), userID, roles...); err != nil {
				if errors.Is(err, rbac.ErrAccessDenied) {
					respondError(w, http.StatusForbidden, "access denied")
					return
				}
				respondError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// M2MMiddleware authenticates machine callers. It requires all three
// credentials up front (bearer token, client id, client secret) and
// rejects before any lookup when one is absent.
func (h *Handler) M2MMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := r.Header.Get("X-Client-Id")
		clientSecret := r.Header.Get("X-Client-Secret")
		if clientID == "" || clientSecret == "" {
			respondError(w, http.StatusUnauthorized, "Missing or invalid X-Client-Id or X-Client-Secret header")
			return
		}

		bearer := bearerToken(r)
		if bearer == "" {
			respondError(w, http.StatusUnauthorized, "Missing or invalid Authorization header")
			return
		}

		client, err := h.verifier.Verify(r.Context(), m2m.Credentials{
			BearerToken:  bearer,
			ClientID:     clientID,
			ClientSecret: clientSecret,
		})
		if err != nil {
			if errors.Is(err, m2m.ErrInvalidToken) || errors.Is(err, m2m.ErrMissingCredentials) {
				respondError(w, http.StatusUnauthorized, "Invalid or expired access token")
				return
			}
			respondError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), m2mClientKey, client)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}
