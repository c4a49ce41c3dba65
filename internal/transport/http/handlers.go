// @title Authgate API
// @version 1.0.0
// @description RBAC and machine-to-machine authorization backend

// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name authgate_session

package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/identity"
	"github.com/authgate/authgate/internal/m2m"
	"github.com/authgate/authgate/internal/observability/metrics"
	"github.com/authgate/authgate/internal/rbac"
	"github.com/authgate/authgate/internal/session"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	sessionService  *session.Service
	rbacService     *rbac.Service
	guard           *rbac.Guard
	registry        *m2m.Registry
	issuer          *m2m.Issuer
	verifier        *m2m.Verifier
	auditLogger     audit.Logger
	metrics         *metrics.Metrics
	sessionConfig   SessionConfig
}

// SessionConfig holds session cookie configuration
type SessionConfig struct {
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite http.SameSite
	CookieMaxAge   int
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	sessionService *session.Service,
	rbacService *rbac.Service,
	guard *rbac.Guard,
	registry *m2m.Registry,
	issuer *m2m.Issuer,
	verifier *m2m.Verifier,
	auditLogger audit.Logger,
	m *metrics.Metrics,
	sessionConfig SessionConfig,
) *Handler {
	return &Handler{
		identityService: identityService,
		sessionService:  sessionService,
		rbacService:     rbacService,
		guard:           guard,
		registry:        registry,
		issuer:          issuer,
		verifier:        verifier,
		auditLogger:     auditLogger,
		metrics:         m,
		sessionConfig:   sessionConfig,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(MetricsMiddleware(h.metrics))
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check and metrics
	r.Get("/health", h.HealthCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	// Machine-to-machine surface. The token endpoint itself is open;
	// everything else requires the bearer token plus client id and
	// secret headers, verified together.
	r.Route("/m2m", func(r chi.Router) {
		// RFC 6749 Section 4.4
		r.Post("/token", h.IssueToken)

		r.Group(func(r chi.Router) {
			r.Use(h.M2MMiddleware)

			r.Get("/user/{userID}", h.M2MGetUser)
			r.Patch("/user/{userID}", h.M2MUpdateUser)
			r.Post("/users", h.M2MCreateUser)
			r.Post("/sessions", h.M2MCreateSession)
			r.Get("/users/{userID}/authz", h.M2MResolveUser)
		})
	})

	// Browser session surface
	r.Route("/auth", func(r chi.Router) {
		// Cookie bootstrap for sessions minted through the machine API
		r.Post("/session/exchange", h.ExchangeSession)

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)
			r.Get("/me", h.Me)
			r.Post("/logout", h.Logout)
		})
	})

	// Admin surface: session auth, then a coarse admin-role gate,
	// then the fine-grained permission guard per route.
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.AuthMiddleware)
		r.Use(h.RequireRoles(rbac.RoleAdmin, rbac.RoleSuperAdmin))

		// User administration
		r.With(h.RequirePermissions(rbac.PermUserList)).Get("/users", h.ListUsers)
		r.With(h.RequirePermissions(rbac.PermUserCreate)).Post("/users", h.CreateUser)
		r.With(h.RequirePermissions(rbac.PermUserRead)).Get("/users/{userID}", h.GetUser)
		r.With(h.RequirePermissions(rbac.PermUserUpdate)).Put("/users/{userID}", h.UpdateUser)
		r.With(h.RequirePermissions(rbac.PermUserDelete)).Delete("/users/{userID}", h.DeleteUser)
		r.With(h.RequirePermissions(rbac.PermUserBan)).Post("/users/{userID}/ban", h.BanUser)
		r.With(h.RequirePermissions(rbac.PermUserBan)).Post("/users/{userID}/unban", h.UnbanUser)
		r.With(h.RequirePermissions(rbac.PermUserBan)).Delete("/users/{userID}/sessions", h.RevokeUserSessions)
		r.With(h.RequirePermissions(rbac.PermUserSetRole)).Post("/users/{userID}/roles", h.AssignRole)
		r.With(h.RequirePermissions(rbac.PermUserSetRole)).Delete("/users/{userID}/roles/{roleValue}", h.RevokeRole)
		r.With(h.RequirePermissions(rbac.PermUserSetPermission)).Post("/users/{userID}/permissions", h.GrantUserPermission)
		r.With(h.RequirePermissions(rbac.PermUserSetPermission)).Delete("/users/{userID}/permissions/{permissionID}", h.RevokeUserPermission)

		// Role administration
		r.With(h.RequirePermissions(rbac.PermRoleRead)).Get("/roles", h.ListRoles)
		r.With(h.RequirePermissions(rbac.PermRoleCreate)).Post("/roles", h.CreateRole)
		r.With(h.RequirePermissions(rbac.PermRoleRead)).Get("/roles/{roleID}", h.GetRole)
		r.With(h.RequirePermissions(rbac.PermRoleUpdate)).Put("/roles/{roleID}", h.UpdateRole)
		r.With(h.RequirePermissions(rbac.PermRoleDelete)).Delete("/roles/{roleID}", h.DeleteRole)
		r.With(h.RequirePermissions(rbac.PermRoleRead)).Get("/roles/{roleID}/permissions", h.ListRolePermissions)
		r.With(h.RequirePermissions(rbac.PermRoleUpdate)).Post("/roles/{roleID}/permissions", h.GrantRolePermission)
		r.With(h.RequirePermissions(rbac.PermRoleUpdate)).Delete("/roles/{roleID}/permissions/{permissionID}", h.RevokeRolePermission)

		// Permission administration
		r.With(h.RequirePermissions(rbac.PermPermissionRead)).Get("/permissions", h.ListPermissions)
		r.With(h.RequirePermissions(rbac.PermPermissionCreate)).Post("/permissions", h.CreatePermission)
		r.With(h.RequirePermissions(rbac.PermPermissionRead)).Get("/permissions/{permissionID}", h.GetPermission)
		r.With(h.RequirePermissions(rbac.PermPermissionUpdate)).Put("/permissions/{permissionID}", h.UpdatePermission)
		r.With(h.RequirePermissions(rbac.PermPermissionDelete)).Delete("/permissions/{permissionID}", h.DeletePermission)

		// Machine client administration
		r.With(h.RequirePermissions(rbac.PermSystemManageSettings)).Get("/m2m/client", h.ListClients)
		r.With(h.RequirePermissions(rbac.PermSystemManageSettings)).Post("/m2m/client", h.CreateClient)
		r.With(h.RequirePermissions(rbac.PermSystemManageSettings)).Patch("/m2m/client/{clientID}", h.UpdateClient)
		r.With(h.RequirePermissions(rbac.PermSystemManageSettings)).Delete("/m2m/client/{clientID}", h.DeleteClient)
	})

	return r
}

// HealthCheck returns service health status
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Me returns the caller's augmented session: identity plus resolved
// roles and permissions.
// @Summary Current session
// @Tags auth
// @Produce json
// @Security CookieAuth
// @Success 200 {object} session.AuthSession
// @Router /auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	auth := GetAuthSession(r.Context())
	if auth == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	respondJSON(w, http.StatusOK, auth)
}

// ExchangeSession turns a session token minted through the machine API
// into a browser cookie. The token is validated before the cookie is
// set so an invalid exchange leaves no cookie behind.
// @Summary Exchange session token for cookie
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/session/exchange [post]
func (h *Handler) ExchangeSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}

	if _, err := h.sessionService.Validate(r.Context(), req.Token); err != nil {
		respondError(w, http.StatusUnauthorized, "invalid or expired session")
		return
	}

	h.setSessionCookie(w, req.Token)
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "session established",
	})
}

// Logout revokes the caller's session and clears the cookie.
// @Summary Logout
// @Tags auth
// @Security CookieAuth
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	auth := GetAuthSession(r.Context())
	if auth != nil {
		if err := h.sessionService.Revoke(r.Context(), auth.UserID, auth.SessionID); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to revoke session")
			return
		}
	}
	h.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "logged out",
	})
}

// Helper functions
func (h *Handler) setSessionCookie(w http.ResponseWriter, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    value,
		Path:     h.sessionConfig.CookiePath,
		Domain:   h.sessionConfig.CookieDomain,
		Secure:   h.sessionConfig.CookieSecure,
		HttpOnly: h.sessionConfig.CookieHTTPOnly,
		SameSite: h.sessionConfig.CookieSameSite,
		MaxAge:   h.sessionConfig.CookieMaxAge,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   h.sessionConfig.CookieName,
		Value:  "",
		Path:   h.sessionConfig.CookiePath,
		Domain: h.sessionConfig.CookieDomain,
		MaxAge: -1,
	})
}

// getSessionToken reads the session token from the cookie, falling back
// to a bearer token for non-browser callers.
func (h *Handler) getSessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(h.sessionConfig.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return bearerToken(r)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
