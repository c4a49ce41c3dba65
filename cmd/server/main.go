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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/identity"
	"github.com/authgate/authgate/internal/m2m"
	"github.com/authgate/authgate/internal/observability/logger"
	"github.com/authgate/authgate/internal/observability/metrics"
	"github.com/authgate/authgate/internal/observability/tracing"
	"github.com/authgate/authgate/internal/rbac"
	"github.com/authgate/authgate/internal/session"
	"github.com/authgate/authgate/internal/store/postgres"
	transportHTTP "github.com/authgate/authgate/internal/transport/http"
	"github.com/authgate/authgate/internal/webhook"
)

func main() {
	// Load .env if present; real environments set variables directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		OTELEnabled: cfg.Observability.OTELEnabled,
	})
	slog.Info("starting authgate authorization backend")

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if len(os.Args) > 1 && os.Args[1] == "seed" {
		if err := runSeed(cfg); err != nil {
			fmt.Printf("Seed failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	ctx := context.Background()

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	m := metrics.New()

	db, err := connect(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Repositories
	userRepo := postgres.NewUserRepository(db.Pool())
	sessionRepo := postgres.NewSessionRepository(db.Pool())
	roleRepo := postgres.NewRoleRepository(db.Pool())
	permRepo := postgres.NewPermissionRepository(db.Pool())
	clientRepo := postgres.NewClientRepository(db.Pool())
	tokenRepo := postgres.NewTokenRepository(db.Pool())

	// Services
	auditLogger := audit.NewSlogLogger()

	var cache *rbac.ResolutionCache
	if cfg.RBAC.CacheEnabled {
		cache = rbac.NewResolutionCache(cfg.RBAC.CacheSize, cfg.RBAC.CacheTTL)
	}
	rbacService := rbac.NewService(roleRepo, permRepo, cache, auditLogger, m)
	guard := rbac.NewGuard(rbacService, auditLogger, m)
	sessionService := session.NewService(sessionRepo, rbacService, auditLogger, cfg.Session.Lifetime, cfg.Session.IdleTimeout)
	// A typed-nil *Notifier must not end up in the interface, or the
	// service's nil check would pass and dereference it.
	var notifier identity.CreatedNotifier
	if w := webhook.NewNotifier(cfg.Webhook.UserCreatedURL, cfg.Webhook.Timeout); w != nil {
		notifier = w
	}
	identityService := identity.NewService(userRepo, rbacService, sessionRepo, notifier, auditLogger)
	registry := m2m.NewRegistry(clientRepo, tokenRepo, auditLogger, cfg.M2M.SecretLength, cfg.M2M.BcryptCost)
	issuer := m2m.NewIssuer(clientRepo, tokenRepo, auditLogger, m, cfg.M2M.AccessTokenLifetime)
	verifier := m2m.NewVerifier(clientRepo, tokenRepo, auditLogger, m)

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	sameSite := http.SameSiteLaxMode
	switch cfg.Session.CookieSameSite {
	case "Strict":
		sameSite = http.SameSiteStrictMode
	case "None":
		sameSite = http.SameSiteNoneMode
	}

	handler := transportHTTP.NewHandler(
		identityService,
		sessionService,
		rbacService,
		guard,
		registry,
		issuer,
		verifier,
		auditLogger,
		m,
		transportHTTP.SessionConfig{
			CookieName:     cfg.Session.CookieName,
			CookieDomain:   cfg.Session.CookieDomain,
			CookiePath:     cfg.Session.CookiePath,
			CookieSecure:   cfg.Session.CookieSecure,
			CookieHTTPOnly: cfg.Session.CookieHTTPOnly,
			CookieSameSite: sameSite,
			CookieMaxAge:   int(cfg.Session.Lifetime.Seconds()),
		},
	)

	router := transportHTTP.NewRouter(handler, rateLimiter)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Background sweeps for expired sessions and access tokens
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@hourly", func() {
		if n, err := sessionService.CleanupExpired(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to cleanup expired sessions", logger.Error(err))
		} else if n > 0 {
			slog.InfoContext(ctx, "removed expired sessions", slog.Int64("count", n))
		}
	}); err != nil {
		slog.Error("failed to schedule session cleanup", logger.Error(err))
	}
	if _, err := scheduler.AddFunc("@hourly", func() {
		n, err := tokenRepo.DeleteExpired(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to cleanup expired tokens", logger.Error(err))
			return
		}
		if n > 0 {
			m.ExpiredTokensSweptTotal.Add(float64(n))
			slog.InfoContext(ctx, "removed expired access tokens", slog.Int64("count", n))
		}
	}); err != nil {
		slog.Error("failed to schedule token cleanup", logger.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func connect(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	return postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	slog.Info("migrations applied")
	return nil
}

// runSeed installs the default role and permission registry. When
// ADMIN_EMAIL names an existing user, that user is promoted to admin.
func runSeed(cfg *config.Config) error {
	ctx := context.Background()
	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	roleRepo := postgres.NewRoleRepository(db.Pool())
	permRepo := postgres.NewPermissionRepository(db.Pool())
	if err := rbac.Seed(ctx, roleRepo, permRepo); err != nil {
		return err
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		return nil
	}

	userRepo := postgres.NewUserRepository(db.Pool())
	auditLogger := audit.NewSlogLogger()
	rbacService := rbac.NewService(roleRepo, permRepo, nil, auditLogger, nil)

	user, err := userRepo.GetByEmail(ctx, adminEmail)
	if err != nil {
		slog.Warn("admin user not found, skipping promotion", logger.Email(adminEmail))
		return nil
	}
	if err := rbacService.AssignRole(ctx, "seed", user.ID, "admin"); err != nil {
		return fmt.Errorf("failed to promote admin: %w", err)
	}
	slog.Info("promoted admin user", logger.Email(adminEmail), logger.UserID(user.ID))
	return nil
}
