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

// One-shot sweep of expired sessions and access tokens, for running
// from an external scheduler instead of the server's built-in cron.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	sessions, err := postgres.NewSessionRepository(db.Pool()).DeleteExpired(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Session sweep failed: %v\n", err)
		os.Exit(1)
	}
	tokens, err := postgres.NewTokenRepository(db.Pool()).DeleteExpired(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Token sweep failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("removed %d expired sessions and %d expired tokens\n", sessions, tokens)
}
