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

package identity

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserBanned        = errors.New("user is banned")
	ErrInvalidEmail      = errors.New("invalid email address")
)

// User represents a user identity in the system.
// Authentication credentials live with the upstream auth provider;
// this service owns the identity record and its authorization state.
type User struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	EmailVerified bool           `json:"email_verified"`
	Image         string         `json:"image,omitempty"`
	Properties    map[string]any `json:"properties,omitempty"`
	Banned        bool           `json:"banned"`
	BanReason     *string        `json:"ban_reason,omitempty"`
	BanExpires    *time.Time     `json:"ban_expires,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// IsBanned reports whether the ban is currently in effect.
// A ban with an expiry in the past no longer counts.
func (u *User) IsBanned() bool {
	if !u.Banned {
		return false
	}
	if u.BanExpires != nil && time.Now().After(*u.BanExpires) {
		return false
	}
	return true
}

// ListFilter narrows and pages a user listing
type ListFilter struct {
	Query  string // matches name or email, case-insensitive substring
	Limit  int
	Offset int
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// Create creates a new user identity
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*User, error)

	// List retrieves users matching the filter plus the unpaged total
	List(ctx context.Context, filter ListFilter) ([]*User, int, error)

	// Update updates user information
	Update(ctx context.Context, user *User) error

	// SetBan updates the ban state of a user
	SetBan(ctx context.Context, userID string, banned bool, reason *string, expires *time.Time) error

	// Delete removes a user; role and permission grants cascade
	Delete(ctx context.Context, id string) error
}

// CreatedNotifier is told about new users. Implementations must be
// best-effort: a notification failure never fails user creation.
type CreatedNotifier interface {
	NotifyUserCreated(ctx context.Context, user *User)
}
