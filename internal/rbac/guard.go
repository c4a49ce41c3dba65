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

package rbac

import (
	"context"

	"github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/observability/metrics"
)

// HasRoles reports whether the user holds at least one of the required
// roles. An empty required set matches nothing.
func HasRoles(have []string, required []string) bool {
	set := make(map[string]bool, len(have))
	for _, r := range have {
		set[r] = true
	}
	for _, r := range required {
		if set[r] {
			return true
		}
	}
	return false
}

// HasPermissions reports whether the user holds every required
// permission. An empty required set is vacuously satisfied.
func HasPermissions(have []string, required []string) bool {
	set := make(map[string]bool, len(have))
	for _, p := range have {
		set[p] = true
	}
	for _, p := range required {
		if !set[p] {
			return false
		}
	}
	return true
}

// Guard makes allow/deny decisions against resolved authorization state.
type Guard struct {
	resolver *Service
	auditor  audit.Logger
	metrics  *metrics.Metrics
}

// NewGuard creates a new permission guard. m may be nil.
func NewGuard(resolver *Service, auditor audit.Logger, m *metrics.Metrics) *Guard {
	return &Guard{resolver: resolver, auditor: auditor, metrics: m}
}

// CheckPermissions resolves the user and requires every listed
// permission. Denials return ErrAccessDenied; the specific missing
// permission goes to the audit log only, never to the caller.
func (g *Guard) CheckPermissions(ctx context.Context, userID string, required ...string) error {
	res, err := g.resolver.Resolve(ctx, userID)
	if err != nil {
		// Infrastructure failure, not a denial.
		return err
	}

	set := make(map[string]bool, len(res.Permissions))
	for _, p := range res.Permissions {
		set[p] = true
	}
	for _, p := range required {
		if !set[p] {
			g.observe("denied")
			g.auditor.Log(ctx, audit.Event{
				Type:     audit.TypePermissionDenied,
				ActorID:  userID,
				Resource: "permission:" + p,
				Metadata: map[string]any{"missing": p},
			})
			return ErrAccessDenied
		}
	}
	g.observe("allowed")
	return nil
}

// CheckRoles resolves the user and requires at least one listed role.
func (g *Guard) CheckRoles(ctx context.Context, userID string, required ...string) error {
	res, err := g.resolver.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if !HasRoles(res.RoleValues(), required) {
		g.observe("denied")
		g.auditor.Log(ctx, audit.Event{
			Type:    audit.TypePermissionDenied,
			ActorID: userID,
			Metadata: map[string]any{
				"required_roles": required,
			},
		})
		return ErrAccessDenied
	}
	g.observe("allowed")
	return nil
}

func (g *Guard) observe(outcome string) {
	if g.metrics != nil {
		g.metrics.PermissionChecksTotal.WithLabelValues(outcome).Inc()
	}
}
