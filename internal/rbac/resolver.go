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
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// MaxInheritanceDepth bounds how far a parent chain is followed during
// resolution. Chains longer than this are truncated, never an error.
const MaxInheritanceDepth = 10

// Resolution is the fully expanded authorization state of one user.
type Resolution struct {
	Roles       []*Role  // direct and inherited, highest priority first
	Permissions []string // deduplicated union of role and direct grants, sorted
}

// RoleValues returns the role slugs in priority order.
func (r *Resolution) RoleValues() []string {
	values := make([]string, len(r.Roles))
	for i, role := range r.Roles {
		values[i] = role.Value
	}
	return values
}

// PrimaryRole returns the highest-priority role value, or "" when the
// user has no roles.
func (r *Resolution) PrimaryRole() string {
	if len(r.Roles) == 0 {
		return ""
	}
	return r.Roles[0].Value
}

// ResolveRoles expands a user's direct role assignments through the
// parent hierarchy. Inactive roles are skipped, each role appears once,
// and traversal is cycle-safe: a parent already on the current branch's
// path is not followed again.
func (s *Service) ResolveRoles(ctx context.Context, userID string) ([]*Role, error) {
	direct, err := s.roles.ListDirectForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list direct roles: %w", err)
	}

	collected := make(map[string]*Role)
	// fetched memoizes parent lookups so a shared ancestor is read once
	fetched := make(map[string]*Role)

	var walk func(role *Role, depth int, path map[string]bool) error
	walk = func(role *Role, depth int, path map[string]bool) error {
		if !role.IsActive {
			return nil
		}
		if _, ok := collected[role.ID]; !ok {
			collected[role.ID] = role
		}
		if role.ParentID == nil || depth >= MaxInheritanceDepth {
			return nil
		}
		parentID := *role.ParentID
		if path[parentID] {
			// Cycle: this branch already visited the parent.
			return nil
		}

		parent, ok := fetched[parentID]
		if !ok {
			parent, err = s.roles.GetByID(ctx, parentID)
			if errors.Is(err, ErrRoleNotFound) {
				// Dangling parent reference; stop the branch.
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to load parent role: %w", err)
			}
			fetched[parentID] = parent
		}

		path[role.ID] = true
		defer delete(path, role.ID)
		return walk(parent, depth+1, path)
	}

	for _, role := range direct {
		if err := walk(role, 1, map[string]bool{}); err != nil {
			return nil, err
		}
	}

	all := make([]*Role, 0, len(collected))
	for _, role := range collected {
		all = append(all, role)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].EffectiveOrder() != all[j].EffectiveOrder() {
			return all[i].EffectiveOrder() < all[j].EffectiveOrder()
		}
		return all[i].Value < all[j].Value
	})
	return all, nil
}

// ResolvePermissions returns the deduplicated union of every permission
// reachable through the user's resolved roles plus direct user grants.
func (s *Service) ResolvePermissions(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.ResolveRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.permissionsFor(ctx, userID, roles)
}

func (s *Service) permissionsFor(ctx context.Context, userID string, roles []*Role) ([]string, error) {
	roleIDs := make([]string, len(roles))
	for i, role := range roles {
		roleIDs[i] = role.ID
	}

	var rolePerms, userPerms []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(roleIDs) == 0 {
			return nil
		}
		var err error
		rolePerms, err = s.perms.ListValuesForRoles(gctx, roleIDs)
		if err != nil {
			return fmt.Errorf("failed to list role permissions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		userPerms, err = s.perms.ListValuesForUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list user permissions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(rolePerms)+len(userPerms))
	for _, p := range rolePerms {
		set[p] = true
	}
	for _, p := range userPerms {
		set[p] = true
	}
	merged := make([]string, 0, len(set))
	for p := range set {
		merged = append(merged, p)
	}
	sort.Strings(merged)
	return merged, nil
}

// Resolve computes the user's full authorization state, consulting the
// resolution cache when one is configured.
func (s *Service) Resolve(ctx context.Context, userID string) (*Resolution, error) {
	if res, ok := s.cache.Get(userID); ok {
		if s.metrics != nil {
			s.metrics.ResolutionCacheHits.Inc()
		}
		return res, nil
	}
	if s.metrics != nil {
		s.metrics.ResolutionCacheMisses.Inc()
	}

	start := time.Now()
	roles, err := s.ResolveRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	perms, err := s.permissionsFor(ctx, userID, roles)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
	}

	res := &Resolution{Roles: roles, Permissions: perms}
	s.cache.Add(userID, res)
	return res, nil
}
