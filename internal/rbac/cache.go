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
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ResolutionCache is a time-bounded LRU of per-user resolutions.
// All methods are safe on a nil receiver, which is how a disabled
// cache is represented.
type ResolutionCache struct {
	lru *expirable.LRU[string, *Resolution]
}

// NewResolutionCache creates a cache holding up to size entries for ttl.
func NewResolutionCache(size int, ttl time.Duration) *ResolutionCache {
	return &ResolutionCache{
		lru: expirable.NewLRU[string, *Resolution](size, nil, ttl),
	}
}

// Get returns the cached resolution for a user, if present and fresh.
func (c *ResolutionCache) Get(userID string) (*Resolution, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(userID)
}

// Add stores a user's resolution.
func (c *ResolutionCache) Add(userID string, res *Resolution) {
	if c == nil {
		return
	}
	c.lru.Add(userID, res)
}

// Invalidate drops a single user's cached resolution.
func (c *ResolutionCache) Invalidate(userID string) {
	if c == nil {
		return
	}
	c.lru.Remove(userID)
}

// Purge drops every cached resolution.
func (c *ResolutionCache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}
