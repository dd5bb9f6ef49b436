// Package cache holds in-process caches for hot read paths.
package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"docuvault/internal/core/id"
	"docuvault/internal/domain/access"
	"docuvault/internal/domain/auth"
)

// DefaultIdentityCacheSize bounds the cache; eviction is LRU.
const DefaultIdentityCacheSize = 4096

// DefaultIdentityTTL bounds staleness for entries that survive in the LRU.
const DefaultIdentityTTL = 5 * time.Minute

type identityKey struct {
	tenantID string
	userID   string
}

type identityEntry struct {
	identity *access.Identity
	loadedAt time.Time
}

// IdentityCache memoizes flattened role and permission sets per user. Role
// mutations call Invalidate, so a cached snapshot never outlives the grant
// change by more than the TTL on other nodes.
type IdentityCache struct {
	users auth.UserRepository
	lru   *lru.Cache[identityKey, identityEntry]
	ttl   time.Duration
	now   func() time.Time
}

// NewIdentityCache creates an identity cache over the user repository.
func NewIdentityCache(users auth.UserRepository, size int, ttl time.Duration) (*IdentityCache, error) {
	if size <= 0 {
		size = DefaultIdentityCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultIdentityTTL
	}
	c, err := lru.New[identityKey, identityEntry](size)
	if err != nil {
		return nil, err
	}
	return &IdentityCache{
		users: users,
		lru:   c,
		ttl:   ttl,
		now:   time.Now,
	}, nil
}

// Resolve returns the user's identity snapshot, loading roles and flattened
// permissions from storage on a miss.
func (c *IdentityCache) Resolve(ctx context.Context, tenantID string, userID id.ID) (*access.Identity, error) {
	key := identityKey{tenantID: tenantID, userID: userID.String()}

	if entry, ok := c.lru.Get(key); ok {
		if c.now().Sub(entry.loadedAt) < c.ttl {
			return entry.identity, nil
		}
		c.lru.Remove(key)
	}

	user, err := c.users.GetByID(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	roles, err := c.users.LoadRoles(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	perms, err := c.users.LoadPermissions(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}

	identity := &access.Identity{
		UserID:      userID.String(),
		TenantID:    tenantID,
		RoleIDs:     user.RoleIDs(),
		Permissions: perms,
		MFAActive:   user.MFAEnabled,
	}
	c.lru.Add(key, identityEntry{identity: identity, loadedAt: c.now()})
	return identity, nil
}

// Invalidate drops the cached snapshot for a user.
func (c *IdentityCache) Invalidate(tenantID string, userID id.ID) {
	c.lru.Remove(identityKey{tenantID: tenantID, userID: userID.String()})
}

// Purge drops every cached snapshot.
func (c *IdentityCache) Purge() {
	c.lru.Purge()
}
