package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// routeContext is the cached routing identity of one entity.
type routeContext struct {
	projectID  uuid.UUID
	groupID    *uuid.UUID
	assigneeID *uuid.UUID
}

// routeCache is a small time-bounded cache of entity ID to routing
// context. It absorbs lookup storms under bursty writes and, more
// importantly, is the fallback that lets a delete be routed after the
// entity is no longer queryable.
type routeCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]routeCacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type routeCacheEntry struct {
	route   routeContext
	expires time.Time
}

func newRouteCache(ttl time.Duration) *routeCache {
	return &routeCache{
		entries: make(map[uuid.UUID]routeCacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put records the routing context seen for an entity, refreshing its TTL.
func (c *routeCache) Put(entityID uuid.UUID, route routeContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entityID] = routeCacheEntry{
		route:   route,
		expires: c.now().Add(c.ttl),
	}
}

// Get returns the cached routing context for an entity if still fresh.
func (c *routeCache) Get(entityID uuid.UUID) (routeContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[entityID]
	if !ok {
		return routeContext{}, false
	}
	if c.now().After(entry.expires) {
		delete(c.entries, entityID)
		return routeContext{}, false
	}
	return entry.route, true
}

// Forget drops an entity from the cache.
func (c *routeCache) Forget(entityID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, entityID)
}

// sweep removes expired entries. Called opportunistically by the
// composer between batches; the cache stays small either way.
func (c *routeCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, id)
		}
	}
}
