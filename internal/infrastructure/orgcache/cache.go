// Package orgcache caches manager-of lookups for a bounded time.
package orgcache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/timesheet-approval/internal/application/port"
)

// DefaultTTL is used when the configured TTL is not positive
const DefaultTTL = 5 * time.Minute

type entry struct {
	managerID string
	expiresAt time.Time
}

// Cache wraps an OrgRelationship and remembers answers until they expire.
// Entitlement decisions may therefore lag a manager change by up to the TTL.
// Lookup errors are never cached.
type Cache struct {
	next   port.OrgRelationship
	clock  port.Clock
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]entry
}

// New creates a cache in front of next
func New(next port.OrgRelationship, ttl time.Duration, clock port.Clock, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = port.SystemClock
	}
	return &Cache{
		next:    next,
		clock:   clock,
		ttl:     ttl,
		logger:  logger,
		entries: make(map[string]entry),
	}
}

// GetDirectManager returns the cached manager or asks the wrapped source
func (c *Cache) GetDirectManager(ctx context.Context, userID string) (string, error) {
	now := c.clock.Now()

	c.mu.Lock()
	e, ok := c.entries[userID]
	if ok && !e.expiresAt.After(now) {
		delete(c.entries, userID)
		ok = false
	}
	c.mu.Unlock()

	if ok {
		return e.managerID, nil
	}

	managerID, err := c.next.GetDirectManager(ctx, userID)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[userID] = entry{managerID: managerID, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()

	c.logger.Debug("Cached manager lookup",
		zap.String("user_id", userID),
		zap.String("manager_id", managerID))
	return managerID, nil
}

// Invalidate drops the cached answer for one user
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

// Len reports the number of cached users, expired or not
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
