package cache

import (
	"context"
	"sync"
	"time"

	"github.com/lexroom/redline/pkg/contracts"
)

// entry is a cached projection with its expiry time.
type entry struct {
	result    contracts.ProjectionResult
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache of projections.
//
// Expired entries are dropped lazily on access, so memory is bounded by the
// set of clauses touched within one TTL window.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	clock   func() time.Time
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(c *MemoryCache) { c.ttl = ttl }
}

// WithClock overrides the time source. Used by tests.
func WithClock(clock func() time.Time) MemoryOption {
	return func(c *MemoryCache) { c.clock = clock }
}

// NewMemoryCache creates an in-process projection cache.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]entry),
		ttl:     DefaultTTL,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached projection for the clause, if present and fresh.
func (c *MemoryCache) Get(ctx context.Context, clauseID string) (contracts.ProjectionResult, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[clauseID]
	c.mu.RUnlock()

	if !ok {
		return contracts.ProjectionResult{}, false, nil
	}
	if !c.clock().Before(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: a Set may have raced the expiry.
		if cur, ok := c.entries[clauseID]; ok && !c.clock().Before(cur.expiresAt) {
			delete(c.entries, clauseID)
		}
		c.mu.Unlock()
		return contracts.ProjectionResult{}, false, nil
	}
	return e.result, true, nil
}

// Set stores the projection for the clause, replacing any existing entry.
func (c *MemoryCache) Set(ctx context.Context, clauseID string, result contracts.ProjectionResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[clauseID] = entry{
		result:    result,
		expiresAt: c.clock().Add(c.ttl),
	}
	return nil
}

// Invalidate removes the entry for the clause.
func (c *MemoryCache) Invalidate(ctx context.Context, clauseID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, clauseID)
	return nil
}

var _ Cache = (*MemoryCache)(nil)
