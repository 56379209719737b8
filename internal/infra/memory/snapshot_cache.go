package memory

import (
	"context"
	"sync"
	"time"

	"quiz-rank-service/internal/domain"
)

// SnapshotCache is the in-process freshness cache: one entry per group,
// replaced wholesale on every write, never patched. Entries past the TTL are
// still returned (fresh=false) so callers can render stale data while a
// refresh runs.
type SnapshotCache struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	snapshot  *domain.LeaderboardSnapshot
	createdAt time.Time
}

func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return NewSnapshotCacheWithClock(ttl, time.Now)
}

// NewSnapshotCacheWithClock allows deterministic freshness in tests.
func NewSnapshotCacheWithClock(ttl time.Duration, clock func() time.Time) *SnapshotCache {
	return &SnapshotCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cacheEntry),
	}
}

func (c *SnapshotCache) Get(_ context.Context, groupID string) (*domain.LeaderboardSnapshot, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[groupID]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	fresh := c.clock().Sub(entry.createdAt) < c.ttl
	return entry.snapshot, fresh, nil
}

func (c *SnapshotCache) Put(_ context.Context, groupID string, snapshot *domain.LeaderboardSnapshot) error {
	c.mu.Lock()
	c.entries[groupID] = cacheEntry{snapshot: snapshot, createdAt: c.clock()}
	c.mu.Unlock()
	return nil
}

func (c *SnapshotCache) Invalidate(_ context.Context, groupID string) error {
	c.mu.Lock()
	delete(c.entries, groupID)
	c.mu.Unlock()
	return nil
}
