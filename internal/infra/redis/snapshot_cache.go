package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quiz-rank-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// retentionFactor keeps the snapshot body around well past the freshness
// window so a stale-but-renderable copy survives marker expiry.
const retentionFactor = 12

// SnapshotCache stores leaderboard snapshots in Redis with a separate
// freshness marker per group:
//
//	SET rank:lb:{groupID}       {snapshot JSON}  EX ttl*retentionFactor
//	SET rank:lb:{groupID}:fresh 1                EX ttl
//
// A Get with the body present but the marker gone reports fresh=false, which
// is the stale-while-revalidate signal.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

func (c *SnapshotCache) Get(ctx context.Context, groupID string) (*domain.LeaderboardSnapshot, bool, error) {
	raw, err := c.client.Get(ctx, c.bodyKey(groupID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	var snapshot domain.LeaderboardSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		// A corrupt entry is a miss, not a failure.
		return nil, false, nil
	}

	fresh, err := c.client.Exists(ctx, c.freshKey(groupID)).Result()
	if err != nil {
		return &snapshot, false, nil
	}
	return &snapshot, fresh > 0, nil
}

func (c *SnapshotCache) Put(ctx context.Context, groupID string, snapshot *domain.LeaderboardSnapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	pipe := c.client.Pipeline()
	pipe.Set(ctx, c.bodyKey(groupID), raw, c.ttl*retentionFactor)
	pipe.Set(ctx, c.freshKey(groupID), "1", c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (c *SnapshotCache) Invalidate(ctx context.Context, groupID string) error {
	if err := c.client.Del(ctx, c.bodyKey(groupID), c.freshKey(groupID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

func (c *SnapshotCache) bodyKey(groupID string) string {
	return "rank:lb:" + groupID
}

func (c *SnapshotCache) freshKey(groupID string) string {
	return "rank:lb:" + groupID + ":fresh"
}
