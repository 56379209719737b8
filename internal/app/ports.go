package app

import (
	"context"

	"quiz-rank-service/internal/domain"
)

// SnapshotStore is the authoritative leaderboard document store. Get returns
// domain.ErrSnapshotNotFound when a group has no precomputed document yet.
// Put upserts under the same schema the scheduled producer writes, so both
// producers look identical to every future reader.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, groupID string) (*domain.LeaderboardSnapshot, error)
	PutSnapshot(ctx context.Context, snapshot *domain.LeaderboardSnapshot) error
}

// SnapshotCache is the ephemeral freshness cache keyed by group. Get returns
// the snapshot (possibly nil) and whether it is still inside the TTL window;
// a stale snapshot is returned non-nil with fresh=false so callers can render
// it while a refresh runs. Losing the cache loses latency, never correctness.
type SnapshotCache interface {
	Get(ctx context.Context, groupID string) (snapshot *domain.LeaderboardSnapshot, fresh bool, err error)
	Put(ctx context.Context, groupID string, snapshot *domain.LeaderboardSnapshot) error
	Invalidate(ctx context.Context, groupID string) error
}

// ActivityStore exposes the raw records the fallback aggregation rebuilds a
// leaderboard from. All reads are group-scoped and read-only.
type ActivityStore interface {
	ListMembers(ctx context.Context, groupID string) ([]domain.Member, error)
	ListContent(ctx context.Context, groupID string) ([]domain.ContentItem, error)
	ListAttempts(ctx context.Context, groupID string) ([]domain.AttemptRecord, error)
	ListTeams(ctx context.Context, groupID string) ([]string, error)
}

// SnapshotBuilder rebuilds a full leaderboard without a precomputed document.
type SnapshotBuilder interface {
	Build(ctx context.Context, groupID string) (*domain.LeaderboardSnapshot, error)
}

// Notifier carries change signals for a group's leaderboard document.
// Subscribe delivers a tick whenever the document changes; Publish emits one
// (the service publishes after a self-healing write).
type Notifier interface {
	Subscribe(ctx context.Context, groupID string) (<-chan struct{}, func(), error)
	Publish(ctx context.Context, groupID string) error
}
