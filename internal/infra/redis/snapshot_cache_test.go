package redis

import (
	"context"
	"testing"
	"time"

	"quiz-rank-service/internal/domain"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func sampleSnapshot() *domain.LeaderboardSnapshot {
	return &domain.LeaderboardSnapshot{
		GroupID: "g1",
		Members: []domain.RankedMember{
			{MemberID: "u1", DisplayName: "Alice", Score: 32, Rank: 1},
		},
		GeneratedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		Source:      domain.SourceAuthoritative,
	}
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewSnapshotCache(newClient(mr), time.Minute)
	ctx := context.Background()

	if err := cache.Put(ctx, "g1", sampleSnapshot()); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, fresh, err := cache.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !fresh {
		t.Fatalf("expected fresh right after put")
	}
	if got == nil || got.Members[0].MemberID != "u1" {
		t.Fatalf("snapshot did not survive the round trip: %+v", got)
	}
}

func TestSnapshotCacheStaleAfterMarkerExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewSnapshotCache(newClient(mr), time.Minute)
	ctx := context.Background()

	if err := cache.Put(ctx, "g1", sampleSnapshot()); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Past the freshness window but inside body retention: stale hit.
	mr.FastForward(2 * time.Minute)
	got, fresh, err := cache.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatalf("body should outlive the freshness marker")
	}
	if fresh {
		t.Fatalf("expected stale after marker expiry")
	}

	// Past retention: clean miss.
	mr.FastForward(30 * time.Minute)
	got, _, err = cache.Get(ctx, "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected miss after retention expiry, got %+v", got)
	}
}

func TestSnapshotCacheInvalidateDropsBothKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewSnapshotCache(newClient(mr), time.Minute)
	ctx := context.Background()

	if err := cache.Put(ctx, "g1", sampleSnapshot()); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := cache.Invalidate(ctx, "g1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("rank:lb:g1") || mr.Exists("rank:lb:g1:fresh") {
		t.Fatalf("expected both keys removed")
	}
}
