package memory

import (
	"context"
	"sync"

	"quiz-rank-service/internal/domain"
)

// SnapshotStore is an in-memory stand-in for the authoritative document
// store, used in tests and in demo mode when no Postgres is configured.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.LeaderboardSnapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]*domain.LeaderboardSnapshot)}
}

func (s *SnapshotStore) GetSnapshot(_ context.Context, groupID string) (*domain.LeaderboardSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[groupID]
	if !ok {
		return nil, domain.ErrSnapshotNotFound
	}
	return snapshot, nil
}

func (s *SnapshotStore) PutSnapshot(_ context.Context, snapshot *domain.LeaderboardSnapshot) error {
	s.mu.Lock()
	s.snapshots[snapshot.GroupID] = snapshot
	s.mu.Unlock()
	return nil
}

// GroupSeed is one group's raw records for the static activity store.
type GroupSeed struct {
	Members  []domain.Member
	Content  []domain.ContentItem
	Attempts []domain.AttemptRecord
	Teams    []string
}

// StaticActivityStore serves raw records from a fixed seed map. An unknown
// group is an empty group, matching how the real store behaves for a
// brand-new class.
type StaticActivityStore struct {
	groups map[string]GroupSeed
}

func NewStaticActivityStore(groups map[string]GroupSeed) *StaticActivityStore {
	if groups == nil {
		groups = make(map[string]GroupSeed)
	}
	return &StaticActivityStore{groups: groups}
}

func (s *StaticActivityStore) ListMembers(_ context.Context, groupID string) ([]domain.Member, error) {
	return s.groups[groupID].Members, nil
}

func (s *StaticActivityStore) ListContent(_ context.Context, groupID string) ([]domain.ContentItem, error) {
	return s.groups[groupID].Content, nil
}

func (s *StaticActivityStore) ListAttempts(_ context.Context, groupID string) ([]domain.AttemptRecord, error) {
	return s.groups[groupID].Attempts, nil
}

func (s *StaticActivityStore) ListTeams(_ context.Context, groupID string) ([]string, error) {
	return s.groups[groupID].Teams, nil
}
