package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"quiz-rank-service/internal/domain"
	"quiz-rank-service/internal/score"

	"golang.org/x/sync/errgroup"
)

// Aggregator rebuilds a full leaderboard snapshot from raw membership and
// activity records. It is pure orchestration over an ActivityStore: no
// caching, no persistence, so it stays independently testable. Persisting
// its output back to the authoritative store is the service's job.
type Aggregator struct {
	activity ActivityStore
	clock    func() time.Time
}

func NewAggregator(activity ActivityStore) *Aggregator {
	return &Aggregator{activity: activity, clock: time.Now}
}

// NewAggregatorWithClock is test-only for deterministic timestamps.
func NewAggregatorWithClock(activity ActivityStore, now func() time.Time) *Aggregator {
	return &Aggregator{activity: activity, clock: now}
}

// attemptTally is the per-member fold over surviving attempt records.
type attemptTally struct {
	correct   int
	attempted int
	sets      map[string]struct{} // distinct official content sets touched
}

// Build aggregates one group's leaderboard from scratch. An empty group is a
// valid empty snapshot, not an error.
func (a *Aggregator) Build(ctx context.Context, groupID string) (*domain.LeaderboardSnapshot, error) {
	var (
		members  []domain.Member
		content  []domain.ContentItem
		attempts []domain.AttemptRecord
		teams    []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		members, err = a.activity.ListMembers(gctx, groupID)
		return err
	})
	g.Go(func() (err error) {
		content, err = a.activity.ListContent(gctx, groupID)
		return err
	})
	g.Go(func() (err error) {
		attempts, err = a.activity.ListAttempts(gctx, groupID)
		return err
	})
	g.Go(func() (err error) {
		teams, err = a.activity.ListTeams(gctx, groupID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", groupID, err)
	}

	officials := make(map[string]struct{})
	regulars := make([]domain.Member, 0, len(members))
	for _, m := range members {
		if m.IsOfficial() {
			officials[m.ID] = struct{}{}
		} else {
			regulars = append(regulars, m)
		}
	}

	officialContent := make(map[string]struct{})
	for _, c := range content {
		if _, ok := officials[c.AuthorID]; ok {
			officialContent[c.ID] = struct{}{}
		}
	}

	tallies := a.foldAttempts(attempts, officialContent)

	ranked := a.rankMembers(regulars, tallies)
	teamEntries := a.rankTeams(regulars, tallies, teams, len(officialContent))

	snapshot := &domain.LeaderboardSnapshot{
		GroupID:           groupID,
		Members:           ranked,
		Teams:             teamEntries,
		ParticipationRate: participationRate(regulars),
		GeneratedAt:       a.clock(),
		Source:            domain.SourceFallback,
	}
	return snapshot.Renumber(), nil
}

// foldAttempts sums correct/attempted per member, dropping revisions and
// anything not in the official content set.
func (a *Aggregator) foldAttempts(attempts []domain.AttemptRecord, officialContent map[string]struct{}) map[string]*attemptTally {
	tallies := make(map[string]*attemptTally)
	for _, at := range attempts {
		if at.IsRevision {
			continue
		}
		if _, ok := officialContent[at.ContentID]; !ok {
			continue
		}
		t := tallies[at.MemberID]
		if t == nil {
			t = &attemptTally{sets: make(map[string]struct{})}
			tallies[at.MemberID] = t
		}
		t.correct += at.CorrectCount
		t.attempted += at.AttemptCount
		t.sets[at.ContentID] = struct{}{}
	}
	return tallies
}

// rankMembers scores every regular member, sorts descending and leaves rank
// assignment to Renumber. Exact score ties keep their input order and get
// distinct ranks; stable-but-arbitrary beats rank collisions in the UI.
func (a *Aggregator) rankMembers(regulars []domain.Member, tallies map[string]*attemptTally) []domain.RankedMember {
	ranked := make([]domain.RankedMember, 0, len(regulars))
	for _, m := range regulars {
		correct := 0
		if t := tallies[m.ID]; t != nil {
			correct = t.correct
		}
		cosmetics := m.Cosmetics
		if len(cosmetics) > domain.MaxEquippedCosmetics {
			cosmetics = cosmetics[:domain.MaxEquippedCosmetics]
		}
		ranked = append(ranked, domain.RankedMember{
			MemberID:    m.ID,
			DisplayName: m.DisplayName,
			Team:        m.Team,
			Score:       score.RankScore(correct, m.Exp),
			Cosmetics:   append([]domain.CosmeticRef(nil), cosmetics...),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	population := make([]float64, len(ranked))
	for i := range ranked {
		population[i] = ranked[i].Score
	}
	for i := range ranked {
		ranked[i].Percentile = score.Percentile(ranked[i].Score, population)
	}
	return ranked
}

// rankTeams computes one entry per team. The exp input is normalized against
// the group-wide max so teams share one denominator; correct-rate averages
// over every member with zero-attempt members contributing 0 (excluding them
// would reward non-participation); completion counts distinct official sets
// against the group's official content total. A team with no members still
// appears with score 0 so the UI can show "no data" instead of a gap.
func (a *Aggregator) rankTeams(regulars []domain.Member, tallies map[string]*attemptTally, declared []string, officialTotal int) []domain.TeamRankEntry {
	byTeam := make(map[string][]domain.Member)
	names := make([]string, 0, len(declared))
	seen := make(map[string]struct{})
	for _, name := range declared {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	for _, m := range regulars {
		if m.Team == "" {
			continue
		}
		if _, ok := seen[m.Team]; !ok {
			seen[m.Team] = struct{}{}
			names = append(names, m.Team)
		}
		byTeam[m.Team] = append(byTeam[m.Team], m)
	}
	sort.Strings(names)

	maxExp := 0
	for _, m := range regulars {
		if m.Exp > maxExp {
			maxExp = m.Exp
		}
	}

	entries := make([]domain.TeamRankEntry, 0, len(names))
	for _, name := range names {
		members := byTeam[name]
		entry := domain.TeamRankEntry{Team: name, MemberCount: len(members)}
		if len(members) > 0 {
			expSum := 0
			correctRateSum := 0.0
			completionSum := 0.0
			for _, m := range members {
				expSum += m.Exp
				if t := tallies[m.ID]; t != nil && t.attempted > 0 {
					correctRateSum += float64(t.correct) / float64(t.attempted) * 100
					if officialTotal > 0 {
						completionSum += float64(len(t.sets)) / float64(officialTotal) * 100
					}
				}
			}
			n := float64(len(members))
			entry.Score = score.TeamScore(
				score.Normalize(float64(expSum)/n, float64(maxExp)),
				correctRateSum/n,
				completionSum/n,
			)
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	return entries
}

func participationRate(regulars []domain.Member) float64 {
	if len(regulars) == 0 {
		return 0
	}
	active := 0
	for _, m := range regulars {
		if m.Exp > 0 {
			active++
		}
	}
	return float64(active) / float64(len(regulars))
}
