package domain

import "testing"

func twoRowSnapshot() *LeaderboardSnapshot {
	return &LeaderboardSnapshot{
		GroupID: "g1",
		Members: []RankedMember{
			{MemberID: "u2", Score: 33, Rank: 42, Cosmetics: []CosmeticRef{{ItemID: "hat"}}},
			{MemberID: "u1", Score: 32, Rank: 0},
		},
		Teams: []TeamRankEntry{
			{Team: "B", Score: 60, Rank: 9},
			{Team: "A", Score: 41, Rank: 9},
		},
	}
}

func TestRenumberDerivesRanksFromOrder(t *testing.T) {
	out := twoRowSnapshot().Renumber()
	for i, m := range out.Members {
		if m.Rank != i+1 {
			t.Fatalf("member %d rank %d", i, m.Rank)
		}
	}
	for i, team := range out.Teams {
		if team.Rank != i+1 {
			t.Fatalf("team %d rank %d", i, team.Rank)
		}
	}
}

func TestRenumberLeavesOriginalAlone(t *testing.T) {
	s := twoRowSnapshot()
	_ = s.Renumber()
	if s.Members[0].Rank != 42 {
		t.Fatalf("renumber mutated its receiver: %+v", s.Members[0])
	}
}

func TestCloneIsolatesCosmetics(t *testing.T) {
	s := twoRowSnapshot()
	out := s.Clone()
	out.Members[0].Cosmetics[0].ItemID = "changed"
	if s.Members[0].Cosmetics[0].ItemID != "hat" {
		t.Fatalf("clone shares cosmetic backing array")
	}
}

func TestFindMember(t *testing.T) {
	s := twoRowSnapshot()
	if got := s.FindMember("u1"); got != 1 {
		t.Fatalf("expected index 1, got %d", got)
	}
	if got := s.FindMember("nope"); got != -1 {
		t.Fatalf("expected -1 for unknown member, got %d", got)
	}
}
