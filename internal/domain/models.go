package domain

import "time"

// MaxEquippedCosmetics caps how many owned items a member can equip at once.
const MaxEquippedCosmetics = 2

// RoleOfficial marks teacher accounts; only content they author counts toward
// rank score, and they are excluded from the ranked member list themselves.
const RoleOfficial = "official"

// Member is one account inside a group, with the cumulative counters the
// activity-recording subsystem maintains. Read-only from this service.
type Member struct {
	ID           string        `json:"id"`
	GroupID      string        `json:"groupId"`
	Team         string        `json:"team"`
	Role         string        `json:"role"`
	DisplayName  string        `json:"displayName"`
	Exp          int           `json:"exp"`
	CorrectTotal int           `json:"correctTotal"`
	AttemptTotal int           `json:"attemptTotal"`
	Cosmetics    []CosmeticRef `json:"cosmetics,omitempty"`
}

// IsOfficial reports whether the member is a teacher-role account.
func (m Member) IsOfficial() bool { return m.Role == RoleOfficial }

// CosmeticRef points at an owned cosmetic item equipped by a member.
type CosmeticRef struct {
	ItemID string `json:"itemId"`
	Slot   string `json:"slot"`
}

// ContentItem is one graded content set. Attempts only count toward rank
// score when the author is an official-role account.
type ContentItem struct {
	ID            string `json:"id"`
	GroupID       string `json:"groupId"`
	AuthorID      string `json:"authorId"`
	QuestionCount int    `json:"questionCount"`
}

// AttemptRecord is one member's result on one content set.
type AttemptRecord struct {
	MemberID     string `json:"memberId"`
	ContentID    string `json:"contentId"`
	AuthorID     string `json:"authorId"`
	CorrectCount int    `json:"correctCount"`
	AttemptCount int    `json:"attemptCount"`
	IsRevision   bool   `json:"isRevision"`
}

// Snapshot sources, recorded so a self-healed document can be told apart
// from one written by the scheduled producer.
const (
	SourceAuthoritative = "authoritative"
	SourceFallback      = "fallback"
)

// RankedMember is one row of a rendered leaderboard.
type RankedMember struct {
	MemberID    string        `json:"memberId"`
	DisplayName string        `json:"displayName"`
	Score       float64       `json:"score"`
	Team        string        `json:"team"`
	Rank        int           `json:"rank"`
	Percentile  float64       `json:"percentile"`
	Cosmetics   []CosmeticRef `json:"cosmetics,omitempty"`
}

// TeamRankEntry is one row of the team standings inside a snapshot.
type TeamRankEntry struct {
	Team        string  `json:"team"`
	Score       float64 `json:"score"`
	Rank        int     `json:"rank"`
	MemberCount int     `json:"memberCount"`
}

// LeaderboardSnapshot is a fully-ranked leaderboard at one point in time.
// It is immutable once produced: every transformation (overlay, renumber on
// load) copies, so a cached snapshot can never tear under a concurrent reader.
type LeaderboardSnapshot struct {
	GroupID           string          `json:"groupId"`
	Members           []RankedMember  `json:"members"`
	Teams             []TeamRankEntry `json:"teams"`
	ParticipationRate float64         `json:"participationRate"`
	GeneratedAt       time.Time       `json:"generatedAt"`
	Source            string          `json:"source"`
}

// Renumber returns a copy with ranks re-derived from array order:
// Members[i].Rank == i+1 and Teams[i].Rank == i+1. Stored rank fields are
// never trusted verbatim; every load path runs its snapshot through here.
func (s *LeaderboardSnapshot) Renumber() *LeaderboardSnapshot {
	out := s.Clone()
	for i := range out.Members {
		out.Members[i].Rank = i + 1
	}
	for i := range out.Teams {
		out.Teams[i].Rank = i + 1
	}
	return out
}

// Clone deep-copies the snapshot so callers can derive new snapshots without
// touching a shared one.
func (s *LeaderboardSnapshot) Clone() *LeaderboardSnapshot {
	out := *s
	out.Members = make([]RankedMember, len(s.Members))
	copy(out.Members, s.Members)
	for i := range out.Members {
		if n := len(s.Members[i].Cosmetics); n > 0 {
			out.Members[i].Cosmetics = make([]CosmeticRef, n)
			copy(out.Members[i].Cosmetics, s.Members[i].Cosmetics)
		}
	}
	out.Teams = make([]TeamRankEntry, len(s.Teams))
	copy(out.Teams, s.Teams)
	return &out
}

// FindMember returns the index of memberID in the ranked list, or -1.
func (s *LeaderboardSnapshot) FindMember(memberID string) int {
	for i := range s.Members {
		if s.Members[i].MemberID == memberID {
			return i
		}
	}
	return -1
}

// ViewerState is the viewer's own, possibly newer, display state. It is the
// only data the live overlay may patch into a snapshot.
type ViewerState struct {
	MemberID    string        `json:"memberId"`
	DisplayName string        `json:"displayName"`
	Cosmetics   []CosmeticRef `json:"cosmetics,omitempty"`
}
