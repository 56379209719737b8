package app

import "quiz-rank-service/internal/domain"

// ApplyOverlay patches the viewer's own just-made display changes into a
// snapshot that may have been computed from older data. Only display name
// and cosmetic loadout are touched; score, rank and percentile stay whatever
// the authoritative computation said. If the viewer is not in the snapshot
// (just joined, not yet in any precomputed document), no entry is fabricated;
// the transport layer surfaces that as "not yet ranked".
func ApplyOverlay(snapshot *domain.LeaderboardSnapshot, viewer *domain.ViewerState) *domain.LeaderboardSnapshot {
	if snapshot == nil || viewer == nil {
		return snapshot
	}
	idx := snapshot.FindMember(viewer.MemberID)
	if idx < 0 {
		return snapshot
	}

	out := snapshot.Clone()
	entry := &out.Members[idx]
	if viewer.DisplayName != "" {
		entry.DisplayName = viewer.DisplayName
	}
	cosmetics := viewer.Cosmetics
	if len(cosmetics) > domain.MaxEquippedCosmetics {
		cosmetics = cosmetics[:domain.MaxEquippedCosmetics]
	}
	entry.Cosmetics = append([]domain.CosmeticRef(nil), cosmetics...)
	return out
}
