package domain

import "errors"

var (
	// ErrSnapshotNotFound means no precomputed leaderboard document exists
	// for the group. Not a failure: it triggers the fallback aggregation.
	ErrSnapshotNotFound = errors.New("leaderboard snapshot not found")
	// ErrLeaderboardUnavailable is the terminal error: no cache, fetch
	// failed and the fallback computation failed too.
	ErrLeaderboardUnavailable = errors.New("leaderboard unavailable")
)
