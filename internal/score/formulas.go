// Package score holds the pure ranking formulas. Nothing here does I/O or
// keeps state; callers normalize their own inputs.
package score

// Weighting constants. Correctness on official content dominates rank score,
// but raw activity keeps a small positive weight so "never attempt anything"
// can't tie with "attempt and fail everything".
const (
	correctWeight = 5.0
	expWeight     = 0.1

	// Team score is a fixed 40/40/20 convex combination.
	teamExpWeight        = 0.4
	teamCorrectWeight    = 0.4
	teamCompletionWeight = 0.2
)

// RankScore computes an individual's rank score from their correct-answer
// count on official content and cumulative experience. Monotonically
// increasing in both inputs. Negative counts are clamped to zero rather than
// rejected; refusing to render a leaderboard is worse than a defensive one.
func RankScore(correctCount, exp int) float64 {
	if correctCount < 0 {
		correctCount = 0
	}
	if exp < 0 {
		exp = 0
	}
	return correctWeight*float64(correctCount) + expWeight*float64(exp)
}

// TeamScore weighs three already-normalized [0,100] inputs 40/40/20. It does
// no normalization itself; callers use Normalize with a group-wide
// denominator so teams stay comparable. Out-of-range inputs are clamped.
func TeamScore(normalizedExp, correctRate, completionRate float64) float64 {
	return teamExpWeight*clamp01Hundred(normalizedExp) +
		teamCorrectWeight*clamp01Hundred(correctRate) +
		teamCompletionWeight*clamp01Hundred(completionRate)
}

// Normalize scales value against max to [0,100]. A max of zero (nobody has
// any experience yet) yields 0, never NaN.
func Normalize(value, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return clamp01Hundred(value / max * 100)
}

// Percentile returns the share of the population strictly below value,
// scaled to 100. A population of one (or none) is trivially at the top, so
// the result is 100.
func Percentile(value float64, population []float64) float64 {
	if len(population) <= 1 {
		return 100
	}
	below := 0
	for _, v := range population {
		if v < value {
			below++
		}
	}
	return float64(below) / float64(len(population)) * 100
}

func clamp01Hundred(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
