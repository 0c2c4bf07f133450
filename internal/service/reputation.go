package service

import (
	"math"

	"github.com/spec-kit/modcenter/internal/domain"
)

const (
	responseGraceSeconds = 300
	reliabilityScore     = 100
	sustainabilityScore  = 100
)

// CalculateReputation folds rolling statistics into a 0-100 score. It is pure
// and safe for concurrent use.
//
// Reliability and sustainability are fixed at 100 until ticket-quality and
// burnout signals are folded in.
func CalculateReputation(stats domain.ModeratorStats) domain.ReputationScore {
	consistency := clamp(100-stats.ReopenRate*100*2, 0, 100)

	responsiveness := 100.0
	if stats.AvgResponseTime > responseGraceSeconds {
		responsiveness = math.Max(0, 100-(stats.AvgResponseTime-responseGraceSeconds)/60)
	}

	total := math.Round(consistency*0.4 + responsiveness*0.4 + reliabilityScore*0.2)

	return domain.ReputationScore{
		Total:          int(clamp(total, 0, 100)),
		Consistency:    consistency,
		Reliability:    reliabilityScore,
		Sustainability: sustainabilityScore,
		Responsiveness: responsiveness,
	}
}

// NormalizeScores maps raw totals onto the leaderboard scale. Totals are
// already on 0-100, so values are returned unchanged.
func NormalizeScores(scores []int) []int {
	out := make([]int, len(scores))
	copy(out, scores)
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
