package analysis

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"stealthcompany.com/appointment-network/internal/config"
	"stealthcompany.com/appointment-network/internal/graph"
)

// Tiering holds the run-scoped cutoffs separating High, Medium and Low risk
// communities.
type Tiering struct {
	High float64
	Low  float64
}

// RiskScore blends a community's average patient DNA rate with its share of
// High-risk patients, weighted 70/30.
func RiskScore(rates []float64, highRisk, totalPatients int) float64 {
	if len(rates) == 0 || totalPatients <= 0 {
		return 0
	}
	return 0.7*stat.Mean(rates, nil) + 0.3*(float64(highRisk)/float64(totalPatients))
}

// TierThresholds derives the cutoffs from the risk score distribution at the
// configured percentiles. Quantiles follow the empirical inverse CDF, so a
// threshold is always one of the observed scores and repeated runs agree
// exactly.
func TierThresholds(stats []CommunityStats, pct config.PercentileConfig) Tiering {
	if len(stats) == 0 {
		return Tiering{}
	}

	scores := make([]float64, len(stats))
	for i, s := range stats {
		scores[i] = s.RiskScore
	}
	sort.Float64s(scores)

	return Tiering{
		High: stat.Quantile(pct.High, stat.Empirical, scores, nil),
		Low:  stat.Quantile(pct.Low, stat.Empirical, scores, nil),
	}
}

// AssignTiers labels every community against the thresholds.
func AssignTiers(stats []CommunityStats, t Tiering) {
	for i := range stats {
		stats[i].RiskLevel = TierFor(stats[i].RiskScore, t)
	}
}

// TierFor classifies a single risk score. High takes precedence when the
// cutoffs collapse to a single value.
func TierFor(score float64, t Tiering) string {
	switch {
	case score >= t.High:
		return graph.RiskHigh
	case score <= t.Low:
		return graph.RiskLow
	default:
		return graph.RiskMedium
	}
}
