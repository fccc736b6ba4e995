package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"stealthcompany.com/appointment-network/internal/graph"
)

// Insight types and priorities.
const (
	InsightHighRisk    = "High Risk"
	InsightSite        = "Site Performance"
	InsightDemographic = "Demographic Pattern"

	PriorityUrgent = "Urgent"
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
)

// Insight is one actionable recommendation derived from the tiered
// communities. CommunityID and PatientsAffected are set only on insights
// scoped to a single community.
type Insight struct {
	CommunityID      *int   `json:"community_id,omitempty"`
	Type             string `json:"type"`
	Priority         string `json:"priority"`
	PatientsAffected int    `json:"patients_affected,omitempty"`
	KeyIssue         string `json:"key_issue"`
	Recommendation   string `json:"recommendation"`
}

// GenerateInsights derives recommendations from tiered community statistics.
// The rules are fixed and the output depends only on the input ordering, so
// identical runs produce identical insights.
func GenerateInsights(stats []CommunityStats) []Insight {
	insights := make([]Insight, 0, len(stats)+2)

	var highSiteRates []float64
	for _, s := range stats {
		if s.RiskLevel != graph.RiskHigh {
			continue
		}

		id := s.CommunityID
		insights = append(insights, Insight{
			CommunityID:      &id,
			Type:             InsightHighRisk,
			Priority:         PriorityUrgent,
			PatientsAffected: s.PatientsCount,
			KeyIssue:         fmt.Sprintf("High DNA rate (%.1f%%)", s.AvgDNARate*100),
			Recommendation:   fmt.Sprintf("Focus intervention on %s patients", s.DominantAgeGroup),
		})
		highSiteRates = append(highSiteRates, s.AvgSiteDNARate)
	}

	if len(highSiteRates) > 0 {
		if avgSiteDNA := stat.Mean(highSiteRates, nil); avgSiteDNA > 0.2 {
			insights = append(insights, Insight{
				Type:           InsightSite,
				Priority:       PriorityHigh,
				KeyIssue:       fmt.Sprintf("Sites in high-risk communities have %.1f%% DNA rate", avgSiteDNA*100),
				Recommendation: "Review site capacity and scheduling practices",
			})
		}
	}

	if group, ok := riskiestAgeGroup(stats); ok {
		insights = append(insights, Insight{
			Type:           InsightDemographic,
			Priority:       PriorityMedium,
			KeyIssue:       fmt.Sprintf("%s patients show highest community risk", group),
			Recommendation: fmt.Sprintf("Develop targeted engagement strategies for %s demographic", group),
		})
	}

	return insights
}

// riskiestAgeGroup finds the dominant age group whose communities carry the
// highest mean risk score, enumeration order breaking ties.
func riskiestAgeGroup(stats []CommunityStats) (string, bool) {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range stats {
		sums[s.DominantAgeGroup] += s.RiskScore
		counts[s.DominantAgeGroup]++
	}

	var (
		best     string
		bestMean float64
		found    bool
	)
	for _, group := range graph.AgeGroupOrder {
		if counts[group] == 0 {
			continue
		}
		if mean := sums[group] / float64(counts[group]); !found || mean > bestMean {
			best, bestMean, found = group, mean, true
		}
	}
	return best, found
}
