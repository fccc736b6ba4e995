// Package analysis turns a partitioned appointment graph into community
// statistics, risk tiers, and actionable insights.
package analysis

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"stealthcompany.com/appointment-network/internal/graph"
)

// CommunityStats aggregates the appointment behaviour of one community.
// CommunityID is the community's index within the partition, assigned before
// any reordering.
type CommunityStats struct {
	CommunityID        int
	Size               int
	PatientsCount      int
	SitesCount         int
	AvgDNARate         float64
	MedianDNARate      float64
	StdDNARate         float64
	AvgAge             *float64
	DominantAgeGroup   string
	AvgAppointments    float64
	HighRiskPatients   int
	MediumRiskPatients int
	LowRiskPatients    int
	AvgSiteDNARate     float64
	RiskScore          float64
	RiskLevel          string
}

// Summarize computes statistics for every patient-bearing community and
// returns them ordered by risk score, highest first. Communities without
// patients carry no usable statistics and are dropped.
func Summarize(g *graph.Graph, groups [][]string) []CommunityStats {
	stats := make([]CommunityStats, 0, len(groups))
	for i, group := range groups {
		if s, ok := summarizeOne(g, i, group); ok {
			stats = append(stats, s)
		}
	}

	sort.SliceStable(stats, func(i, j int) bool { return stats[i].RiskScore > stats[j].RiskScore })
	return stats
}

func summarizeOne(g *graph.Graph, id int, group []string) (CommunityStats, bool) {
	var (
		rates        []float64
		ages         []float64
		appointments []float64
		siteRates    []float64
		patients     int
		sites        int
	)
	ageGroups := make(map[string]int)
	riskCounts := make(map[string]int)

	for _, nodeID := range group {
		if p := g.Patient(nodeID); p != nil {
			patients++
			rates = append(rates, p.DNARate)
			appointments = append(appointments, float64(p.TotalAppointments))
			ageGroups[p.AgeGroup]++
			riskCounts[p.RiskCategory]++
			if p.Age != nil {
				ages = append(ages, *p.Age)
			}
			continue
		}
		if s := g.Site(nodeID); s != nil {
			sites++
			siteRates = append(siteRates, s.DNARate)
		}
	}

	if patients == 0 {
		return CommunityStats{}, false
	}

	cs := CommunityStats{
		CommunityID:        id,
		Size:               len(group),
		PatientsCount:      patients,
		SitesCount:         sites,
		AvgDNARate:         stat.Mean(rates, nil),
		MedianDNARate:      median(rates),
		StdDNARate:         stat.PopStdDev(rates, nil),
		DominantAgeGroup:   dominantGroup(ageGroups),
		AvgAppointments:    stat.Mean(appointments, nil),
		HighRiskPatients:   riskCounts[graph.RiskHigh],
		MediumRiskPatients: riskCounts[graph.RiskMedium],
		LowRiskPatients:    riskCounts[graph.RiskLow],
		RiskScore:          RiskScore(rates, riskCounts[graph.RiskHigh], patients),
	}
	if len(ages) > 0 {
		avg := stat.Mean(ages, nil)
		cs.AvgAge = &avg
	}
	if len(siteRates) > 0 {
		cs.AvgSiteDNARate = stat.Mean(siteRates, nil)
	}
	return cs, true
}

// median uses the empirical inverse CDF, matching the quantile convention
// used for tier thresholds.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

// dominantGroup picks the age group with the most patients, the first group
// in enumeration order winning ties.
func dominantGroup(counts map[string]int) string {
	best, bestCount := graph.AgeGroupUnknown, 0
	for _, group := range graph.AgeGroupOrder {
		if counts[group] > bestCount {
			best, bestCount = group, counts[group]
		}
	}
	return best
}
