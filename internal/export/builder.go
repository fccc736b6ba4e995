package export

import (
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"stealthcompany.com/appointment-network/internal/analysis"
	"stealthcompany.com/appointment-network/internal/graph"
	"stealthcompany.com/appointment-network/internal/partition"
)

// Build assembles the export document from a partitioned graph and its tiered
// community statistics. Nodes follow graph creation order and communities the
// statistics order (risk score descending). Nodes outside any analyzed
// community fall back to a Medium risk level.
func Build(g *graph.Graph, part *partition.Partition, stats []analysis.CommunityStats, tiers analysis.Tiering, generatedAt time.Time) *Document {
	membership := part.Membership()

	levelByCommunity := make(map[int]string, len(stats))
	for _, s := range stats {
		levelByCommunity[s.CommunityID] = s.RiskLevel
	}

	riskLevelFor := func(nodeID string) (int, string) {
		community, ok := membership[nodeID]
		if !ok {
			return -1, graph.RiskMedium
		}
		level, ok := levelByCommunity[community]
		if !ok {
			return community, graph.RiskMedium
		}
		return community, level
	}

	nodes := make([]Node, 0, g.NodeCount())
	allRates := make([]float64, 0, g.NodeCount())
	ageGroups := make(map[string]int)

	for _, p := range g.Patients {
		community, level := riskLevelFor(p.ID)
		nodes = append(nodes, Node{Patient: &PatientNode{
			ID:           p.ID,
			Type:         NodeTypePatient,
			Community:    community,
			RiskLevel:    level,
			DNARate:      p.DNARate,
			AgeGroup:     p.AgeGroup,
			Age:          p.Age,
			Appointments: p.TotalAppointments,
			DNACount:     p.TotalDNAs,
			UniqueSites:  p.UniqueSites,
			Postcode:     p.Postcode,
			RiskCategory: p.RiskCategory,
		}})
		allRates = append(allRates, p.DNARate)
		ageGroups[p.AgeGroup]++
	}

	for _, s := range g.Sites {
		community, level := riskLevelFor(s.ID)
		nodes = append(nodes, Node{Site: &SiteNode{
			ID:                s.ID,
			Type:              NodeTypeSite,
			Community:         community,
			RiskLevel:         level,
			DNARate:           s.DNARate,
			Location:          s.ProviderLocation,
			Appointments:      s.TotalAppointments,
			DNACount:          s.TotalDNAs,
			UniquePatients:    s.UniquePatients,
			TreatmentFunction: s.TreatmentFunction,
			OrgCode:           s.OrgCode,
		}})
		allRates = append(allRates, s.DNARate)
	}

	links := make([]Link, 0, g.EdgeCount())
	for _, e := range g.Edges {
		links = append(links, Link{
			Source:            e.PatientID,
			Target:            e.SiteID,
			Weight:            e.Weight,
			DNACount:          e.DNACount,
			DNARate:           e.DNARate,
			Strength:          linkStrength(e.Weight),
			TreatmentFunction: e.TreatmentFunction,
			Outcome:           e.Outcome,
		})
	}

	communities := make([]Community, 0, len(stats))
	tierCounts := make(map[string]int, 3)
	for _, s := range stats {
		communities = append(communities, Community{
			ID:                 s.CommunityID,
			Patients:           s.PatientsCount,
			Sites:              s.SitesCount,
			AvgDNARate:         s.AvgDNARate,
			RiskScore:          s.RiskScore,
			DominantAge:        s.DominantAgeGroup,
			HighRiskPatients:   s.HighRiskPatients,
			MediumRiskPatients: s.MediumRiskPatients,
			LowRiskPatients:    s.LowRiskPatients,
			RiskLevel:          s.RiskLevel,
		})
		tierCounts[s.RiskLevel]++
	}

	overallRate := 0.0
	if len(allRates) > 0 {
		overallRate = stat.Mean(allRates, nil)
	}

	doc := &Document{
		Metadata: Metadata{
			TotalNodes:            g.NodeCount(),
			TotalEdges:            g.EdgeCount(),
			TotalCommunities:      len(part.Groups),
			HighRiskCommunities:   tierCounts[graph.RiskHigh],
			MediumRiskCommunities: tierCounts[graph.RiskMedium],
			LowRiskCommunities:    tierCounts[graph.RiskLow],
			Thresholds:            Thresholds{High: tiers.High, Low: tiers.Low},
			GeneratedAt:           generatedAt,
			Algorithm:             part.Algorithm,
		},
		Nodes:       nodes,
		Links:       links,
		Communities: communities,
		Summary: Summary{
			TotalPatients:  len(g.Patients),
			TotalSites:     len(g.Sites),
			OverallDNARate: overallRate,
			AgeGroups:      ageGroups,
			RiskDistribution: map[string]int{
				graph.RiskHigh:   tierCounts[graph.RiskHigh],
				graph.RiskMedium: tierCounts[graph.RiskMedium],
				graph.RiskLow:    tierCounts[graph.RiskLow],
			},
		},
	}

	log.Info().
		Int("nodes", len(doc.Nodes)).
		Int("links", len(doc.Links)).
		Int("communities", len(doc.Communities)).
		Msg("Assembled export document")

	return doc
}

// linkStrength scales an edge weight onto [0,1] for the force layout.
func linkStrength(weight int) float64 {
	strength := float64(weight) / 10.0
	if strength > 1.0 {
		return 1.0
	}
	return strength
}
