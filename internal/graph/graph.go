// Package graph models the bipartite patient/site association graph built
// from appointment records. Patients and sites are distinct node kinds and
// edges only ever cross kinds, so the graph carries no self-loops.
package graph

import (
	"strings"
	"time"
)

// Node ID prefixes keep the two kinds in disjoint namespaces.
const (
	PatientPrefix = "P_"
	SitePrefix    = "S_"
)

// Age group labels, in their fixed enumeration order.
const (
	AgeGroupChild      = "Child"
	AgeGroupYoungAdult = "Young Adult"
	AgeGroupAdult      = "Adult"
	AgeGroupSenior     = "Senior"
	AgeGroupUnknown    = "Unknown"
)

// AgeGroupOrder is the enumeration order used for mode tie-breaking.
var AgeGroupOrder = []string{
	AgeGroupChild,
	AgeGroupYoungAdult,
	AgeGroupAdult,
	AgeGroupSenior,
	AgeGroupUnknown,
}

// Risk category labels shared by nodes and communities.
const (
	RiskHigh   = "High"
	RiskMedium = "Medium"
	RiskLow    = "Low"
)

// Thresholds are the raw risk-category cutoffs applied to smoothed DNA rates.
type Thresholds struct {
	High float64
	Low  float64
}

// PatientNode aggregates one patient's appointment history. Demographic
// fields come from the patient's first-observed row in ingestion order and
// are immutable for the rest of the run.
type PatientNode struct {
	ID       string
	Key      string
	Index    int64
	Age      *float64
	AgeGroup string
	Postcode string
	OrgCode  string

	TotalAppointments int
	TotalDNAs         int
	DNARate           float64
	UniqueSites       int
	RiskCategory      string
}

// SiteNode aggregates one treatment site's appointment history.
type SiteNode struct {
	ID                string
	Key               string
	Index             int64
	ProviderLocation  string
	OrgCode           string
	TreatmentFunction string

	TotalAppointments int
	TotalDNAs         int
	DNARate           float64
	UniquePatients    int
}

// Edge is the single undirected association between one patient and one
// site. Weight and DNACount accumulate across repeat appointments; the
// ancillary fields hold whatever the last processed row carried.
type Edge struct {
	PatientID string
	SiteID    string

	Weight   int
	DNACount int
	DNARate  float64

	AppointmentDate   *time.Time
	TreatmentFunction string
	ReferringOrg      string
	Outcome           string
}

// Other returns the edge endpoint opposite to the given node ID.
func (e *Edge) Other(nodeID string) string {
	if nodeID == e.PatientID {
		return e.SiteID
	}
	return e.PatientID
}

// Graph is the bipartite appointment graph for one run. Slices preserve
// creation order: patients in first-seen order, then sites, edges in
// first-seen pair order.
type Graph struct {
	Patients []*PatientNode
	Sites    []*SiteNode
	Edges    []*Edge

	patientByID map[string]*PatientNode
	siteByID    map[string]*SiteNode
}

// Patient looks up a patient node by its prefixed ID, returning nil when the
// ID names no patient.
func (g *Graph) Patient(id string) *PatientNode {
	return g.patientByID[id]
}

// Site looks up a site node by its prefixed ID, returning nil when the ID
// names no site.
func (g *Graph) Site(id string) *SiteNode {
	return g.siteByID[id]
}

// NodeCount is the total number of nodes of both kinds.
func (g *Graph) NodeCount() int {
	return len(g.Patients) + len(g.Sites)
}

// EdgeCount is the number of distinct (patient, site) associations.
func (g *Graph) EdgeCount() int {
	return len(g.Edges)
}

// NodeIDs returns every node ID, patients first, in creation order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, g.NodeCount())
	for _, p := range g.Patients {
		ids = append(ids, p.ID)
	}
	for _, s := range g.Sites {
		ids = append(ids, s.ID)
	}
	return ids
}

// IsPatientID reports whether the node ID names a patient.
func IsPatientID(id string) bool {
	return strings.HasPrefix(id, PatientPrefix)
}

// withEdges clones the graph with a replacement edge set, sharing nodes.
func (g *Graph) withEdges(edges []*Edge) *Graph {
	return &Graph{
		Patients:    g.Patients,
		Sites:       g.Sites,
		Edges:       edges,
		patientByID: g.patientByID,
		siteByID:    g.siteByID,
	}
}

// adjacency maps every node ID to its incident edges, in edge order.
func (g *Graph) adjacency() map[string][]*Edge {
	adj := make(map[string][]*Edge, g.NodeCount())
	for _, e := range g.Edges {
		adj[e.PatientID] = append(adj[e.PatientID], e)
		adj[e.SiteID] = append(adj[e.SiteID], e)
	}
	return adj
}

// SmoothedRate applies Bayesian smoothing with a prior of one DNA per five
// appointments. The result is strictly inside (0,1), which keeps low-volume
// histories away from extreme 0% or 100% estimates.
func SmoothedRate(dnas, appointments int) float64 {
	return float64(dnas+1) / float64(appointments+5)
}

// CategorizeRisk maps a smoothed DNA rate onto a risk category.
func CategorizeRisk(rate float64, t Thresholds) string {
	switch {
	case rate > t.High:
		return RiskHigh
	case rate > t.Low:
		return RiskMedium
	default:
		return RiskLow
	}
}

// AgeGroupFor buckets a nullable age into its display group.
func AgeGroupFor(age *float64) string {
	if age == nil {
		return AgeGroupUnknown
	}
	switch {
	case *age < 18:
		return AgeGroupChild
	case *age < 35:
		return AgeGroupYoungAdult
	case *age < 65:
		return AgeGroupAdult
	default:
		return AgeGroupSenior
	}
}
