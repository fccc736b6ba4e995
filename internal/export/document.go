// Package export assembles the analysis results into the JSON document
// consumed by the D3.js renderer. The document is self-contained: a renderer
// can rebuild the full visualization from it without re-running analysis.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Node kinds.
const (
	NodeTypePatient = "patient"
	NodeTypeSite    = "site"
)

// Document is the complete export payload.
type Document struct {
	Metadata    Metadata    `json:"metadata"`
	Nodes       []Node      `json:"nodes"`
	Links       []Link      `json:"links"`
	Communities []Community `json:"communities"`
	Summary     Summary     `json:"summary"`
}

// Metadata describes the run that produced the document.
type Metadata struct {
	TotalNodes            int        `json:"total_nodes"`
	TotalEdges            int        `json:"total_edges"`
	TotalCommunities      int        `json:"total_communities"`
	HighRiskCommunities   int        `json:"high_risk_communities"`
	MediumRiskCommunities int        `json:"medium_risk_communities"`
	LowRiskCommunities    int        `json:"low_risk_communities"`
	Thresholds            Thresholds `json:"thresholds"`
	GeneratedAt           time.Time  `json:"generated_at"`
	Algorithm             string     `json:"algorithm"`
}

// Thresholds are the risk score cutoffs used to tier communities.
type Thresholds struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// Node is one exported graph node, exactly one of the two kinds.
type Node struct {
	Patient *PatientNode
	Site    *SiteNode
}

// PatientNode is the export shape of a patient. Age stays null when the
// source rows never carried a parseable age.
type PatientNode struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Community    int      `json:"community"`
	RiskLevel    string   `json:"risk_level"`
	DNARate      float64  `json:"dna_rate"`
	AgeGroup     string   `json:"age_group"`
	Age          *float64 `json:"age"`
	Appointments int      `json:"appointments"`
	DNACount     int      `json:"dna_count"`
	UniqueSites  int      `json:"unique_sites"`
	Postcode     string   `json:"postcode"`
	RiskCategory string   `json:"risk_category"`
}

// SiteNode is the export shape of a treatment site.
type SiteNode struct {
	ID                string  `json:"id"`
	Type              string  `json:"type"`
	Community         int     `json:"community"`
	RiskLevel         string  `json:"risk_level"`
	DNARate           float64 `json:"dna_rate"`
	Location          string  `json:"location"`
	Appointments      int     `json:"appointments"`
	DNACount          int     `json:"dna_count"`
	UniquePatients    int     `json:"unique_patients"`
	TreatmentFunction string  `json:"treatment_function"`
	OrgCode           string  `json:"org_code"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	switch {
	case n.Patient != nil:
		return json.Marshal(n.Patient)
	case n.Site != nil:
		return json.Marshal(n.Site)
	default:
		return nil, errors.New("node has neither patient nor site payload")
	}
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var kind struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &kind); err != nil {
		return err
	}

	switch kind.Type {
	case NodeTypePatient:
		n.Patient = new(PatientNode)
		return json.Unmarshal(data, n.Patient)
	case NodeTypeSite:
		n.Site = new(SiteNode)
		return json.Unmarshal(data, n.Site)
	default:
		return fmt.Errorf("unknown node type %q", kind.Type)
	}
}

// ID returns the node identifier regardless of kind.
func (n Node) ID() string {
	if n.Patient != nil {
		return n.Patient.ID
	}
	if n.Site != nil {
		return n.Site.ID
	}
	return ""
}

// Type returns the node kind label.
func (n Node) Type() string {
	if n.Patient != nil {
		return NodeTypePatient
	}
	if n.Site != nil {
		return NodeTypeSite
	}
	return ""
}

// CommunityID returns the community the node was assigned to.
func (n Node) CommunityID() int {
	if n.Patient != nil {
		return n.Patient.Community
	}
	if n.Site != nil {
		return n.Site.Community
	}
	return -1
}

// Link is one exported patient-site edge. Strength is the edge weight scaled
// onto [0,1] for the D3 force layout.
type Link struct {
	Source            string  `json:"source"`
	Target            string  `json:"target"`
	Weight            int     `json:"weight"`
	DNACount          int     `json:"dna_count"`
	DNARate           float64 `json:"dna_rate"`
	Strength          float64 `json:"strength"`
	TreatmentFunction string  `json:"treatment_function,omitempty"`
	Outcome           string  `json:"outcome,omitempty"`
}

// Community is the export shape of one analyzed community.
type Community struct {
	ID                 int     `json:"id"`
	Patients           int     `json:"patients"`
	Sites              int     `json:"sites"`
	AvgDNARate         float64 `json:"avg_dna_rate"`
	RiskScore          float64 `json:"risk_score"`
	DominantAge        string  `json:"dominant_age"`
	HighRiskPatients   int     `json:"high_risk_patients"`
	MediumRiskPatients int     `json:"medium_risk_patients"`
	LowRiskPatients    int     `json:"low_risk_patients"`
	RiskLevel          string  `json:"risk_level"`
}

// Summary carries network-wide totals for the dashboard header.
type Summary struct {
	TotalPatients    int            `json:"total_patients"`
	TotalSites       int            `json:"total_sites"`
	OverallDNARate   float64        `json:"overall_dna_rate"`
	AgeGroups        map[string]int `json:"age_groups"`
	RiskDistribution map[string]int `json:"risk_distribution"`
}
