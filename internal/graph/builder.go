package graph

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointment-network/internal/ingest"
)

type patientAccum struct {
	first        ingest.AppointmentRecord
	appointments int
	dnas         int
	sites        map[string]struct{}
}

type siteAccum struct {
	first        ingest.AppointmentRecord
	appointments int
	dnas         int
	patients     map[string]struct{}
}

// Build aggregates normalized appointment records into the bipartite graph.
// Node demographics come from each entity's first-observed row, edge weights
// and DNA counts accumulate per (patient, site) pair, and the remaining edge
// metadata carries whatever the last row for the pair held.
func Build(records []ingest.AppointmentRecord, thresholds Thresholds) (*Graph, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no valid appointment records to build graph from")
	}

	patients := make(map[string]*patientAccum)
	sites := make(map[string]*siteAccum)
	var patientOrder, siteOrder []string

	type pair struct{ patient, site string }
	edges := make(map[pair]*Edge)
	var edgeOrder []pair

	for _, rec := range records {
		pa, ok := patients[rec.PatientKey]
		if !ok {
			pa = &patientAccum{first: rec, sites: make(map[string]struct{})}
			patients[rec.PatientKey] = pa
			patientOrder = append(patientOrder, rec.PatientKey)
		}
		pa.appointments++
		if rec.DNA {
			pa.dnas++
		}
		pa.sites[rec.SiteCode] = struct{}{}

		sa, ok := sites[rec.SiteCode]
		if !ok {
			sa = &siteAccum{first: rec, patients: make(map[string]struct{})}
			sites[rec.SiteCode] = sa
			siteOrder = append(siteOrder, rec.SiteCode)
		}
		sa.appointments++
		if rec.DNA {
			sa.dnas++
		}
		sa.patients[rec.PatientKey] = struct{}{}

		key := pair{rec.PatientKey, rec.SiteCode}
		e, ok := edges[key]
		if !ok {
			e = &Edge{
				PatientID: PatientPrefix + rec.PatientKey,
				SiteID:    SitePrefix + rec.SiteCode,
			}
			edges[key] = e
			edgeOrder = append(edgeOrder, key)
		}
		e.Weight++
		if rec.DNA {
			e.DNACount++
		}
		e.AppointmentDate = rec.AppointmentDate
		e.TreatmentFunction = rec.TreatmentFunction
		e.ReferringOrg = rec.ReferringOrgCode
		e.Outcome = rec.OutcomeCode
	}

	g := &Graph{
		Patients:    make([]*PatientNode, 0, len(patientOrder)),
		Sites:       make([]*SiteNode, 0, len(siteOrder)),
		Edges:       make([]*Edge, 0, len(edgeOrder)),
		patientByID: make(map[string]*PatientNode, len(patientOrder)),
		siteByID:    make(map[string]*SiteNode, len(siteOrder)),
	}

	for i, key := range patientOrder {
		pa := patients[key]
		rate := SmoothedRate(pa.dnas, pa.appointments)
		node := &PatientNode{
			ID:                PatientPrefix + key,
			Key:               key,
			Index:             int64(i),
			Age:               pa.first.Age,
			AgeGroup:          AgeGroupFor(pa.first.Age),
			Postcode:          pa.first.PostcodeSector,
			OrgCode:           pa.first.PatientOrgCode,
			TotalAppointments: pa.appointments,
			TotalDNAs:         pa.dnas,
			DNARate:           rate,
			UniqueSites:       len(pa.sites),
			RiskCategory:      CategorizeRisk(rate, thresholds),
		}
		g.Patients = append(g.Patients, node)
		g.patientByID[node.ID] = node
	}

	for i, key := range siteOrder {
		sa := sites[key]
		node := &SiteNode{
			ID:                SitePrefix + key,
			Key:               key,
			Index:             int64(len(patientOrder) + i),
			ProviderLocation:  sa.first.ProviderLocation,
			OrgCode:           sa.first.ProviderOrgCode,
			TreatmentFunction: sa.first.TreatmentFunction,
			TotalAppointments: sa.appointments,
			TotalDNAs:         sa.dnas,
			DNARate:           SmoothedRate(sa.dnas, sa.appointments),
			UniquePatients:    len(sa.patients),
		}
		g.Sites = append(g.Sites, node)
		g.siteByID[node.ID] = node
	}

	for _, key := range edgeOrder {
		e := edges[key]
		e.DNARate = float64(e.DNACount) / float64(e.Weight)
		g.Edges = append(g.Edges, e)
	}

	log.Info().
		Int("patients", len(g.Patients)).
		Int("sites", len(g.Sites)).
		Int("edges", len(g.Edges)).
		Msg("Built bipartite appointment graph")

	return g, nil
}
