package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointment-network/internal/analysis"
	"stealthcompany.com/appointment-network/internal/export"
	"stealthcompany.com/appointment-network/internal/run"
)

const notInitializedMessage = "Analysis not initialized. Call /initialize first."

// RootHandler describes the service and its endpoints
func (s *Server) RootHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Appointment Network Analysis API",
		"endpoints": map[string]string{
			"status":         "/status",
			"initialize":     "/initialize",
			"graph_data":     "/graph/data",
			"graph_metadata": "/graph/metadata",
			"graph_sample":   "/graph/sample/{size}",
			"communities":    "/communities",
			"insights":       "/insights",
			"metrics":        "/metrics",
		},
	})
}

// HealthHandler reports liveness and the current run state
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  s.pipeline.Status().State,
	})
}

// StatusHandler returns the pollable pipeline status
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.pipeline.Status())
}

// InitializeHandler starts a background analysis run. While a run is active
// further requests get 409 with the active phase; after a completed run a new
// one may start and supersedes the published result on success.
func (s *Server) InitializeHandler(w http.ResponseWriter, r *http.Request) {
	// The run outlives this request, so it must not inherit the request
	// context.
	runID, err := s.pipeline.Start(context.Background())
	if err != nil {
		if errors.Is(err, run.ErrRunActive) {
			status := s.pipeline.Status()
			log.Warn().
				Str("phase", status.Phase).
				Msg("Initialize rejected while run active")
			respondJSON(w, http.StatusConflict, map[string]string{
				"error": "Analysis already in progress",
				"phase": status.Phase,
			})
			return
		}
		log.Error().Err(err).Msg("Failed to start analysis run")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("run_id", runID).Msg("Analysis run accepted")
	respondJSON(w, http.StatusAccepted, map[string]string{
		"message": "Analysis started",
		"status":  "initiated",
		"run_id":  runID,
	})
}

// latestDocument returns the published export document, writing the
// not-initialized error when there is none yet.
func (s *Server) latestDocument(w http.ResponseWriter) *export.Document {
	latest := s.pipeline.Latest()
	if latest == nil || latest.Document == nil {
		respondError(w, http.StatusBadRequest, notInitializedMessage)
		return nil
	}
	return latest.Document
}

// GraphDataHandler returns the complete export document
func (s *Server) GraphDataHandler(w http.ResponseWriter, r *http.Request) {
	doc := s.latestDocument(w)
	if doc == nil {
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// GraphMetadataHandler returns metadata and summary without the node and link
// payloads
func (s *Server) GraphMetadataHandler(w http.ResponseWriter, r *http.Request) {
	doc := s.latestDocument(w)
	if doc == nil {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"metadata": doc.Metadata,
		"summary":  doc.Summary,
	})
}

// CommunitiesHandler lists analyzed communities with the tier distribution
func (s *Server) CommunitiesHandler(w http.ResponseWriter, r *http.Request) {
	doc := s.latestDocument(w)
	if doc == nil {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"communities": doc.Communities,
		"summary": map[string]any{
			"total":             len(doc.Communities),
			"risk_distribution": doc.Summary.RiskDistribution,
		},
	})
}

// CommunityHandler returns one community with its member nodes and every link
// touching the community
func (s *Server) CommunityHandler(w http.ResponseWriter, r *http.Request) {
	doc := s.latestDocument(w)
	if doc == nil {
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid community id")
		return
	}

	var community *export.Community
	for i := range doc.Communities {
		if doc.Communities[i].ID == id {
			community = &doc.Communities[i]
			break
		}
	}
	if community == nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("Community %d not found", id))
		return
	}

	communityOf := make(map[string]int, len(doc.Nodes))
	nodes := []export.Node{}
	patients, sites := 0, 0
	for _, n := range doc.Nodes {
		communityOf[n.ID()] = n.CommunityID()
		if n.CommunityID() != id {
			continue
		}
		nodes = append(nodes, n)
		if n.Type() == export.NodeTypePatient {
			patients++
		} else {
			sites++
		}
	}

	// A link belongs to the community when either endpoint does.
	links := []export.Link{}
	for _, l := range doc.Links {
		src, srcOK := communityOf[l.Source]
		dst, dstOK := communityOf[l.Target]
		if (srcOK && src == id) || (dstOK && dst == id) {
			links = append(links, l)
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"community": community,
		"nodes":     nodes,
		"links":     links,
		"stats": map[string]int{
			"node_count": len(nodes),
			"link_count": len(links),
			"patients":   patients,
			"sites":      sites,
		},
	})
}

// InsightsHandler returns the insights generated by the latest run
func (s *Server) InsightsHandler(w http.ResponseWriter, r *http.Request) {
	latest := s.pipeline.Latest()
	if latest == nil || latest.Document == nil {
		respondError(w, http.StatusBadRequest, notInitializedMessage)
		return
	}

	insights := latest.Insights
	if insights == nil {
		insights = []analysis.Insight{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"insights": insights})
}

// GraphSampleHandler returns the first N nodes and the links whose endpoints
// both fall inside the sample
func (s *Server) GraphSampleHandler(w http.ResponseWriter, r *http.Request) {
	doc := s.latestDocument(w)
	if doc == nil {
		return
	}

	size, err := strconv.Atoi(mux.Vars(r)["size"])
	if err != nil || size < 1 {
		respondError(w, http.StatusBadRequest, "invalid sample size")
		return
	}
	if size > len(doc.Nodes) {
		size = len(doc.Nodes)
	}

	nodes := doc.Nodes[:size]
	sampled := make(map[string]bool, size)
	for _, n := range nodes {
		sampled[n.ID()] = true
	}

	links := []export.Link{}
	for _, l := range doc.Links {
		if sampled[l.Source] && sampled[l.Target] {
			links = append(links, l)
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"metadata":    doc.Metadata,
		"nodes":       nodes,
		"links":       links,
		"communities": doc.Communities,
		"summary":     doc.Summary,
	})
}
