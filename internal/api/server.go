// Package api exposes the analysis pipeline and its published results over
// HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointment-network/internal/metrics"
	"stealthcompany.com/appointment-network/internal/run"
)

// Pipeline is the slice of the runner the HTTP layer drives.
type Pipeline interface {
	Status() run.Status
	Latest() *run.Result
	Start(ctx context.Context) (string, error)
}

// Server holds the handler dependencies.
type Server struct {
	pipeline Pipeline
}

// NewServer creates a server over the given pipeline.
func NewServer(pipeline Pipeline) *Server {
	return &Server{pipeline: pipeline}
}

// SetupRoutes configures and returns the HTTP router
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()

	// Add middleware to all routes
	r.Use(metrics.MetricsMiddleware)

	// Service and run lifecycle
	r.HandleFunc("/", s.RootHandler).Methods("GET")
	r.HandleFunc("/health", s.HealthHandler).Methods("GET")
	r.HandleFunc("/status", s.StatusHandler).Methods("GET")
	r.HandleFunc("/initialize", s.InitializeHandler).Methods("POST")

	// Graph endpoints
	r.HandleFunc("/graph/data", s.GraphDataHandler).Methods("GET")
	r.HandleFunc("/graph/metadata", s.GraphMetadataHandler).Methods("GET")
	r.HandleFunc("/graph/sample/{size}", s.GraphSampleHandler).Methods("GET")

	// Community endpoints
	r.HandleFunc("/communities", s.CommunitiesHandler).Methods("GET")
	r.HandleFunc("/communities/{id}", s.CommunityHandler).Methods("GET")
	r.HandleFunc("/insights", s.InsightsHandler).Methods("GET")

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
