// Package run drives the analysis pipeline end to end and owns its
// externally visible state. At most one run holds write access to the graph
// at a time; the latest completed result stays published until a newer run
// finishes.
package run

import "time"

// Run states.
const (
	StateNotStarted = "not_started"
	StateRunning    = "running"
	StateCompleted  = "completed"
	StateFailed     = "failed"
)

// Pipeline phases, in execution order.
const (
	PhaseLoadingData          = "loading_data"
	PhaseSamplingData         = "sampling_data"
	PhaseCleaningData         = "cleaning_data"
	PhaseCreatingGraph        = "creating_graph"
	PhaseDetectingCommunities = "detecting_communities"
	PhaseAnalyzingCommunities = "analyzing_communities"
	PhaseIdentifyingRisk      = "identifying_risk"
	PhaseExportingData        = "exporting_data"
)

// Status is the pollable state of the pipeline. Phase is set while running,
// Error while failed. Row and graph counts fill in as the run progresses and
// stay populated on the completed status.
type Status struct {
	RunID          string     `json:"run_id,omitempty"`
	State          string     `json:"state"`
	Phase          string     `json:"phase,omitempty"`
	Error          string     `json:"error,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	LastUpdated    *time.Time `json:"last_updated,omitempty"`
	RowsRead       int        `json:"rows_read,omitempty"`
	RowsSampled    int        `json:"rows_sampled,omitempty"`
	RowsDropped    int        `json:"rows_dropped,omitempty"`
	NodeCount      int        `json:"node_count,omitempty"`
	EdgeCount      int        `json:"edge_count,omitempty"`
	CommunityCount int        `json:"community_count,omitempty"`
}

// Running reports whether the status describes an in-flight run.
func (s Status) Running() bool { return s.State == StateRunning }

// Completed reports whether a run has finished and published its result.
func (s Status) Completed() bool { return s.State == StateCompleted }
