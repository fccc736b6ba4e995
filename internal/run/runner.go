package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointment-network/internal/analysis"
	"stealthcompany.com/appointment-network/internal/config"
	"stealthcompany.com/appointment-network/internal/export"
	"stealthcompany.com/appointment-network/internal/graph"
	"stealthcompany.com/appointment-network/internal/ingest"
	"stealthcompany.com/appointment-network/internal/metrics"
	"stealthcompany.com/appointment-network/internal/partition"
)

// ErrRunActive rejects a start request while another run holds the pipeline.
var ErrRunActive = errors.New("analysis run already in progress")

// Store persists what a run produces. Implementations must tolerate being
// called with a canceled run context for status updates.
type Store interface {
	SaveRun(ctx context.Context, result *Result) error
	SaveStatus(ctx context.Context, status Status) error
}

// Result bundles everything one completed run produced.
type Result struct {
	RunID       string                    `json:"run_id"`
	Document    *export.Document          `json:"document"`
	Insights    []analysis.Insight        `json:"insights"`
	Stats       []analysis.CommunityStats `json:"-"`
	CompletedAt time.Time                 `json:"completed_at"`
}

// Runner executes the pipeline as one logical unit: normalize, build,
// partition, score, insight, export. It enforces the single-writer model and
// atomically publishes the latest completed result.
type Runner struct {
	cfg    config.AnalysisConfig
	inputs []string
	store  Store

	mu     sync.RWMutex
	status Status
	latest *Result
	active bool
	cancel context.CancelFunc
}

// NewRunner wires a runner over the given input files and store. A nil store
// disables persistence.
func NewRunner(cfg config.AnalysisConfig, inputs []string, store Store) *Runner {
	return &Runner{
		cfg:    cfg,
		inputs: inputs,
		store:  store,
		status: Status{State: StateNotStarted},
	}
}

// Status returns a copy of the current pipeline state.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Latest returns the most recently completed result, or nil before the first
// run finishes.
func (r *Runner) Latest() *Result {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Restore publishes a previously persisted result, typically loaded from the
// store at startup, so read endpoints work before the first in-process run.
func (r *Runner) Restore(result *Result) {
	if result == nil || result.Document == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active || r.latest != nil {
		return
	}

	completed := result.CompletedAt
	r.latest = result
	r.status = Status{
		RunID:          result.RunID,
		State:          StateCompleted,
		CompletedAt:    &completed,
		LastUpdated:    &completed,
		NodeCount:      result.Document.Metadata.TotalNodes,
		EdgeCount:      result.Document.Metadata.TotalEdges,
		CommunityCount: result.Document.Metadata.TotalCommunities,
	}

	log.Info().
		Str("run_id", result.RunID).
		Int("nodes", result.Document.Metadata.TotalNodes).
		Msg("Restored previous analysis result")
}

// Start launches a run in the background and returns its ID, or ErrRunActive
// while another run is in flight.
func (r *Runner) Start(ctx context.Context) (string, error) {
	runID, runCtx, err := r.begin(ctx)
	if err != nil {
		return "", err
	}

	go func() {
		if _, err := r.execute(runCtx, runID); err != nil {
			log.Error().Err(err).Str("run_id", runID).Msg("Analysis run failed")
		}
	}()
	return runID, nil
}

// Run executes the pipeline synchronously.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	runID, runCtx, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	return r.execute(runCtx, runID)
}

// Stop cancels the active run, if any. The canceled run discards its partial
// state; the last completed result stays published.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Runner) begin(ctx context.Context) (string, context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return "", nil, ErrRunActive
	}

	runID := uuid.New().String()
	runCtx, cancel := context.WithCancel(ctx)
	now := time.Now().UTC()

	r.active = true
	r.cancel = cancel
	r.status = Status{
		RunID:       runID,
		State:       StateRunning,
		StartedAt:   &now,
		LastUpdated: &now,
	}

	metrics.RecordRunStarted()
	log.Info().Str("run_id", runID).Msg("Starting analysis run")
	return runID, runCtx, nil
}

// execute walks the pipeline phases in order. Cancellation is observed at
// phase boundaries; the two bulk I/O points (initial load, final export) also
// respect the run context.
func (r *Runner) execute(ctx context.Context, runID string) (*Result, error) {
	started := time.Now()

	if err := r.setPhase(ctx, runID, PhaseLoadingData); err != nil {
		return nil, r.fail(ctx, runID, err)
	}
	phaseStart := time.Now()
	rows, err := ingest.NewReader(r.inputs...).ReadAll()
	if err != nil {
		return nil, r.fail(ctx, runID, fmt.Errorf("failed to load appointment data: %w", err))
	}
	metrics.RecordAnalysisPhase(PhaseLoadingData, time.Since(phaseStart))
	r.updateStatus(func(s *Status) { s.RowsRead = len(rows) })

	if err := r.setPhase(ctx, runID, PhaseSamplingData); err != nil {
		return nil, r.fail(ctx, runID, err)
	}
	phaseStart = time.Now()
	sampled := ingest.Sample(rows, r.cfg.Sampling.MaxRecords, r.cfg.Sampling.Seed)
	metrics.RecordAnalysisPhase(PhaseSamplingData, time.Since(phaseStart))
	r.updateStatus(func(s *Status) { s.RowsSampled = len(sampled) })

	if err := r.setPhase(ctx, runID, PhaseCleaningData); err != nil {
		return nil, r.fail(ctx, runID, err)
	}
	phaseStart = time.Now()
	batch := ingest.Normalize(sampled)
	metrics.RecordAnalysisPhase(PhaseCleaningData, time.Since(phaseStart))
	metrics.RecordRowsProcessed(len(rows), len(sampled), batch.DroppedRows)
	metrics.RecordAttendanceCodes(batch.CodeDistribution)
	r.updateStatus(func(s *Status) { s.RowsDropped = batch.DroppedRows })

	if err := r.setPhase(ctx, runID, PhaseCreatingGraph); err != nil {
		return nil, r.fail(ctx, runID, err)
	}
	phaseStart = time.Now()
	g, err := graph.Build(batch.Records, graph.Thresholds{
		High: r.cfg.RiskThresholds.High,
		Low:  r.cfg.RiskThresholds.Low,
	})
	if err != nil {
		return nil, r.fail(ctx, runID, fmt.Errorf("failed to build appointment graph: %w", err))
	}
	if r.cfg.Backbone.Enabled {
		g = graph.ApplyBackbone(g, r.cfg.Backbone.Alpha)
	}
	metrics.RecordAnalysisPhase(PhaseCreatingGraph, time.Since(phaseStart))
	r.updateStatus(func(s *Status) {
		s.NodeCount = g.NodeCount()
		s.EdgeCount = g.EdgeCount()
	})

	if err := r.setPhase(ctx, runID, PhaseDetectingCommunities); err != nil {
		return nil, r.fail(ctx, runID, err)
	}
	phaseStart = time.Now()
	part, err := partition.Detect(g, r.cfg)
	if err != nil {
		return nil, r.fail(ctx, runID, fmt.Errorf("failed to detect communities: %w", err))
	}
	metrics.RecordAnalysisPhase(PhaseDetectingCommunities, time.Since(phaseStart))
	r.updateStatus(func(s *Status) { s.CommunityCount = len(part.Groups) })

	if err := r.setPhase(ctx, runID, PhaseAnalyzingCommunities); err != nil {
		return nil, r.fail(ctx, runID, err)
	}
	phaseStart = time.Now()
	stats := analysis.Summarize(g, part.Groups)
	metrics.RecordAnalysisPhase(PhaseAnalyzingCommunities, time.Since(phaseStart))

	if err := r.setPhase(ctx, runID, PhaseIdentifyingRisk); err != nil {
		return nil, r.fail(ctx, runID, err)
	}
	phaseStart = time.Now()
	tiers := analysis.TierThresholds(stats, r.cfg.Percentiles)
	analysis.AssignTiers(stats, tiers)
	insights := analysis.GenerateInsights(stats)
	metrics.RecordAnalysisPhase(PhaseIdentifyingRisk, time.Since(phaseStart))

	if err := r.setPhase(ctx, runID, PhaseExportingData); err != nil {
		return nil, r.fail(ctx, runID, err)
	}
	phaseStart = time.Now()
	completedAt := time.Now().UTC()
	result := &Result{
		RunID:       runID,
		Document:    export.Build(g, part, stats, tiers, completedAt),
		Insights:    insights,
		Stats:       stats,
		CompletedAt: completedAt,
	}
	if r.store != nil {
		if err := r.store.SaveRun(ctx, result); err != nil {
			return nil, r.fail(ctx, runID, fmt.Errorf("failed to persist export: %w", err))
		}
	}
	metrics.RecordAnalysisPhase(PhaseExportingData, time.Since(phaseStart))
	metrics.RecordGraphSize(g.NodeCount(), g.EdgeCount(), len(part.Groups))

	r.complete(ctx, result)
	metrics.RecordRunCompleted(time.Since(started))
	return result, nil
}

// setPhase advances the visible phase, returning the context error instead
// when the run has been canceled.
func (r *Runner) setPhase(ctx context.Context, runID, phase string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.updateStatus(func(s *Status) { s.Phase = phase })
	log.Info().Str("run_id", runID).Str("phase", phase).Msg("Analysis phase started")
	r.persistStatus(ctx)
	return nil
}

func (r *Runner) updateStatus(apply func(*Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	apply(&r.status)
	now := time.Now().UTC()
	r.status.LastUpdated = &now
}

// complete atomically publishes the result and flips the external state.
func (r *Runner) complete(ctx context.Context, result *Result) {
	r.mu.Lock()
	completed := result.CompletedAt
	r.latest = result
	r.active = false
	r.cancel = nil
	r.status.State = StateCompleted
	r.status.Phase = ""
	r.status.CompletedAt = &completed
	r.status.LastUpdated = &completed
	r.status.NodeCount = result.Document.Metadata.TotalNodes
	r.status.EdgeCount = result.Document.Metadata.TotalEdges
	r.status.CommunityCount = result.Document.Metadata.TotalCommunities
	r.mu.Unlock()

	r.persistStatus(ctx)
	log.Info().
		Str("run_id", result.RunID).
		Int("nodes", result.Document.Metadata.TotalNodes).
		Int("edges", result.Document.Metadata.TotalEdges).
		Int("communities", result.Document.Metadata.TotalCommunities).
		Msg("Analysis run completed")
}

// fail records the terminal failure. Partial results are discarded; the
// previously published result, if any, stays visible.
func (r *Runner) fail(ctx context.Context, runID string, err error) error {
	r.mu.Lock()
	now := time.Now().UTC()
	r.active = false
	r.cancel = nil
	r.status.State = StateFailed
	r.status.Phase = ""
	r.status.Error = err.Error()
	r.status.CompletedAt = &now
	r.status.LastUpdated = &now
	r.mu.Unlock()

	metrics.RecordRunFailed()
	r.persistStatus(ctx)
	log.Error().Err(err).Str("run_id", runID).Msg("Analysis run failed")
	return err
}

// persistStatus pushes the current status to the store. Persistence is best
// effort and survives run cancellation.
func (r *Runner) persistStatus(ctx context.Context) {
	if r.store == nil {
		return
	}

	status := r.Status()
	if err := r.store.SaveStatus(context.WithoutCancel(ctx), status); err != nil {
		log.Warn().Err(err).Msg("Failed to persist run status")
	}
}
