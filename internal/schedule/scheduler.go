// Package schedule triggers periodic re-analysis on a cron expression.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointment-network/internal/run"
)

// Starter launches analysis runs.
type Starter interface {
	Start(ctx context.Context) (string, error)
}

// Scheduler fires analysis runs on a fixed schedule. A firing that lands
// while a run is active is skipped, not queued.
type Scheduler struct {
	cron *cron.Cron
}

// New validates the cron expression and schedules refresh runs on it.
func New(expression string, starter Starter) (*Scheduler, error) {
	c := cron.New()
	if _, err := c.AddFunc(expression, func() { fire(starter) }); err != nil {
		return nil, fmt.Errorf("invalid refresh cron expression %q: %w", expression, err)
	}

	log.Info().Str("cron", expression).Msg("Scheduled periodic analysis refresh")
	return &Scheduler{cron: c}, nil
}

// Start begins firing scheduled refreshes.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the schedule. A refresh already running keeps going.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func fire(starter Starter) {
	runID, err := starter.Start(context.Background())
	if err != nil {
		if errors.Is(err, run.ErrRunActive) {
			log.Warn().Msg("Scheduled refresh skipped, run already active")
			return
		}
		log.Error().Err(err).Msg("Scheduled refresh failed to start")
		return
	}

	log.Info().Str("run_id", runID).Msg("Scheduled refresh started")
}
