// Package store persists analysis runs. The file store writes the export
// artifacts of each completed run under the output directory; the Couchbase
// store keeps latest-export and status documents so a restarted service can
// serve results before its first in-process run.
package store

import (
	"context"
	"time"

	"stealthcompany.com/appointment-network/internal/analysis"
	"stealthcompany.com/appointment-network/internal/run"
)

// Document keys used by the Couchbase store. One document per concern, each
// superseded by the next completed run.
const (
	exportDocKey   = "analysis/export"
	insightsDocKey = "analysis/insights"
	statusDocKey   = "analysis/status"
)

// insightsDocument carries run identity and generated insights alongside the
// export document.
type insightsDocument struct {
	RunID       string             `json:"run_id"`
	CompletedAt time.Time          `json:"completed_at"`
	Insights    []analysis.Insight `json:"insights"`
}

// Multi fans every write out to several stores in order, stopping at the
// first error.
type Multi []run.Store

func (m Multi) SaveRun(ctx context.Context, result *run.Result) error {
	for _, s := range m {
		if err := s.SaveRun(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) SaveStatus(ctx context.Context, status run.Status) error {
	for _, s := range m {
		if err := s.SaveStatus(ctx, status); err != nil {
			return err
		}
	}
	return nil
}
