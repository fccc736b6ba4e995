package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointment-network/internal/metrics"
	"stealthcompany.com/appointment-network/internal/run"
)

// FileStore writes run artifacts into a single output directory, created on
// first use.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// ExportPath returns the location of the export document.
func (fs *FileStore) ExportPath() string {
	return filepath.Join(fs.dir, "network-export.json")
}

// InsightsPath returns the location of the insights file.
func (fs *FileStore) InsightsPath() string {
	return filepath.Join(fs.dir, "insights.json")
}

// SaveRun writes the export document and the insights file for a completed
// run, overwriting the previous run's artifacts.
func (fs *FileStore) SaveRun(ctx context.Context, result *run.Result) error {
	start := time.Now()

	if err := fs.writeArtifacts(result); err != nil {
		metrics.RecordStoreOperation("save_run", "error")
		return err
	}

	metrics.RecordStoreOperation("save_run", "success")
	metrics.RecordStoreOperationDuration("save_run", time.Since(start))
	log.Info().
		Str("run_id", result.RunID).
		Str("path", fs.ExportPath()).
		Msg("Export written")
	return nil
}

// SaveStatus is a no-op: run status lives in memory unless the Couchbase
// store is enabled.
func (fs *FileStore) SaveStatus(ctx context.Context, status run.Status) error {
	return nil
}

func (fs *FileStore) writeArtifacts(result *run.Result) error {
	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", fs.dir, err)
	}

	if err := writeJSON(fs.ExportPath(), result.Document); err != nil {
		return err
	}

	doc := insightsDocument{
		RunID:       result.RunID,
		CompletedAt: result.CompletedAt,
		Insights:    result.Insights,
	}
	return writeJSON(fs.InsightsPath(), doc)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
