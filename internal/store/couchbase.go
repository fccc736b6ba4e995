package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/appointment-network/internal/config"
	"stealthcompany.com/appointment-network/internal/export"
	"stealthcompany.com/appointment-network/internal/metrics"
	"stealthcompany.com/appointment-network/internal/run"
)

// CouchbaseStore keeps the latest export, insights and status documents in a
// Couchbase bucket. There is no run history: every completed run supersedes
// the previous documents.
type CouchbaseStore struct {
	cluster *gocb.Cluster
	bucket  *gocb.Bucket
}

// NewCouchbaseStore connects to the cluster configured in cfg and waits for
// the bucket's key-value service to come up.
func NewCouchbaseStore(cfg config.ServiceConfig) (*CouchbaseStore, error) {
	cluster, err := gocb.Connect(cfg.CouchbaseURL, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: cfg.CouchbaseUsername,
			Password: cfg.CouchbasePassword,
		},
		TimeoutsConfig: gocb.TimeoutsConfig{
			ConnectTimeout: 60 * time.Second,
			KVTimeout:      5 * time.Second,
			QueryTimeout:   30 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Couchbase: %w", err)
	}

	bucket := cluster.Bucket(cfg.CouchbaseBucket)
	err = bucket.WaitUntilReady(90*time.Second, &gocb.WaitUntilReadyOptions{
		Context:      context.Background(),
		ServiceTypes: []gocb.ServiceType{gocb.ServiceTypeKeyValue},
	})
	if err != nil {
		return nil, fmt.Errorf("couchbase bucket %s not ready: %w", cfg.CouchbaseBucket, err)
	}

	log.Info().
		Str("couchbase_url", cfg.CouchbaseURL).
		Str("bucket", cfg.CouchbaseBucket).
		Msg("Couchbase connection initialized")

	return &CouchbaseStore{cluster: cluster, bucket: bucket}, nil
}

// Close closes the cluster connection.
func (cs *CouchbaseStore) Close() error {
	return cs.cluster.Close(nil)
}

// SaveRun upserts the export and insights documents.
func (cs *CouchbaseStore) SaveRun(ctx context.Context, result *run.Result) error {
	start := time.Now()
	col := cs.bucket.DefaultCollection()

	if _, err := col.Upsert(exportDocKey, result.Document, &gocb.UpsertOptions{}); err != nil {
		metrics.RecordStoreOperation("save_run", "error")
		return fmt.Errorf("failed to upsert export document: %w", err)
	}

	doc := insightsDocument{
		RunID:       result.RunID,
		CompletedAt: result.CompletedAt,
		Insights:    result.Insights,
	}
	if _, err := col.Upsert(insightsDocKey, doc, &gocb.UpsertOptions{}); err != nil {
		metrics.RecordStoreOperation("save_run", "error")
		return fmt.Errorf("failed to upsert insights document: %w", err)
	}

	metrics.RecordStoreOperation("save_run", "success")
	metrics.RecordStoreOperationDuration("save_run", time.Since(start))
	return nil
}

// SaveStatus upserts the status document.
func (cs *CouchbaseStore) SaveStatus(ctx context.Context, status run.Status) error {
	col := cs.bucket.DefaultCollection()

	if _, err := col.Upsert(statusDocKey, status, &gocb.UpsertOptions{}); err != nil {
		metrics.RecordStoreOperation("save_status", "error")
		return fmt.Errorf("failed to upsert status document: %w", err)
	}

	metrics.RecordStoreOperation("save_status", "success")
	return nil
}

// LoadRun returns the last persisted run, or nil when no run has ever been
// stored. A missing insights document degrades to a result without insights.
func (cs *CouchbaseStore) LoadRun(ctx context.Context) (*run.Result, error) {
	col := cs.bucket.DefaultCollection()

	res, err := col.Get(exportDocKey, &gocb.GetOptions{})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get export document: %w", err)
	}

	var doc export.Document
	if err := res.Content(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse export document: %w", err)
	}

	result := &run.Result{
		Document:    &doc,
		CompletedAt: doc.Metadata.GeneratedAt,
	}

	insRes, err := col.Get(insightsDocKey, &gocb.GetOptions{})
	switch {
	case err == nil:
		var ins insightsDocument
		if err := insRes.Content(&ins); err != nil {
			return nil, fmt.Errorf("failed to parse insights document: %w", err)
		}
		result.RunID = ins.RunID
		result.Insights = ins.Insights
		if !ins.CompletedAt.IsZero() {
			result.CompletedAt = ins.CompletedAt
		}
	case errors.Is(err, gocb.ErrDocumentNotFound):
		log.Warn().Msg("Export document found without insights document")
	default:
		return nil, fmt.Errorf("failed to get insights document: %w", err)
	}

	return result, nil
}
