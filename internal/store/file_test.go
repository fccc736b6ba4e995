package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/appointment-network/internal/analysis"
	"stealthcompany.com/appointment-network/internal/export"
	"stealthcompany.com/appointment-network/internal/run"
)

func sampleResult() *run.Result {
	age := 42.0
	completed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	doc := &export.Document{
		Metadata: export.Metadata{
			TotalNodes:          2,
			TotalEdges:          1,
			TotalCommunities:    1,
			HighRiskCommunities: 1,
			Thresholds:          export.Thresholds{High: 0.5, Low: 0.2},
			GeneratedAt:         completed,
			Algorithm:           "louvain",
		},
		Nodes: []export.Node{
			{Patient: &export.PatientNode{
				ID: "P_P1", Type: export.NodeTypePatient, RiskLevel: "High",
				DNARate: 0.4, AgeGroup: "Adult", Age: &age,
				Appointments: 3, DNACount: 1, UniqueSites: 1, RiskCategory: "High",
			}},
			{Site: &export.SiteNode{
				ID: "S_S1", Type: export.NodeTypeSite, RiskLevel: "High",
				DNARate: 0.4, Appointments: 3, DNACount: 1, UniquePatients: 1,
			}},
		},
		Links: []export.Link{
			{Source: "P_P1", Target: "S_S1", Weight: 3, DNACount: 1, DNARate: 0.4, Strength: 0.3},
		},
		Communities: []export.Community{
			{ID: 0, Patients: 1, Sites: 1, AvgDNARate: 0.4, RiskScore: 0.5,
				DominantAge: "Adult", HighRiskPatients: 1, RiskLevel: "High"},
		},
		Summary: export.Summary{
			TotalPatients:    1,
			TotalSites:       1,
			OverallDNARate:   0.4,
			AgeGroups:        map[string]int{"Adult": 1},
			RiskDistribution: map[string]int{"High": 1, "Medium": 0, "Low": 0},
		},
	}

	return &run.Result{
		RunID:    "run-123",
		Document: doc,
		Insights: []analysis.Insight{{
			Type:           analysis.InsightHighRisk,
			Priority:       analysis.PriorityUrgent,
			KeyIssue:       "High DNA rate (40.0%)",
			Recommendation: "Focus intervention on Adult patients",
		}},
		CompletedAt: completed,
	}
}

func TestFileStoreSaveRunWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(dir)
	result := sampleResult()

	require.NoError(t, fs.SaveRun(context.Background(), result))

	data, err := os.ReadFile(fs.ExportPath())
	require.NoError(t, err)

	var doc export.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 2, doc.Metadata.TotalNodes)
	assert.Equal(t, "louvain", doc.Metadata.Algorithm)
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, "P_P1", doc.Nodes[0].ID())
	assert.Equal(t, "S_S1", doc.Nodes[1].ID())

	insData, err := os.ReadFile(fs.InsightsPath())
	require.NoError(t, err)

	var ins insightsDocument
	require.NoError(t, json.Unmarshal(insData, &ins))
	assert.Equal(t, "run-123", ins.RunID)
	require.Len(t, ins.Insights, 1)
	assert.Equal(t, analysis.PriorityUrgent, ins.Insights[0].Priority)
}

func TestFileStoreCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	fs := NewFileStore(dir)

	require.NoError(t, fs.SaveRun(context.Background(), sampleResult()))

	_, err := os.Stat(fs.ExportPath())
	assert.NoError(t, err)
}

func TestFileStoreOverwritesPreviousRun(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(dir)

	first := sampleResult()
	require.NoError(t, fs.SaveRun(context.Background(), first))

	second := sampleResult()
	second.RunID = "run-456"
	second.Document.Metadata.Algorithm = "label_propagation"
	require.NoError(t, fs.SaveRun(context.Background(), second))

	data, err := os.ReadFile(fs.ExportPath())
	require.NoError(t, err)

	var doc export.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "label_propagation", doc.Metadata.Algorithm)

	insData, err := os.ReadFile(fs.InsightsPath())
	require.NoError(t, err)

	var ins insightsDocument
	require.NoError(t, json.Unmarshal(insData, &ins))
	assert.Equal(t, "run-456", ins.RunID)
}

func TestFileStoreSaveStatusIsNoop(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(dir)

	require.NoError(t, fs.SaveStatus(context.Background(), run.Status{State: run.StateRunning}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type recordingStore struct {
	runs     []*run.Result
	statuses []run.Status
	err      error
}

func (rs *recordingStore) SaveRun(ctx context.Context, result *run.Result) error {
	if rs.err != nil {
		return rs.err
	}
	rs.runs = append(rs.runs, result)
	return nil
}

func (rs *recordingStore) SaveStatus(ctx context.Context, status run.Status) error {
	if rs.err != nil {
		return rs.err
	}
	rs.statuses = append(rs.statuses, status)
	return nil
}

func TestMultiFansOutWrites(t *testing.T) {
	first := &recordingStore{}
	second := &recordingStore{}
	m := Multi{first, second}

	result := sampleResult()
	require.NoError(t, m.SaveRun(context.Background(), result))
	require.NoError(t, m.SaveStatus(context.Background(), run.Status{State: run.StateCompleted}))

	assert.Len(t, first.runs, 1)
	assert.Len(t, second.runs, 1)
	assert.Len(t, first.statuses, 1)
	assert.Len(t, second.statuses, 1)
}

func TestMultiStopsAtFirstError(t *testing.T) {
	boom := errors.New("bucket offline")
	failing := &recordingStore{err: boom}
	after := &recordingStore{}
	m := Multi{failing, after}

	err := m.SaveRun(context.Background(), sampleResult())
	require.ErrorIs(t, err, boom)
	assert.Empty(t, after.runs)
}
