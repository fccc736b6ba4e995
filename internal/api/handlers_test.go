package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stealthcompany.com/appointment-network/internal/analysis"
	"stealthcompany.com/appointment-network/internal/export"
	"stealthcompany.com/appointment-network/internal/run"
)

type fakePipeline struct {
	status   run.Status
	latest   *run.Result
	runID    string
	startErr error
	starts   int
}

func (f *fakePipeline) Status() run.Status  { return f.status }
func (f *fakePipeline) Latest() *run.Result { return f.latest }

func (f *fakePipeline) Start(ctx context.Context) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.starts++
	return f.runID, nil
}

func testDocument() *export.Document {
	age := 30.0
	return &export.Document{
		Metadata: export.Metadata{
			TotalNodes:          3,
			TotalEdges:          2,
			TotalCommunities:    2,
			HighRiskCommunities: 1,
			LowRiskCommunities:  1,
			Thresholds:          export.Thresholds{High: 0.5, Low: 0.2},
			GeneratedAt:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			Algorithm:           "louvain",
		},
		Nodes: []export.Node{
			{Patient: &export.PatientNode{
				ID: "P_P1", Type: export.NodeTypePatient, Community: 0,
				RiskLevel: "High", DNARate: 0.5, AgeGroup: "Young Adult", Age: &age,
				Appointments: 3, DNACount: 2, UniqueSites: 1, RiskCategory: "High",
			}},
			{Patient: &export.PatientNode{
				ID: "P_P2", Type: export.NodeTypePatient, Community: 1,
				RiskLevel: "Low", DNARate: 0.1, AgeGroup: "Unknown",
				Appointments: 5, UniqueSites: 1, RiskCategory: "Low",
			}},
			{Site: &export.SiteNode{
				ID: "S_S1", Type: export.NodeTypeSite, Community: 0,
				RiskLevel: "High", DNARate: 0.25,
				Appointments: 8, DNACount: 2, UniquePatients: 2,
			}},
		},
		Links: []export.Link{
			{Source: "P_P1", Target: "S_S1", Weight: 3, DNACount: 2, DNARate: 0.667, Strength: 0.3},
			{Source: "P_P2", Target: "S_S1", Weight: 5, Strength: 0.5},
		},
		Communities: []export.Community{
			{ID: 0, Patients: 1, Sites: 1, AvgDNARate: 0.5, RiskScore: 0.65,
				DominantAge: "Young Adult", HighRiskPatients: 1, RiskLevel: "High"},
			{ID: 1, Patients: 1, AvgDNARate: 0.1, RiskScore: 0.1,
				DominantAge: "Unknown", LowRiskPatients: 1, RiskLevel: "Low"},
		},
		Summary: export.Summary{
			TotalPatients:    2,
			TotalSites:       1,
			OverallDNARate:   0.28,
			AgeGroups:        map[string]int{"Young Adult": 1, "Unknown": 1},
			RiskDistribution: map[string]int{"High": 1, "Medium": 0, "Low": 1},
		},
	}
}

func testResult() *run.Result {
	return &run.Result{
		RunID:    "run-abc",
		Document: testDocument(),
		Insights: []analysis.Insight{{
			Type:           analysis.InsightHighRisk,
			Priority:       analysis.PriorityUrgent,
			KeyIssue:       "High DNA rate (50.0%)",
			Recommendation: "Focus intervention on Young Adult patients",
		}},
		CompletedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func doRequest(t *testing.T, p Pipeline, method, path string) *httptest.ResponseRecorder {
	t.Helper()

	router := NewServer(p).SetupRoutes()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response body: %v", err)
	}
	return body
}

func TestEndpointsBeforeFirstRun(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"Graph data", "/graph/data"},
		{"Graph metadata", "/graph/metadata"},
		{"Graph sample", "/graph/sample/10"},
		{"Communities", "/communities"},
		{"Community by id", "/communities/0"},
		{"Insights", "/insights"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, &fakePipeline{}, "GET", tt.path)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected status %d, got %d", http.StatusBadRequest, rr.Code)
			}
			body := decodeBody(t, rr)
			if body["error"] != notInitializedMessage {
				t.Errorf("Expected not-initialized error, got %v", body["error"])
			}
		})
	}
}

func TestRootListsEndpoints(t *testing.T) {
	rr := doRequest(t, &fakePipeline{}, "GET", "/")

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	endpoints, ok := body["endpoints"].(map[string]any)
	if !ok {
		t.Fatalf("Expected endpoints map, got %T", body["endpoints"])
	}
	if endpoints["status"] != "/status" {
		t.Errorf("Expected status endpoint /status, got %v", endpoints["status"])
	}
}

func TestHealthReportsRunState(t *testing.T) {
	fake := &fakePipeline{status: run.Status{State: run.StateNotStarted}}
	rr := doRequest(t, fake, "GET", "/health")

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["status"] != "ok" || body["state"] != run.StateNotStarted {
		t.Errorf("Unexpected health body: %v", body)
	}
}

func TestStatusReflectsRunningPhase(t *testing.T) {
	fake := &fakePipeline{status: run.Status{
		RunID: "run-abc",
		State: run.StateRunning,
		Phase: run.PhaseDetectingCommunities,
	}}
	rr := doRequest(t, fake, "GET", "/status")

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["state"] != run.StateRunning {
		t.Errorf("Expected state running, got %v", body["state"])
	}
	if body["phase"] != run.PhaseDetectingCommunities {
		t.Errorf("Expected phase detecting_communities, got %v", body["phase"])
	}
}

func TestInitializeStartsRun(t *testing.T) {
	fake := &fakePipeline{runID: "run-new"}
	rr := doRequest(t, fake, "POST", "/initialize")

	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["run_id"] != "run-new" {
		t.Errorf("Expected run_id run-new, got %v", body["run_id"])
	}
	if body["message"] != "Analysis started" {
		t.Errorf("Expected started message, got %v", body["message"])
	}
	if fake.starts != 1 {
		t.Errorf("Expected one start call, got %d", fake.starts)
	}
}

func TestInitializeConflictWhileActive(t *testing.T) {
	fake := &fakePipeline{
		startErr: run.ErrRunActive,
		status:   run.Status{State: run.StateRunning, Phase: run.PhaseCreatingGraph},
	}
	rr := doRequest(t, fake, "POST", "/initialize")

	if rr.Code != http.StatusConflict {
		t.Fatalf("Expected status 409, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["phase"] != run.PhaseCreatingGraph {
		t.Errorf("Expected active phase in body, got %v", body["phase"])
	}
}

func TestGraphDataReturnsDocument(t *testing.T) {
	fake := &fakePipeline{latest: testResult()}
	rr := doRequest(t, fake, "GET", "/graph/data")

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var doc export.Document
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("Failed to decode document: %v", err)
	}
	if doc.Metadata.TotalNodes != 3 || len(doc.Nodes) != 3 || len(doc.Links) != 2 {
		t.Errorf("Unexpected document shape: %+v", doc.Metadata)
	}
	if doc.Nodes[0].ID() != "P_P1" {
		t.Errorf("Expected first node P_P1, got %s", doc.Nodes[0].ID())
	}
}

func TestGraphMetadataOmitsNodes(t *testing.T) {
	fake := &fakePipeline{latest: testResult()}
	rr := doRequest(t, fake, "GET", "/graph/metadata")

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if _, ok := body["metadata"]; !ok {
		t.Error("Expected metadata key")
	}
	if _, ok := body["summary"]; !ok {
		t.Error("Expected summary key")
	}
	if _, ok := body["nodes"]; ok {
		t.Error("Metadata response should not carry nodes")
	}
}

func TestCommunitiesList(t *testing.T) {
	fake := &fakePipeline{latest: testResult()}
	rr := doRequest(t, fake, "GET", "/communities")

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	communities, ok := body["communities"].([]any)
	if !ok || len(communities) != 2 {
		t.Fatalf("Expected 2 communities, got %v", body["communities"])
	}
	summary := body["summary"].(map[string]any)
	if summary["total"] != float64(2) {
		t.Errorf("Expected total 2, got %v", summary["total"])
	}
}

func TestCommunityByID(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantNodes  int
		wantLinks  int
	}{
		// Community 0 holds P_P1 and S_S1; both links touch S_S1.
		{"Community with site", "/communities/0", http.StatusOK, 2, 2},
		// Community 1 holds only P_P2; one link touches it.
		{"Patient-only community", "/communities/1", http.StatusOK, 1, 1},
		{"Unknown community", "/communities/99", http.StatusNotFound, 0, 0},
		{"Malformed id", "/communities/abc", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakePipeline{latest: testResult()}
			rr := doRequest(t, fake, "GET", tt.path)

			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			body := decodeBody(t, rr)
			stats := body["stats"].(map[string]any)
			if stats["node_count"] != float64(tt.wantNodes) {
				t.Errorf("Expected %d nodes, got %v", tt.wantNodes, stats["node_count"])
			}
			if stats["link_count"] != float64(tt.wantLinks) {
				t.Errorf("Expected %d links, got %v", tt.wantLinks, stats["link_count"])
			}
		})
	}
}

func TestCommunityStatsSplitNodeKinds(t *testing.T) {
	fake := &fakePipeline{latest: testResult()}
	rr := doRequest(t, fake, "GET", "/communities/0")

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	stats := body["stats"].(map[string]any)
	if stats["patients"] != float64(1) || stats["sites"] != float64(1) {
		t.Errorf("Expected 1 patient and 1 site, got %v", stats)
	}
}

func TestGraphSample(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantNodes  int
		wantLinks  int
	}{
		// The first two nodes are both patients, so no link survives.
		{"Sample excludes dangling links", "/graph/sample/2", http.StatusOK, 2, 0},
		{"Full sample", "/graph/sample/3", http.StatusOK, 3, 2},
		{"Oversized sample", "/graph/sample/50", http.StatusOK, 3, 2},
		{"Zero size", "/graph/sample/0", http.StatusBadRequest, 0, 0},
		{"Malformed size", "/graph/sample/abc", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakePipeline{latest: testResult()}
			rr := doRequest(t, fake, "GET", tt.path)

			if rr.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			body := decodeBody(t, rr)
			nodes := body["nodes"].([]any)
			links := body["links"].([]any)
			if len(nodes) != tt.wantNodes {
				t.Errorf("Expected %d nodes, got %d", tt.wantNodes, len(nodes))
			}
			if len(links) != tt.wantLinks {
				t.Errorf("Expected %d links, got %d", tt.wantLinks, len(links))
			}
		})
	}
}

func TestInsightsReturned(t *testing.T) {
	fake := &fakePipeline{latest: testResult()}
	rr := doRequest(t, fake, "GET", "/insights")

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	insights, ok := body["insights"].([]any)
	if !ok || len(insights) != 1 {
		t.Fatalf("Expected 1 insight, got %v", body["insights"])
	}
	first := insights[0].(map[string]any)
	if first["type"] != analysis.InsightHighRisk {
		t.Errorf("Expected High Risk insight, got %v", first["type"])
	}
}

func TestInsightsEmptyAfterRestore(t *testing.T) {
	result := testResult()
	result.Insights = nil
	fake := &fakePipeline{latest: result}

	rr := doRequest(t, fake, "GET", "/insights")

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	insights, ok := body["insights"].([]any)
	if !ok {
		t.Fatalf("Expected insights array, got %T", body["insights"])
	}
	if len(insights) != 0 {
		t.Errorf("Expected empty insights, got %d", len(insights))
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	rr := doRequest(t, &fakePipeline{}, "GET", "/metrics")

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
}
