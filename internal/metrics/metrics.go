// Package metrics exposes Prometheus instrumentation for the API service and
// the analysis pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by method, endpoint and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTPRequestDuration tracks request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTPActiveConnections gauges in-flight requests
	HTTPActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	// AnalysisRunsTotal counts pipeline runs by outcome
	AnalysisRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_runs_total",
			Help: "Total number of analysis runs",
		},
		[]string{"status"}, // "started", "completed", "failed"
	)

	// AnalysisRunDuration tracks full pipeline duration
	AnalysisRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_run_duration_seconds",
			Help:    "Duration of complete analysis runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// AnalysisPhaseDuration tracks per-phase duration
	AnalysisPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysis_phase_duration_seconds",
			Help:    "Duration of individual analysis phases in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)

	// AppointmentRowsTotal counts ingested rows by disposition
	AppointmentRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_rows_total",
			Help: "Total number of appointment rows processed",
		},
		[]string{"disposition"}, // "read", "sampled", "dropped"
	)

	// AttendanceCodesTotal counts rows by attendance code
	AttendanceCodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_codes_total",
			Help: "Total number of rows seen per attendance code",
		},
		[]string{"code"},
	)

	// GraphNodes gauges the size of the latest graph
	GraphNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graph_nodes",
			Help: "Node count of the most recently built graph",
		},
	)

	// GraphEdges gauges the edge count of the latest graph
	GraphEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graph_edges",
			Help: "Edge count of the most recently built graph",
		},
	)

	// GraphCommunities gauges the community count of the latest run
	GraphCommunities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graph_communities",
			Help: "Community count of the most recent analysis run",
		},
	)

	// StoreOperationsTotal counts persistence operations
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "status"}, // "success", "error"
	)

	// StoreOperationDuration tracks persistence latency
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// IncActiveConnections increments active connections
func IncActiveConnections() {
	HTTPActiveConnections.Inc()
}

// DecActiveConnections decrements active connections
func DecActiveConnections() {
	HTTPActiveConnections.Dec()
}

// RecordRunStarted marks the start of an analysis run
func RecordRunStarted() {
	AnalysisRunsTotal.WithLabelValues("started").Inc()
}

// RecordRunCompleted marks a successful run and its duration
func RecordRunCompleted(duration time.Duration) {
	AnalysisRunsTotal.WithLabelValues("completed").Inc()
	AnalysisRunDuration.Observe(duration.Seconds())
}

// RecordRunFailed marks a failed run
func RecordRunFailed() {
	AnalysisRunsTotal.WithLabelValues("failed").Inc()
}

// RecordAnalysisPhase records the duration of one pipeline phase
func RecordAnalysisPhase(phase string, duration time.Duration) {
	AnalysisPhaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordRowsProcessed records row counts for one run
func RecordRowsProcessed(read, sampled, dropped int) {
	AppointmentRowsTotal.WithLabelValues("read").Add(float64(read))
	AppointmentRowsTotal.WithLabelValues("sampled").Add(float64(sampled))
	AppointmentRowsTotal.WithLabelValues("dropped").Add(float64(dropped))
}

// RecordAttendanceCodes records the attendance code distribution of one run
func RecordAttendanceCodes(distribution map[string]int) {
	for code, count := range distribution {
		AttendanceCodesTotal.WithLabelValues(code).Add(float64(count))
	}
}

// RecordGraphSize records the dimensions of the latest graph
func RecordGraphSize(nodes, edges, communities int) {
	GraphNodes.Set(float64(nodes))
	GraphEdges.Set(float64(edges))
	GraphCommunities.Set(float64(communities))
}

// RecordStoreOperation records a persistence operation outcome
func RecordStoreOperation(operation, status string) {
	StoreOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordStoreOperationDuration records persistence latency
func RecordStoreOperationDuration(operation string, duration time.Duration) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
