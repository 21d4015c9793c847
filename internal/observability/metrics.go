package observability

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Metrics holds all performance metrics for the gateci service.
type Metrics struct {
	// Database metrics
	dbTransactionBegin   *Histogram
	dbTransactionCommit  *Histogram
	dbActiveTransactions *AtomicGauge

	// Engine metrics
	jobDuration   *HistogramVec // by gate kind
	stepDuration  *HistogramVec // by step kind
	activeJobs    *AtomicGauge
	jobsCompleted *CounterVec // by outcome

	// Service layer metrics
	buildPlanningDuration *Histogram
	buildsCompleted       *CounterVec // by outcome
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
func NewMetrics() *Metrics {
	return &Metrics{
		dbTransactionBegin:   NewHistogram(),
		dbTransactionCommit:  NewHistogram(),
		dbActiveTransactions: NewAtomicGauge(),

		jobDuration:   NewHistogramVec(),
		stepDuration:  NewHistogramVec(),
		activeJobs:    NewAtomicGauge(),
		jobsCompleted: NewCounterVec(),

		buildPlanningDuration: NewHistogram(),
		buildsCompleted:       NewCounterVec(),
	}
}

// Database metrics accessors
func (m *Metrics) DBTransactionBegin() *Histogram     { return m.dbTransactionBegin }
func (m *Metrics) DBTransactionCommit() *Histogram    { return m.dbTransactionCommit }
func (m *Metrics) DBActiveTransactions() *AtomicGauge { return m.dbActiveTransactions }

// Engine metrics accessors
func (m *Metrics) JobDuration() *HistogramVec  { return m.jobDuration }
func (m *Metrics) StepDuration() *HistogramVec { return m.stepDuration }
func (m *Metrics) ActiveJobs() *AtomicGauge    { return m.activeJobs }
func (m *Metrics) JobsCompleted() *CounterVec  { return m.jobsCompleted }

// Service layer metrics accessors
func (m *Metrics) BuildPlanningDuration() *Histogram { return m.buildPlanningDuration }
func (m *Metrics) BuildsCompleted() *CounterVec      { return m.buildsCompleted }

// Snapshot returns a snapshot of all metrics for reporting.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	return &MetricsSnapshot{
		DBTransactionBegin:   m.dbTransactionBegin.Snapshot(),
		DBTransactionCommit:  m.dbTransactionCommit.Snapshot(),
		DBActiveTransactions: m.dbActiveTransactions.Get(),

		JobDuration:   m.jobDuration.Snapshot(),
		StepDuration:  m.stepDuration.Snapshot(),
		ActiveJobs:    m.activeJobs.Get(),
		JobsCompleted: m.jobsCompleted.Snapshot(),

		BuildPlanningDuration: m.buildPlanningDuration.Snapshot(),
		BuildsCompleted:       m.buildsCompleted.Snapshot(),
	}
}

// MetricsSnapshot holds a point-in-time snapshot of all metrics.
type MetricsSnapshot struct {
	DBTransactionBegin   HistogramSnapshot `json:"db_transaction_begin"`
	DBTransactionCommit  HistogramSnapshot `json:"db_transaction_commit"`
	DBActiveTransactions int64             `json:"db_active_transactions"`

	JobDuration   map[string]HistogramSnapshot `json:"job_duration"`
	StepDuration  map[string]HistogramSnapshot `json:"step_duration"`
	ActiveJobs    int64                        `json:"active_jobs"`
	JobsCompleted map[string]int64             `json:"jobs_completed"`

	BuildPlanningDuration HistogramSnapshot `json:"build_planning_duration"`
	BuildsCompleted       map[string]int64  `json:"builds_completed"`
}

// ServeHTTP implements http.Handler for metrics exposition.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := m.Snapshot()

	// Support both JSON and text format
	format := r.URL.Query().Get("format")
	if format == "json" || r.Header.Get("Accept") == "application/json" {
		w.Header().Set("Content-Type", "application/json")
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		encoder.Encode(snapshot)
		return
	}

	// Default: human-readable text format
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	fmt.Fprintf(w, "# gateci Performance Metrics\n\n")

	fmt.Fprintf(w, "## Database Metrics\n\n")
	writeHistogramSummary(w, "DB Transaction Begin", snapshot.DBTransactionBegin)
	writeHistogramSummary(w, "DB Transaction Commit", snapshot.DBTransactionCommit)
	fmt.Fprintf(w, "DB Active Transactions: %d\n\n", snapshot.DBActiveTransactions)

	fmt.Fprintf(w, "## Engine Metrics\n\n")
	fmt.Fprintf(w, "Active Jobs: %d\n\n", snapshot.ActiveJobs)

	if len(snapshot.JobDuration) > 0 {
		fmt.Fprintf(w, "Job Duration by gate kind:\n")
		for label, hist := range snapshot.JobDuration {
			fmt.Fprintf(w, "  %s:\n", label)
			writeHistogramSummaryIndented(w, hist)
		}
		fmt.Fprintf(w, "\n")
	}

	if len(snapshot.StepDuration) > 0 {
		fmt.Fprintf(w, "Step Duration by step kind:\n")
		for label, hist := range snapshot.StepDuration {
			fmt.Fprintf(w, "  %s:\n", label)
			writeHistogramSummaryIndented(w, hist)
		}
		fmt.Fprintf(w, "\n")
	}

	if len(snapshot.JobsCompleted) > 0 {
		fmt.Fprintf(w, "Jobs Completed by outcome:\n")
		for label, count := range snapshot.JobsCompleted {
			fmt.Fprintf(w, "  %s: %d\n", label, count)
		}
		fmt.Fprintf(w, "\n")
	}

	fmt.Fprintf(w, "## Service Layer Metrics\n\n")
	writeHistogramSummary(w, "Build Planning Duration", snapshot.BuildPlanningDuration)

	if len(snapshot.BuildsCompleted) > 0 {
		fmt.Fprintf(w, "\nBuilds Completed by outcome:\n")
		for label, count := range snapshot.BuildsCompleted {
			fmt.Fprintf(w, "  %s: %d\n", label, count)
		}
	}
}

func writeHistogramSummary(w http.ResponseWriter, name string, h HistogramSnapshot) {
	if h.Count == 0 {
		fmt.Fprintf(w, "%s: no data\n", name)
		return
	}
	fmt.Fprintf(w, "%s (n=%d):\n", name, h.Count)
	fmt.Fprintf(w, "  Mean: %v, P50: %v, P95: %v, P99: %v, Max: %v\n",
		h.Mean, h.P50, h.P95, h.P99, h.Max)
}

func writeHistogramSummaryIndented(w http.ResponseWriter, h HistogramSnapshot) {
	if h.Count == 0 {
		fmt.Fprintf(w, "    no data\n")
		return
	}
	fmt.Fprintf(w, "    Count: %d, Mean: %v, P50: %v, P95: %v, P99: %v, Max: %v\n",
		h.Count, h.Mean, h.P50, h.P95, h.P99, h.Max)
}
