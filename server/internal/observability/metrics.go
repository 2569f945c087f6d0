package observability

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects in-process counters for background jobs.
type Metrics struct {
	mu sync.Mutex

	jobsTotal  atomic.Int64
	jobsFailed atomic.Int64
	jobsPanic  atomic.Int64

	jobMetrics map[string]*JobMetrics
}

// JobMetrics represents metrics for one job name.
type JobMetrics struct {
	executionCount atomic.Int64
	totalDuration  atomic.Int64 // milliseconds
	errorCount     atomic.Int64
}

// JobSnapshot is a point-in-time copy of one job name's counters.
type JobSnapshot struct {
	Name          string `json:"name"`
	Executions    int64  `json:"executions"`
	Errors        int64  `json:"errors"`
	AvgDurationMs int64  `json:"avg_duration_ms"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	JobsTotal  int64         `json:"jobs_total"`
	JobsFailed int64         `json:"jobs_failed"`
	JobsPanic  int64         `json:"jobs_panic"`
	Jobs       []JobSnapshot `json:"jobs"`
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{jobMetrics: make(map[string]*JobMetrics)}
}

var globalMetrics = NewMetrics()

// GlobalMetrics returns the global metrics instance.
func GlobalMetrics() *Metrics {
	return globalMetrics
}

// RecordJob records a finished job run.
func (m *Metrics) RecordJob(name string, duration time.Duration, err error) {
	jm := m.getJobMetrics(name)
	m.jobsTotal.Add(1)
	jm.executionCount.Add(1)
	jm.totalDuration.Add(duration.Milliseconds())
	if err != nil {
		m.jobsFailed.Add(1)
		jm.errorCount.Add(1)
	}
}

// RecordPanic records a job that panicked. The run itself is recorded by RecordJob.
func (m *Metrics) RecordPanic() {
	m.jobsPanic.Add(1)
}

// GetJobsTotal returns the total number of finished jobs.
func (m *Metrics) GetJobsTotal() int64 {
	return m.jobsTotal.Load()
}

// GetJobsFailed returns the number of jobs that returned an error or panicked.
func (m *Metrics) GetJobsFailed() int64 {
	return m.jobsFailed.Load()
}

func (m *Metrics) getJobMetrics(name string) *JobMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	jm, ok := m.jobMetrics[name]
	if !ok {
		jm = &JobMetrics{}
		m.jobMetrics[name] = jm
	}
	return jm
}

// Snapshot returns a copy of all counters, jobs sorted by name.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	names := make([]string, 0, len(m.jobMetrics))
	for name := range m.jobMetrics {
		names = append(names, name)
	}
	m.mu.Unlock()
	sort.Strings(names)

	snapshot := Snapshot{
		JobsTotal:  m.jobsTotal.Load(),
		JobsFailed: m.jobsFailed.Load(),
		JobsPanic:  m.jobsPanic.Load(),
		Jobs:       make([]JobSnapshot, 0, len(names)),
	}
	for _, name := range names {
		jm := m.getJobMetrics(name)
		count := jm.executionCount.Load()
		var avg int64
		if count > 0 {
			avg = jm.totalDuration.Load() / count
		}
		snapshot.Jobs = append(snapshot.Jobs, JobSnapshot{
			Name:          name,
			Executions:    count,
			Errors:        jm.errorCount.Load(),
			AvgDurationMs: avg,
		})
	}
	return snapshot
}

// Reset resets all metrics (useful for testing).
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobsTotal.Store(0)
	m.jobsFailed.Store(0)
	m.jobsPanic.Store(0)
	m.jobMetrics = make(map[string]*JobMetrics)
}
