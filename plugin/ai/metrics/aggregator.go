// Package metrics keeps in-memory completion statistics per model in hourly buckets.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// DefaultRetention is how long hourly buckets are kept.
const DefaultRetention = 24 * time.Hour

// Aggregator aggregates completion calls in memory.
type Aggregator struct {
	mu        sync.RWMutex
	retention time.Duration
	now       func() time.Time

	// key = "hourBucket|model"
	buckets map[string]*bucket
}

type bucket struct {
	hourBucket   time.Time
	model        string
	requestCount int64
	successCount int64
	latencies    []int64 // in milliseconds
}

// CompletionStats is the aggregate over all retained buckets.
type CompletionStats struct {
	RequestCount int64                 `json:"requestCount"`
	SuccessCount int64                 `json:"successCount"`
	LatencyP50Ms int64                 `json:"latencyP50Ms"`
	LatencyP95Ms int64                 `json:"latencyP95Ms"`
	Models       map[string]*ModelStat `json:"models"`
}

// ModelStat represents statistics for a single model.
type ModelStat struct {
	Count        int64   `json:"count"`
	SuccessRate  float32 `json:"successRate"`
	AvgLatencyMs int64   `json:"avgLatencyMs"`
}

// NewAggregator creates an aggregator. A non-positive retention uses DefaultRetention.
func NewAggregator(retention time.Duration) *Aggregator {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Aggregator{
		retention: retention,
		now:       time.Now,
		buckets:   make(map[string]*bucket),
	}
}

// Record records a single completion call. success is false when the call fell back.
func (a *Aggregator) Record(model string, latency time.Duration, success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.pruneLocked(now)

	hourBucket := now.Truncate(time.Hour)
	key := makeKey(hourBucket, model)
	b, exists := a.buckets[key]
	if !exists {
		b = &bucket{
			hourBucket: hourBucket,
			model:      model,
			latencies:  make([]int64, 0, 16),
		}
		a.buckets[key] = b
	}

	b.requestCount++
	if success {
		b.successCount++
	}
	b.latencies = append(b.latencies, latency.Milliseconds())
}

func (a *Aggregator) pruneLocked(now time.Time) {
	cutoff := now.Add(-a.retention).Truncate(time.Hour)
	for key, b := range a.buckets {
		if b.hourBucket.Before(cutoff) {
			delete(a.buckets, key)
		}
	}
}

// Stats returns the aggregate of every retained bucket.
func (a *Aggregator) Stats() *CompletionStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := &CompletionStats{Models: make(map[string]*ModelStat)}
	all := make([]int64, 0)
	perModel := make(map[string][]int64)
	successes := make(map[string]int64)

	for _, b := range a.buckets {
		stats.RequestCount += b.requestCount
		stats.SuccessCount += b.successCount
		all = append(all, b.latencies...)
		perModel[b.model] = append(perModel[b.model], b.latencies...)
		successes[b.model] += b.successCount
	}

	for model, latencies := range perModel {
		count := int64(len(latencies))
		stat := &ModelStat{Count: count}
		if count > 0 {
			stat.SuccessRate = float32(successes[model]) / float32(count)
			stat.AvgLatencyMs = sumLatencies(latencies) / count
		}
		stats.Models[model] = stat
	}

	stats.LatencyP50Ms = percentile(all, 50)
	stats.LatencyP95Ms = percentile(all, 95)
	return stats
}

func makeKey(hourBucket time.Time, model string) string {
	return hourBucket.Format(time.RFC3339) + "|" + model
}

func sumLatencies(latencies []int64) int64 {
	var sum int64
	for _, l := range latencies {
		sum += l
	}
	return sum
}

func percentile(latencies []int64, p int) int64 {
	if len(latencies) == 0 {
		return 0
	}

	sorted := make([]int64, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}
