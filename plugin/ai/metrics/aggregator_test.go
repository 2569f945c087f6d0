package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/overflew/plugin/ai"
)

func TestAggregator_Record(t *testing.T) {
	t.Run("SingleRequest", func(t *testing.T) {
		agg := NewAggregator(0)
		agg.Record("gpt-3.5-turbo-instruct", 100*time.Millisecond, true)

		stats := agg.Stats()
		assert.Equal(t, int64(1), stats.RequestCount)
		assert.Equal(t, int64(1), stats.SuccessCount)
		require.Contains(t, stats.Models, "gpt-3.5-turbo-instruct")
		assert.Equal(t, float32(1.0), stats.Models["gpt-3.5-turbo-instruct"].SuccessRate)
		assert.Equal(t, int64(100), stats.Models["gpt-3.5-turbo-instruct"].AvgLatencyMs)
	})

	t.Run("MultipleRequests", func(t *testing.T) {
		agg := NewAggregator(0)
		agg.Record("gpt-4o-mini", 50*time.Millisecond, true)
		agg.Record("gpt-4o-mini", 150*time.Millisecond, true)
		agg.Record("gpt-4o-mini", 200*time.Millisecond, false)

		stats := agg.Stats()
		assert.Equal(t, int64(3), stats.RequestCount)
		assert.Equal(t, int64(2), stats.SuccessCount)

		stat := stats.Models["gpt-4o-mini"]
		require.NotNil(t, stat)
		assert.Equal(t, int64(3), stat.Count)
		assert.InDelta(t, 0.666, stat.SuccessRate, 0.01)
		assert.Equal(t, int64(133), stat.AvgLatencyMs)
		assert.Equal(t, int64(150), stats.LatencyP50Ms)
	})

	t.Run("Empty", func(t *testing.T) {
		stats := NewAggregator(0).Stats()
		assert.Zero(t, stats.RequestCount)
		assert.Zero(t, stats.LatencyP95Ms)
		assert.Empty(t, stats.Models)
	})
}

func TestAggregator_PrunesOldBuckets(t *testing.T) {
	agg := NewAggregator(2 * time.Hour)
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	agg.now = func() time.Time { return now }
	agg.Record("old", time.Millisecond, true)

	now = now.Add(4 * time.Hour)
	agg.Record("new", time.Millisecond, true)

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.RequestCount)
	assert.NotContains(t, stats.Models, "old")
	assert.Contains(t, stats.Models, "new")
}

func TestAggregator_Concurrent(t *testing.T) {
	agg := NewAggregator(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				agg.Record("m", time.Millisecond, j%2 == 0)
			}
		}()
	}
	wg.Wait()

	stats := agg.Stats()
	assert.Equal(t, int64(400), stats.RequestCount)
	assert.Equal(t, int64(200), stats.SuccessCount)
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		latencies []int64
		p         int
		want      int64
	}{
		{latencies: nil, p: 50, want: 0},
		{latencies: []int64{7}, p: 95, want: 7},
		{latencies: []int64{40, 10, 30, 20}, p: 50, want: 20},
		{latencies: []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, p: 95, want: 9},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, percentile(tt.latencies, tt.p), "%v p%d", tt.latencies, tt.p)
	}
}

func TestInstrument(t *testing.T) {
	ctx := context.Background()
	next := &ai.MockCompletionService{}
	next.On("Complete", mock.Anything, mock.MatchedBy(func(req ai.CompletionRequest) bool { return req.Model == "" })).
		Return("Generated.")
	next.On("Complete", mock.Anything, mock.MatchedBy(func(req ai.CompletionRequest) bool { return req.Model == "persona-model" })).
		Return(ai.FallbackResponse)

	agg := NewAggregator(0)
	svc := Instrument(next, agg, "default-model")

	assert.Equal(t, "Generated.", svc.Complete(ctx, ai.CompletionRequest{Prompt: "p"}))
	assert.Equal(t, ai.FallbackResponse, svc.Complete(ctx, ai.CompletionRequest{Prompt: "p", Model: "persona-model"}))

	stats := agg.Stats()
	assert.Equal(t, int64(2), stats.RequestCount)
	assert.Equal(t, int64(1), stats.SuccessCount)
	assert.Equal(t, float32(1), stats.Models["default-model"].SuccessRate)
	assert.Equal(t, float32(0), stats.Models["persona-model"].SuccessRate)
}
