package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordJob("respond", 100*time.Millisecond, nil)
	m.RecordJob("respond", 300*time.Millisecond, errors.New("boom"))
	m.RecordJob("populate", time.Second, nil)
	m.RecordPanic()

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.JobsTotal)
	assert.Equal(t, int64(1), s.JobsFailed)
	assert.Equal(t, int64(1), s.JobsPanic)
	require.Len(t, s.Jobs, 2)
	assert.Equal(t, "populate", s.Jobs[0].Name)
	assert.Equal(t, "respond", s.Jobs[1].Name)
	assert.Equal(t, int64(200), s.Jobs[1].AvgDurationMs)
	assert.Equal(t, int64(1), s.Jobs[1].Errors)

	m.Reset()
	assert.Zero(t, m.GetJobsTotal())
	assert.Empty(t, m.Snapshot().Jobs)
}

func TestJobContext(t *testing.T) {
	job := NewJobContext(nil, "respond")
	require.NotEmpty(t, job.JobID)
	assert.Equal(t, "respond", job.JobName)

	ctx := WithJobContext(context.Background(), job)
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, job.JobID, got.JobID)
	assert.Same(t, job.Logger, Logger(ctx))

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
	assert.NotNil(t, Logger(context.Background()))
}
