package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	aierrors "github.com/hrygo/overflew/server/internal/errors"
	"github.com/hrygo/overflew/server/internal/observability"
)

func newTestPool(workers, parallel int) *Pool {
	return NewPool(Config{
		Workers:       workers,
		ParallelLimit: parallel,
		PollInterval:  20 * time.Millisecond,
		Metrics:       observability.NewMetrics(),
	})
}

func TestPool_SurvivesJobFailure(t *testing.T) {
	defer goleak.VerifyNone(t)
	pool := newTestPool(1, 1)

	var ran atomic.Bool
	failing := pool.Enqueue(Job{Name: "fail", Run: func(context.Context) error { return errors.New("boom") }})
	panicking := pool.Enqueue(Job{Name: "panic", Run: func(context.Context) error { panic("kaboom") }})
	ok := pool.Enqueue(Job{Name: "ok", Run: func(context.Context) error {
		ran.Store(true)
		return nil
	}})

	assert.EqualError(t, failing.Wait(), "boom")
	assert.ErrorContains(t, panicking.Wait(), "kaboom")
	require.NoError(t, ok.Wait())
	assert.True(t, ran.Load())

	snapshot := pool.config.Metrics.Snapshot()
	assert.Equal(t, int64(3), snapshot.JobsTotal)
	assert.Equal(t, int64(2), snapshot.JobsFailed)
	assert.Equal(t, int64(1), snapshot.JobsPanic)

	pool.Stop()
}

func TestPool_FIFOWithSingleWorker(t *testing.T) {
	defer goleak.VerifyNone(t)
	pool := newTestPool(1, 1)

	var mu sync.Mutex
	var order []string
	record := func(name string) Job {
		return Job{Name: name, Run: func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}}
	}

	pool.Enqueue(record("A"))
	pool.Enqueue(record("B"))
	last := pool.Enqueue(record("C"))
	require.NoError(t, last.Wait())
	pool.Stop()

	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestPool_ParallelJobsRunConcurrently(t *testing.T) {
	defer goleak.VerifyNone(t)
	pool := newTestPool(1, 2)

	const sleep = 200 * time.Millisecond
	job := Job{Name: "sleep", Run: func(ctx context.Context) error {
		time.Sleep(sleep)
		return nil
	}}

	start := time.Now()
	first := pool.Enqueue(job, Parallel())
	second := pool.Enqueue(job, Parallel())
	require.NoError(t, first.Wait())
	require.NoError(t, second.Wait())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, sleep*2-50*time.Millisecond)
	pool.Stop()
}

func TestPool_ParallelLimitBoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)
	pool := newTestPool(1, 2)

	var current, peak atomic.Int32
	futures := make([]*Future, 0, 6)
	for i := 0; i < 6; i++ {
		futures = append(futures, pool.Enqueue(Job{Name: "bounded", Run: func(context.Context) error {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			current.Add(-1)
			return nil
		}}, Parallel()))
	}
	for _, f := range futures {
		require.NoError(t, f.Wait())
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
	pool.Stop()
}

func TestPool_StopDrainsQueue(t *testing.T) {
	defer goleak.VerifyNone(t)
	pool := newTestPool(2, 1)

	var done atomic.Int32
	for i := 0; i < 10; i++ {
		pool.Enqueue(Job{Name: "drain", Run: func(context.Context) error {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
			return nil
		}})
	}
	pool.Stop()
	assert.Equal(t, int32(10), done.Load())
	assert.Zero(t, pool.Len())

	assert.ErrorIs(t, pool.Enqueue(Job{Name: "late", Run: func(context.Context) error { return nil }}).Wait(), ErrPoolStopped)
	assert.ErrorIs(t, pool.Enqueue(Job{Name: "late", Run: func(context.Context) error { return nil }}, Parallel()).Wait(), ErrPoolStopped)

	// Stop is idempotent.
	pool.Stop()
}

func TestPool_JobContext(t *testing.T) {
	defer goleak.VerifyNone(t)
	pool := newTestPool(1, 1)

	var jobName string
	var ctxErr error
	f := pool.Enqueue(Job{Name: "context", Run: func(ctx context.Context) error {
		jc, ok := observability.FromContext(ctx)
		if ok {
			jobName = jc.JobName
		}
		ctxErr = ctx.Err()
		return aierrors.GuardRejected("thread closed")
	}})
	assert.True(t, aierrors.IsCode(f.Wait(), aierrors.ErrCodeGuardRejected))
	assert.Equal(t, "context", jobName)
	assert.NoError(t, ctxErr)
	pool.Stop()
}

func TestPool_StopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)
	pool := newTestPool(1, 1)
	pool.Stop()
}

func TestPool_ShutdownCancelsLongJobs(t *testing.T) {
	defer goleak.VerifyNone(t)
	pool := newTestPool(1, 1)

	started := make(chan struct{})
	long := pool.Enqueue(Job{Name: "populate", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}, Parallel())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	pool.Shutdown(ctx)
	assert.ErrorIs(t, long.Wait(), context.Canceled)
}

func TestPool_ShutdownWithinDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)
	pool := newTestPool(1, 1)

	var ctxErr error
	f := pool.Enqueue(Job{Name: "quick", Run: func(ctx context.Context) error {
		time.Sleep(5 * time.Millisecond)
		ctxErr = ctx.Err()
		return nil
	}})
	pool.Shutdown(context.Background())
	require.NoError(t, f.Wait())
	assert.NoError(t, ctxErr)
}
