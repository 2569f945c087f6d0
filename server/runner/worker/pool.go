// Package worker runs deferred jobs on a fixed set of long-lived workers fed by an
// unbounded FIFO, plus a bounded executor for jobs that must start immediately.
package worker

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	aierrors "github.com/hrygo/overflew/server/internal/errors"
	"github.com/hrygo/overflew/server/internal/observability"
)

const (
	DefaultWorkers       = 3
	DefaultParallelLimit = 3
	DefaultPollInterval  = 500 * time.Millisecond
)

// ErrPoolStopped is returned by futures of jobs submitted after Stop.
var ErrPoolStopped = errors.New("worker pool stopped")

// Job is a named unit of deferred work. Run receives a fresh job context
// derived from the pool, never the context of the code that enqueued it.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

type Config struct {
	Workers       int
	ParallelLimit int
	PollInterval  time.Duration
	Logger        *slog.Logger
	Metrics       *observability.Metrics
}

type enqueueOptions struct {
	parallel bool
}

// EnqueueOption configures a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

// Parallel submits the job to the bounded executor instead of the FIFO.
func Parallel() EnqueueOption {
	return func(o *enqueueOptions) {
		o.parallel = true
	}
}

// Future resolves when its job finishes. Callers on the trigger path ignore it.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(err error) {
	f.err = err
	close(f.done)
}

// Done is closed once the job has finished.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the job finishes and returns its error, including recovered panics.
func (f *Future) Wait() error {
	<-f.done
	return f.err
}

type queuedJob struct {
	job    Job
	future *Future
}

// Pool owns the FIFO, the worker goroutines and the parallel executor.
type Pool struct {
	config Config

	mu             sync.Mutex
	running        bool
	stopping       bool
	parallelClosed bool
	queue          []queuedJob

	notify   chan struct{}
	quit     chan struct{}
	pending  sync.WaitGroup // queued jobs not yet finished
	workers  sync.WaitGroup
	parallel sync.WaitGroup
	sem      *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a pool. Workers start lazily on the first Enqueue or an explicit Start.
func NewPool(config Config) *Pool {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.ParallelLimit <= 0 {
		config.ParallelLimit = DefaultParallelLimit
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Metrics == nil {
		config.Metrics = observability.GlobalMetrics()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		config: config,
		notify: make(chan struct{}, 1),
		quit:   make(chan struct{}),
		sem:    semaphore.NewWeighted(int64(config.ParallelLimit)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the workers. It is idempotent and a no-op once Stop has been called.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startLocked()
}

func (p *Pool) startLocked() {
	if p.running || p.stopping {
		return
	}
	p.running = true
	for i := 0; i < p.config.Workers; i++ {
		p.workers.Add(1)
		go p.workerLoop(i)
	}
	p.config.Logger.Info("worker pool started",
		slog.Int("workers", p.config.Workers),
		slog.Int("parallel_limit", p.config.ParallelLimit),
	)
}

// Enqueue submits job. By default it is appended to the FIFO; with Parallel it starts at once
// in its own goroutine once an executor slot is free. Failures are logged, never returned to
// the caller except through the Future.
func (p *Pool) Enqueue(job Job, opts ...EnqueueOption) *Future {
	options := enqueueOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	future := newFuture()

	p.mu.Lock()
	p.startLocked()
	if options.parallel {
		if p.parallelClosed {
			p.mu.Unlock()
			future.resolve(ErrPoolStopped)
			return future
		}
		p.parallel.Add(1)
		p.mu.Unlock()
		go p.runParallel(job, future)
		return future
	}

	if p.stopping {
		p.mu.Unlock()
		future.resolve(ErrPoolStopped)
		return future
	}
	p.pending.Add(1)
	p.queue = append(p.queue, queuedJob{job: job, future: future})
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return future
}

// Len returns the number of queued jobs not yet picked up by a worker.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Stop refuses new queued work, waits for the FIFO to drain, then refuses new parallel
// work and waits for in-flight parallel jobs.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return
	}
	p.stopping = true
	wasRunning := p.running
	p.mu.Unlock()

	p.pending.Wait()
	if wasRunning {
		close(p.quit)
		p.workers.Wait()
	}

	p.mu.Lock()
	p.running = false
	p.parallelClosed = true
	p.mu.Unlock()

	p.parallel.Wait()
	p.cancel()
	p.config.Logger.Info("worker pool stopped")
}

// Shutdown is Stop bounded by ctx. When ctx is done first, the context handed to jobs is
// canceled and Shutdown returns once the running jobs have observed it.
func (p *Pool) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		p.config.Logger.Warn("worker pool shutdown deadline reached, canceling running jobs")
		p.cancel()
		<-done
	}
}

func (p *Pool) dequeue() (queuedJob, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return queuedJob{}, false
	}
	next := p.queue[0]
	p.queue[0] = queuedJob{}
	p.queue = p.queue[1:]
	return next, true
}

func (p *Pool) workerLoop(id int) {
	defer p.workers.Done()
	timer := time.NewTimer(p.config.PollInterval)
	defer timer.Stop()

	for {
		if next, ok := p.dequeue(); ok {
			next.future.resolve(p.run(next.job))
			p.pending.Done()
			continue
		}

		timer.Reset(p.config.PollInterval)
		select {
		case <-p.quit:
			p.config.Logger.Debug("worker exiting", slog.Int("worker", id))
			return
		case <-p.notify:
		case <-timer.C:
		}
	}
}

func (p *Pool) runParallel(job Job, future *Future) {
	defer p.parallel.Done()
	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		future.resolve(errors.Wrap(err, "acquire parallel slot"))
		return
	}
	defer p.sem.Release(1)
	future.resolve(p.run(job))
}

// run executes job under a fresh job context, recovering panics so the calling loop survives.
func (p *Pool) run(job Job) (err error) {
	jc := observability.NewJobContext(p.config.Logger, job.Name)
	ctx := observability.WithJobContext(p.ctx, jc)

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("job panicked: %v", r)
			p.config.Metrics.RecordPanic()
			jc.Logger.Error("job panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
		p.config.Metrics.RecordJob(job.Name, jc.Duration(), err)
		p.logResult(jc, err)
	}()

	return job.Run(ctx)
}

func (p *Pool) logResult(jc *observability.JobContext, err error) {
	duration := slog.Int64(observability.LogFieldDuration, jc.Duration().Milliseconds())
	switch {
	case err == nil:
		jc.Debug("job finished", duration)
	case aierrors.IsCode(err, aierrors.ErrCodeGuardRejected):
		jc.Info("job skipped", duration, slog.String("reason", err.Error()))
	case aierrors.IsCode(err, aierrors.ErrCodeNotFound):
		jc.Warn("job target vanished", duration, slog.String("error", err.Error()))
	default:
		jc.Error("job failed", err, duration,
			slog.String(observability.LogFieldErrorCode, string(aierrors.GetCodeFromError(err, "UNKNOWN"))))
	}
}
