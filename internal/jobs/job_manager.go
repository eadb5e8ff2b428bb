package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"account-portal/internal/metrics"
)

type Job interface {
	Name() string
	// RunOnce performs a single iteration. The manager calls it on every tick.
	RunOnce(ctx context.Context) error
	Interval() time.Duration
}

// JobManager runs every registered job on its own ticker until shutdown.
type JobManager struct {
	jobs        []Job
	logger      *slog.Logger
	wg          sync.WaitGroup
	cancelFuncs map[string]context.CancelFunc
	mu          sync.Mutex
}

func NewJobManager(logger *slog.Logger) *JobManager {
	return &JobManager{
		jobs:        make([]Job, 0),
		logger:      logger,
		cancelFuncs: make(map[string]context.CancelFunc),
	}
}

func (jm *JobManager) Register(job Job) {
	jm.jobs = append(jm.jobs, job)
}

func (jm *JobManager) Start(ctx context.Context) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	for _, job := range jm.jobs {
		if _, exists := jm.cancelFuncs[job.Name()]; exists {
			continue
		}

		jobCtx, cancel := context.WithCancel(ctx)
		jm.cancelFuncs[job.Name()] = cancel

		jm.wg.Add(1)
		go func(j Job) {
			defer jm.wg.Done()
			jm.logger.Info("Starting Job", "name", j.Name(), "interval", j.Interval())
			if err := jm.run(jobCtx, j); err != nil && !errors.Is(err, context.Canceled) {
				jm.logger.Error("Job failed", "job", j.Name(), "error", err)
			}
		}(job)
	}
}

func (jm *JobManager) Shutdown(ctx context.Context) {
	jm.logger.Debug("Shutting down job manager...")
	jm.stopAllJobs()

	done := make(chan struct{})
	go func() {
		jm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		jm.logger.Debug("All jobs stopped cleanly")
	case <-ctx.Done():
		jm.logger.Warn("Jobs failed to shut down, exiting...")
	}
}

func (jm *JobManager) run(ctx context.Context, job Job) error {
	if job.Interval() <= 0 {
		return fmt.Errorf("non-positive ticker interval: %s", job.Interval())
	}

	ticker := time.NewTicker(job.Interval())
	defer ticker.Stop()

	jm.runOnce(ctx, job)

	for {
		select {
		case <-ctx.Done():
			jm.logger.Debug("Job canceled", "job", job.Name())
			return ctx.Err()
		case <-ticker.C:
			jm.runOnce(ctx, job)
		}
	}
}

func (jm *JobManager) runOnce(ctx context.Context, job Job) {
	if err := job.RunOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.JobRunsTotal.WithLabelValues(job.Name(), metrics.OutcomeFailure).Inc()
		jm.logger.Error(fmt.Sprintf("Job iteration failed, trying again in %s", job.Interval()), "job", job.Name(), "error", err)
		return
	}
	metrics.JobRunsTotal.WithLabelValues(job.Name(), metrics.OutcomeSuccess).Inc()
}

func (jm *JobManager) stopAllJobs() {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	for _, job := range jm.jobs {
		if cancel, exists := jm.cancelFuncs[job.Name()]; exists {
			jm.logger.Debug("Stopping Job", "job", job.Name())
			cancel()
			delete(jm.cancelFuncs, job.Name())
		}
	}
}
