// Package scheduler runs periodic jobs one at a time under a shared lock.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a named unit of periodic work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error

	// Interval overrides the scheduler interval. Such jobs are not staggered: their first
	// scheduled run comes one Interval after Start.
	Interval time.Duration
}

// Config holds scheduler configuration.
type Config struct {
	Interval time.Duration
	Jitter   time.Duration // Each wait is Interval plus a random duration in [0, Jitter)
	Logger   *zap.Logger
}

// Scheduler runs each job on its own loop. Runs of different jobs never overlap: every run
// holds the same mutex, so jobs may share exchange session state without further locking.
type Scheduler struct {
	interval time.Duration
	jitter   time.Duration
	logger   *zap.Logger

	jobs    []Job
	lock    sync.Mutex
	wg      sync.WaitGroup
	started bool
}

// New creates a new scheduler.
func New(cfg *Config) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if cfg.Jitter < 0 {
		return nil, fmt.Errorf("jitter must not be negative, got %s", cfg.Jitter)
	}

	return &Scheduler{
		interval: cfg.Interval,
		jitter:   cfg.Jitter,
		logger:   cfg.Logger,
	}, nil
}

// Add registers a job. Jobs must be added before Start.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start launches one loop per job. The first runs of jobs on the scheduler interval are
// staggered evenly across one interval. Loops stop when ctx is cancelled; use Wait to block
// until they have returned.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.started {
		return errors.New("scheduler already started")
	}
	if len(s.jobs) == 0 {
		return errors.New("no jobs to schedule")
	}
	s.started = true

	staggered := 0
	for _, job := range s.jobs {
		if job.Interval <= 0 {
			staggered++
		}
	}
	var stagger time.Duration
	if staggered > 0 {
		stagger = s.interval / time.Duration(staggered)
	}

	s.logger.Info("scheduler-starting",
		zap.Int("jobs", len(s.jobs)),
		zap.Duration("interval", s.interval),
		zap.Duration("jitter", s.jitter),
		zap.Duration("stagger", stagger))

	slot := 0
	for _, job := range s.jobs {
		delay := job.Interval
		if delay <= 0 {
			delay = time.Duration(slot) * stagger
			slot++
		}
		s.wg.Add(1)
		go s.loop(ctx, job, delay)
	}

	return nil
}

// Wait blocks until every job loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job, delay time.Duration) {
	defer s.wg.Done()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("job-stopping", zap.String("job", job.Name))
			return
		case <-timer.C:
		}

		if err := s.RunOnce(ctx, job); err != nil && ctx.Err() == nil {
			s.logger.Error("job-failed", zap.String("job", job.Name), zap.Error(err))
		}

		timer.Reset(s.nextWait(job))
	}
}

// RunOnce runs job under the shared lock. A panic in the job is recovered and returned as
// an error.
func (s *Scheduler) RunOnce(ctx context.Context, job Job) (err error) {
	waitStart := time.Now()
	s.lock.Lock()
	defer s.lock.Unlock()
	LockWaitSeconds.Observe(time.Since(waitStart).Seconds())

	if ctx.Err() != nil {
		return ctx.Err()
	}

	defer func() {
		if r := recover(); r != nil {
			JobRunsTotal.WithLabelValues(job.Name, "panic").Inc()
			s.logger.Error("job-panicked",
				zap.String("job", job.Name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()

	if err := job.Run(ctx); err != nil {
		JobRunsTotal.WithLabelValues(job.Name, "error").Inc()
		return err
	}
	JobRunsTotal.WithLabelValues(job.Name, "ok").Inc()
	return nil
}

func (s *Scheduler) nextWait(job Job) time.Duration {
	interval := s.interval
	if job.Interval > 0 {
		interval = job.Interval
	}
	if s.jitter <= 0 {
		return interval
	}
	return interval + rand.N(s.jitter)
}
