// Package scheduler triggers orchestration runs on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/errs"
	"github.com/Ramsey-B/fern/pkg/orchestration"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ErrSchedulerAlreadyRunning is returned when trying to start an already running scheduler
var ErrSchedulerAlreadyRunning = errors.New("scheduler already running")

// Runner executes one ingest+enrich cycle.
type Runner interface {
	Run(ctx context.Context) (*orchestration.RunResult, error)
}

// Scheduler calls Runner.Run every interval until stopped.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   ectologger.Logger

	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewScheduler creates a new scheduler. interval must be positive.
func NewScheduler(runner Runner, interval time.Duration, logger ectologger.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
	}
}

// Start starts the polling loop in the background. The first run happens
// immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	s.logger.WithContext(ctx).Infof("Starting scheduler: interval=%s", s.interval)

	go s.loop(ctx)
	return nil
}

// Stop stops the scheduler and waits for an in-flight run to finish or for
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("Stopping scheduler...")
	close(s.stopCh)

	select {
	case <-s.stoppedC:
		s.logger.WithContext(ctx).Info("Scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Scheduler shutdown timed out")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.stoppedC)

	// Cancel the in-flight run when Stop is called.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.WithContext(ctx).Debug("Scheduler loop stopping")
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "Scheduler.cycle")
	defer span.End()

	start := time.Now()
	result, err := s.runner.Run(ctx)
	switch {
	case errs.IsConflict(err):
		s.logger.WithContext(ctx).Info("Skipping scheduled run: another pass holds the lock")
	case err != nil && ctx.Err() != nil:
		s.logger.WithContext(ctx).WithError(err).Warn("Scheduled run cancelled")
	case err != nil:
		s.logger.WithContext(ctx).WithError(err).Error("Scheduled run failed")
	default:
		failed := len(result.Ingest.Failed())
		if result.Enrich != nil {
			failed += len(result.Enrich.Failed())
		}
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"cdc_key":  result.CDCKey,
			"failed":   failed,
			"duration": time.Since(start).String(),
		}).Info("Scheduled run completed")
	}
}
