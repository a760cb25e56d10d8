package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/errs"
	"github.com/Ramsey-B/fern/pkg/logger"
	"github.com/Ramsey-B/fern/pkg/orchestration"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(ctx context.Context) (*orchestration.RunResult, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &orchestration.RunResult{CDCKey: 1, Ingest: &orchestration.PassResult{}}, nil
}

func TestScheduler_RunsUntilStopped(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, 10*time.Millisecond, logger.Nop())

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool { return runner.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())

	stopped := runner.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, runner.calls.Load())
}

func TestScheduler_KeepsGoingAfterBusyLock(t *testing.T) {
	runner := &countingRunner{err: errs.ConstraintViolation("run pass already in progress")}
	s := NewScheduler(runner, 5*time.Millisecond, logger.Nop())

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return runner.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}
