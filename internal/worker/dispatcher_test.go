package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/store"
	"github.com/phrazzld/jobtrail-api/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedStepper returns the scripted outcomes in order, then idle forever.
type scriptedStepper struct {
	mu       sync.Mutex
	outcomes []batch.Outcome
	err      error
	calls    int
}

func (s *scriptedStepper) RunNextAvailableStep(ctx context.Context) (*batch.StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.outcomes) == 0 {
		return &batch.StepResult{Outcome: batch.OutcomeIdle}, nil
	}
	o := s.outcomes[0]
	s.outcomes = s.outcomes[1:]
	return &batch.StepResult{Outcome: o}, nil
}

func (s *scriptedStepper) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedStepper) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outcomes)
}

type countingSweeper struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSweeper) ReclaimAllStale(context.Context) (store.ReclaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return store.ReclaimResult{Reset: 1}, nil
}

func (s *countingSweeper) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeWake struct {
	mu    sync.Mutex
	err   error
	waits int
}

func (w *fakeWake) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	w.mu.Lock()
	w.waits++
	err := w.err
	w.mu.Unlock()
	if err != nil {
		return false, err
	}
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(timeout):
		return false, nil
	}
}

func (w *fakeWake) Waits() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.waits
}

func fastConfig() worker.Config {
	return worker.Config{
		WorkerCount:     2,
		PollInterval:    10 * time.Millisecond,
		SweepInterval:   10 * time.Millisecond,
		MaxStepsPerPoll: 5,
	}
}

func TestDispatcher_DrainsAvailableWork(t *testing.T) {
	t.Parallel()

	stepper := &scriptedStepper{outcomes: []batch.Outcome{
		batch.OutcomeProcessed, batch.OutcomeProcessed, batch.OutcomeProcessed,
		batch.OutcomeDone, batch.OutcomeProcessed, batch.OutcomeProcessed,
		batch.OutcomeProcessed, batch.OutcomeProcessed,
	}}
	d := worker.NewDispatcher(stepper, fastConfig(), discardLogger())
	d.Start(context.Background())
	defer d.Stop()

	require.Eventually(t, func() bool { return stepper.Remaining() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestDispatcher_StopHaltsWorkers(t *testing.T) {
	t.Parallel()

	stepper := &scriptedStepper{}
	d := worker.NewDispatcher(stepper, fastConfig(), discardLogger())
	d.Start(context.Background())
	d.Start(context.Background()) // no-op while running

	require.Eventually(t, func() bool { return stepper.Calls() >= 4 }, time.Second, 5*time.Millisecond)
	d.Stop()
	d.Stop()

	calls := stepper.Calls()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, stepper.Calls(), "no steps after Stop returns")
}

func TestDispatcher_SweepsOnStartAndPeriodically(t *testing.T) {
	t.Parallel()

	sweeper := &countingSweeper{}
	d := worker.NewDispatcher(&scriptedStepper{}, fastConfig(), discardLogger(), worker.WithSweeper(sweeper))
	d.Start(context.Background())
	defer d.Stop()

	assert.Equal(t, 1, sweeper.Calls(), "initial sweep runs before workers start")
	require.Eventually(t, func() bool { return sweeper.Calls() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestDispatcher_IdleUsesWakeSource(t *testing.T) {
	t.Parallel()

	wake := &fakeWake{}
	stepper := &scriptedStepper{}
	d := worker.NewDispatcher(stepper, fastConfig(), discardLogger(), worker.WithWakeSource(wake))
	d.Start(context.Background())
	defer d.Stop()

	require.Eventually(t, func() bool { return wake.Waits() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestDispatcher_WakeFailureFallsBackToPolling(t *testing.T) {
	t.Parallel()

	wake := &fakeWake{err: errors.New("connection refused")}
	stepper := &scriptedStepper{}
	d := worker.NewDispatcher(stepper, fastConfig(), discardLogger(), worker.WithWakeSource(wake))
	d.Start(context.Background())
	defer d.Stop()

	require.Eventually(t, func() bool { return stepper.Calls() >= 4 }, time.Second, 5*time.Millisecond)
}

func TestDispatcher_StepErrorsDoNotStopWorkers(t *testing.T) {
	t.Parallel()

	stepper := &scriptedStepper{err: errors.New("database unavailable")}
	d := worker.NewDispatcher(stepper, fastConfig(), discardLogger())
	d.Start(context.Background())
	defer d.Stop()

	require.Eventually(t, func() bool { return stepper.Calls() >= 4 }, time.Second, 5*time.Millisecond)
}

func TestDispatcher_ParentContextCancelStops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	stepper := &scriptedStepper{}
	d := worker.NewDispatcher(stepper, worker.Config{PollInterval: 10 * time.Millisecond}, nil)
	d.Start(ctx)

	require.Eventually(t, func() bool { return stepper.Calls() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the parent context was cancelled")
	}
}
