package batch

import (
	"context"
	"errors"

	"github.com/phrazzld/jobtrail-api/internal/store"
)

// WorkerSecretHeader carries the shared secret on worker requests.
const WorkerSecretHeader = "x-application-batch-secret"

// RunNextAvailableStep performs one step for the oldest-updated active batch
// of any user that has outstanding work. It reports OutcomeIdle when no such
// batch exists.
func (r *Runner) RunNextAvailableStep(ctx context.Context) (*StepResult, error) {
	staleBefore := r.clock().Add(-r.cfg.StaleAfter)
	b, err := r.store.NextRunnableBatch(ctx, staleBefore)
	if errors.Is(err, store.ErrNotFound) {
		r.metrics.Step(OutcomeIdle)
		return &StepResult{Outcome: OutcomeIdle}, nil
	}
	if err != nil {
		return nil, wrapErr("run_next_available_step", err)
	}

	res, err := r.RunStep(ctx, b.UserID, b.ID)
	if err != nil {
		return nil, err
	}
	r.metrics.Step(res.Outcome)
	return res, nil
}

// ReclaimAllStale sweeps abandoned claims across every batch.
func (r *Runner) ReclaimAllStale(ctx context.Context) (store.ReclaimResult, error) {
	res, err := r.reclaim(ctx, nil, r.clock())
	return res, wrapErr("reclaim_all_stale", err)
}
