package batch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/events"
	"github.com/phrazzld/jobtrail-api/internal/store"
)

// ClaimKind tags the outcome of ClaimNext.
type ClaimKind string

// Possible claim outcomes.
const (
	ClaimNotFound ClaimKind = "not_found"
	ClaimTerminal ClaimKind = "terminal"
	ClaimDone     ClaimKind = "done"
	ClaimClaimed  ClaimKind = "claimed"
)

// ClaimedTask is a task this caller now holds RUNNING.
type ClaimedTask struct {
	ID      uuid.UUID `json:"id"`
	JobID   uuid.UUID `json:"jobId"`
	Attempt int       `json:"attempt"`
	Title   string    `json:"title"`
	Company *string   `json:"company"`
	JobURL  string    `json:"jobUrl"`
}

// ClaimResult is the outcome of ClaimNext. BatchStatus is set for terminal and
// done, Progress for done and Task for claimed.
type ClaimResult struct {
	Kind        ClaimKind          `json:"kind"`
	BatchStatus domain.BatchStatus `json:"batchStatus,omitempty"`
	Progress    *domain.Progress   `json:"progress,omitempty"`
	Task        *ClaimedTask       `json:"task,omitempty"`
}

// ClaimNext reclaims the batch's stale tasks and claims its oldest PENDING task.
// At most one task is claimed per call. A batch without claimable work is
// reconciled and reported as done.
func (r *Runner) ClaimNext(ctx context.Context, userID, batchID uuid.UUID) (*ClaimResult, error) {
	b, err := r.store.GetBatch(ctx, userID, batchID)
	if errors.Is(err, store.ErrNotFound) {
		return &ClaimResult{Kind: ClaimNotFound}, nil
	}
	if err != nil {
		return nil, wrapErr("claim_next", err)
	}
	if b.Status.IsTerminal() {
		return &ClaimResult{Kind: ClaimTerminal, BatchStatus: b.Status}, nil
	}

	now := r.clock()
	if _, err := r.reclaim(ctx, &b.ID, now); err != nil {
		return nil, wrapErr("claim_next", err)
	}

	if b.Status == domain.BatchStatusQueued {
		if _, err := r.store.StartBatch(ctx, b.ID, now); err != nil {
			return nil, wrapErr("claim_next", err)
		}
	}

	for i := 0; i < r.cfg.ClaimRetries; i++ {
		candidate, err := r.store.NextPendingTask(ctx, b.ID)
		if err != nil {
			return nil, wrapErr("claim_next", err)
		}
		if candidate == nil {
			break
		}

		won, err := r.store.ClaimTask(ctx, candidate.TaskID, r.clock())
		if err != nil {
			return nil, wrapErr("claim_next", err)
		}
		r.metrics.ClaimAttempt(won)
		if !won {
			r.log(ctx).Debug("lost claim race",
				"batch_id", b.ID,
				"task_id", candidate.TaskID,
				"try", i+1)
			continue
		}

		return &ClaimResult{
			Kind: ClaimClaimed,
			Task: &ClaimedTask{
				ID:      candidate.TaskID,
				JobID:   candidate.JobID,
				Attempt: candidate.Attempt,
				Title:   candidate.JobTitle,
				Company: candidate.Company,
				JobURL:  candidate.JobURL,
			},
		}, nil
	}

	status, progress, err := r.reconcile(ctx, userID, b.ID)
	if err != nil {
		return nil, wrapErr("claim_next", err)
	}
	return &ClaimResult{Kind: ClaimDone, BatchStatus: status, Progress: &progress}, nil
}

// reclaim returns abandoned RUNNING tasks to PENDING. A nil batchID sweeps
// every batch.
func (r *Runner) reclaim(ctx context.Context, batchID *uuid.UUID, now time.Time) (store.ReclaimResult, error) {
	res, err := r.store.ReclaimStaleTasks(ctx, store.ReclaimOptions{
		BatchID:     batchID,
		StaleBefore: now.Add(-r.cfg.StaleAfter),
		MaxAttempts: r.cfg.MaxAttempts,
		Now:         now,
	})
	if err != nil {
		return res, err
	}
	if res.Reset > 0 || res.Exhausted > 0 {
		r.metrics.Reclaimed(res)
		r.log(ctx).Info("reclaimed stale tasks",
			"batch_id", batchID,
			"reset", res.Reset,
			"exhausted", res.Exhausted)
	}
	return res, nil
}

// reconcile derives the batch status from fresh task counts and stores it.
// Terminal batches are left untouched. When the guarded update loses to a
// concurrent transition the stored status is returned instead.
func (r *Runner) reconcile(ctx context.Context, userID, batchID uuid.UUID) (domain.BatchStatus, domain.Progress, error) {
	b, err := r.store.GetBatch(ctx, userID, batchID)
	if errors.Is(err, store.ErrNotFound) {
		return "", domain.Progress{}, notFound("Batch not found")
	}
	if err != nil {
		return "", domain.Progress{}, err
	}
	progress, err := r.store.CountTasksByStatus(ctx, userID, batchID)
	if err != nil {
		return "", domain.Progress{}, err
	}
	if b.Status.IsTerminal() {
		return b.Status, progress, nil
	}

	next := domain.NextBatchStatus(b.Status, progress)
	if next == b.Status && b.StartedAt != nil {
		return next, progress, nil
	}

	now := r.clock()
	update := store.BatchStatusUpdate{
		Status:    next,
		StartedAt: now,
		Now:       now,
	}
	if b.StartedAt != nil {
		update.StartedAt = *b.StartedAt
	}
	if next.IsTerminal() {
		update.CompletedAt = &now
	}
	switch {
	case next == domain.BatchStatusFailed && progress.Total() == 0:
		msg := domain.NoTasksRemainMessage
		update.Error = &msg
	case next == domain.BatchStatusFailed:
		msg, err := r.store.LatestFailedTaskError(ctx, batchID)
		if err != nil {
			return "", domain.Progress{}, err
		}
		if msg == nil || *msg == "" {
			def := domain.DefaultBatchFailureMessage
			msg = &def
		}
		update.Error = msg
	}

	won, err := r.store.UpdateBatchStatus(ctx, batchID, update)
	if err != nil {
		return "", domain.Progress{}, err
	}
	if !won {
		fresh, err := r.store.GetBatch(ctx, userID, batchID)
		if err != nil {
			return "", domain.Progress{}, err
		}
		return fresh.Status, progress, nil
	}

	if next.IsTerminal() {
		r.log(ctx).Info("batch finished",
			"batch_id", batchID,
			"status", next,
			"succeeded", progress.Succeeded,
			"failed", progress.Failed,
			"skipped", progress.Skipped)
		r.emit(ctx, events.BatchFinished, events.BatchEvent{
			BatchID: batchID, UserID: userID, Status: string(next),
		})
	}
	return next, progress, nil
}
