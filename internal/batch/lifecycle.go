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

// CreateOptions selects the jobs of a new batch. When JobIDs is non-empty
// only those jobs are eligible and Limit is ignored.
type CreateOptions struct {
	Limit  int
	JobIDs []uuid.UUID
}

// Create starts a NEW-scope batch over the user's NEW jobs.
func (r *Runner) Create(ctx context.Context, userID uuid.UUID, opts CreateOptions) (*domain.Batch, error) {
	if err := r.ensureNoActiveBatch(ctx, userID); err != nil {
		return nil, wrapErr("create_batch", err)
	}

	query := store.JobQuery{UserID: userID, JobIDs: dedupe(opts.JobIDs)}
	if len(query.JobIDs) > MaxJobLimit {
		query.JobIDs = query.JobIDs[:MaxJobLimit]
	}
	if len(query.JobIDs) == 0 {
		query.Limit = clamp(opts.Limit, DefaultJobLimit, 1, MaxJobLimit)
	}

	jobs, err := r.jobs.ListEligibleJobs(ctx, query)
	if err != nil {
		return nil, wrapErr("create_batch", err)
	}
	if len(jobs) == 0 {
		return nil, ErrNoEligibleJobs
	}

	jobIDs := make([]uuid.UUID, len(jobs))
	for i, j := range jobs {
		jobIDs[i] = j.ID
	}

	b, err := r.insertBatch(ctx, userID, domain.BatchScopeNew, nil, jobIDs)
	if err != nil {
		return nil, wrapErr("create_batch", err)
	}
	return b, nil
}

// CancelResult is the outcome of Cancel.
type CancelResult struct {
	BatchID         uuid.UUID          `json:"batchId"`
	BatchStatus     domain.BatchStatus `json:"batchStatus"`
	Progress        domain.Progress    `json:"progress"`
	AlreadyTerminal bool               `json:"alreadyTerminal"`
}

// Cancel marks an active batch CANCELLED and skips its open tasks. Builds in
// flight are not interrupted; their completions lose the RUNNING
// precondition and are discarded.
func (r *Runner) Cancel(ctx context.Context, userID, batchID uuid.UUID) (*CancelResult, error) {
	b, err := r.getBatch(ctx, userID, batchID)
	if err != nil {
		return nil, wrapErr("cancel_batch", err)
	}

	result := &CancelResult{BatchID: b.ID, BatchStatus: b.Status, AlreadyTerminal: b.Status.IsTerminal()}
	if !result.AlreadyTerminal {
		now := r.clock()
		var skipped int64
		err = r.store.InTx(ctx, func(tx store.BatchStore) error {
			won, err := tx.CancelBatch(ctx, b.ID, domain.CancelledByUserMessage, now)
			if err != nil || !won {
				return err
			}
			skipped, err = tx.SkipOpenTasks(ctx, b.ID, domain.CancelledByUserMessage, now)
			if err != nil {
				return err
			}
			result.BatchStatus = domain.BatchStatusCancelled
			return nil
		})
		if err != nil {
			return nil, wrapErr("cancel_batch", err)
		}

		if result.BatchStatus == domain.BatchStatusCancelled {
			r.log(ctx).Info("batch cancelled", "batch_id", b.ID, "skipped", skipped)
			r.emit(ctx, events.BatchFinished, events.BatchEvent{
				BatchID: b.ID, UserID: userID, Status: string(domain.BatchStatusCancelled),
			})
		} else {
			// Finished concurrently; report what won.
			fresh, err := r.getBatch(ctx, userID, batchID)
			if err != nil {
				return nil, wrapErr("cancel_batch", err)
			}
			result.BatchStatus = fresh.Status
			result.AlreadyTerminal = true
		}
	}

	result.Progress, err = r.store.CountTasksByStatus(ctx, userID, b.ID)
	if err != nil {
		return nil, wrapErr("cancel_batch", err)
	}
	return result, nil
}

// RetryFailed creates a RETRY_FAILED batch over the distinct jobs of the
// source batch's FAILED tasks, newest first, up to limit.
func (r *Runner) RetryFailed(ctx context.Context, userID, sourceID uuid.UUID, limit int) (*domain.Batch, error) {
	limit = clamp(limit, DefaultJobLimit, 1, MaxJobLimit)

	source, err := r.getBatch(ctx, userID, sourceID)
	if err != nil {
		return nil, wrapErr("retry_failed", err)
	}
	if !source.Status.IsTerminal() {
		return nil, invalidState("Batch is not finished")
	}
	if err := r.ensureNoActiveBatch(ctx, userID); err != nil {
		if errors.Is(err, ErrActiveBatchExists) {
			return nil, invalidState("Active batch already exists")
		}
		return nil, wrapErr("retry_failed", err)
	}

	jobIDs, err := r.store.FailedJobIDs(ctx, userID, source.ID, limit)
	if err != nil {
		return nil, wrapErr("retry_failed", err)
	}
	if len(jobIDs) == 0 {
		return nil, invalidState("No failed tasks to retry")
	}

	b, err := r.insertBatch(ctx, userID, domain.BatchScopeRetryFailed, &source.ID, jobIDs)
	if errors.Is(err, ErrActiveBatchExists) {
		return nil, invalidState("Active batch already exists")
	}
	if err != nil {
		return nil, wrapErr("retry_failed", err)
	}
	return b, nil
}

// Progress returns fresh task counts of the user's batch.
func (r *Runner) Progress(ctx context.Context, userID, batchID uuid.UUID) (domain.Progress, error) {
	if _, err := r.getBatch(ctx, userID, batchID); err != nil {
		return domain.Progress{}, wrapErr("progress", err)
	}
	p, err := r.store.CountTasksByStatus(ctx, userID, batchID)
	return p, wrapErr("progress", err)
}

// Latest returns the user's most recently updated batch, or nil.
func (r *Runner) Latest(ctx context.Context, userID uuid.UUID) (*domain.Batch, error) {
	b, err := r.store.LatestBatch(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("latest", err)
	}
	return b, nil
}

// NextTask is the task a claim would pick next.
type NextTask struct {
	ID      uuid.UUID `json:"id"`
	JobID   uuid.UUID `json:"jobId"`
	Attempt int       `json:"attempt"`
	Title   string    `json:"title"`
	Company *string   `json:"company"`
	JobURL  string    `json:"jobUrl"`
}

// Detail is a batch with its progress and next claimable task.
type Detail struct {
	Batch    *domain.Batch   `json:"batch"`
	Progress domain.Progress `json:"progress"`
	NextTask *NextTask       `json:"nextTask"`
}

// Detail returns the batch, fresh progress and the next PENDING task.
func (r *Runner) Detail(ctx context.Context, userID, batchID uuid.UUID) (*Detail, error) {
	b, err := r.getBatch(ctx, userID, batchID)
	if err != nil {
		return nil, wrapErr("detail", err)
	}
	progress, err := r.store.CountTasksByStatus(ctx, userID, batchID)
	if err != nil {
		return nil, wrapErr("detail", err)
	}
	candidate, err := r.store.NextPendingTask(ctx, batchID)
	if err != nil {
		return nil, wrapErr("detail", err)
	}

	d := &Detail{Batch: b, Progress: progress}
	if candidate != nil {
		d.NextTask = &NextTask{
			ID:      candidate.TaskID,
			JobID:   candidate.JobID,
			Attempt: candidate.Attempt,
			Title:   candidate.JobTitle,
			Company: candidate.Company,
			JobURL:  candidate.JobURL,
		}
	}
	return d, nil
}

// FailedTask is a FAILED task in a summary.
type FailedTask struct {
	TaskID    uuid.UUID `json:"taskId"`
	JobID     uuid.UUID `json:"jobId"`
	Title     string    `json:"title"`
	Company   *string   `json:"company"`
	JobURL    string    `json:"jobUrl"`
	Error     string    `json:"error"`
	Attempt   int       `json:"attempt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SucceededTask is a SUCCEEDED task in a summary with its artifact URLs.
type SucceededTask struct {
	TaskID       uuid.UUID  `json:"taskId"`
	JobID        uuid.UUID  `json:"jobId"`
	Title        string     `json:"title"`
	Company      *string    `json:"company"`
	JobURL       string     `json:"jobUrl"`
	CompletedAt  *time.Time `json:"completedAt"`
	ResumePDFURL *string    `json:"resumePdfUrl"`
	CoverPDFURL  *string    `json:"coverPdfUrl"`
}

// Summary reports a batch's outcome.
type Summary struct {
	Batch          *domain.Batch   `json:"batch"`
	Progress       domain.Progress `json:"progress"`
	RemainingCount int             `json:"remainingCount"`
	Failed         []FailedTask    `json:"failed"`
	Succeeded      []SucceededTask `json:"succeeded"`
}

// Summary lists the newest failed and succeeded tasks of the batch.
func (r *Runner) Summary(ctx context.Context, userID, batchID uuid.UUID) (*Summary, error) {
	b, err := r.getBatch(ctx, userID, batchID)
	if err != nil {
		return nil, wrapErr("summary", err)
	}
	progress, err := r.store.CountTasksByStatus(ctx, userID, batchID)
	if err != nil {
		return nil, wrapErr("summary", err)
	}
	failed, err := r.store.ListTasks(ctx, userID, batchID, domain.TaskStatusFailed, summaryTaskLimit)
	if err != nil {
		return nil, wrapErr("summary", err)
	}
	succeeded, err := r.store.ListTasks(ctx, userID, batchID, domain.TaskStatusSucceeded, summaryTaskLimit)
	if err != nil {
		return nil, wrapErr("summary", err)
	}

	s := &Summary{
		Batch:          b,
		Progress:       progress,
		RemainingCount: progress.Open(),
		Failed:         make([]FailedTask, 0, len(failed)),
		Succeeded:      make([]SucceededTask, 0, len(succeeded)),
	}
	for _, t := range failed {
		msg := domain.DefaultTaskFailureMessage
		if t.Error != nil && *t.Error != "" {
			msg = *t.Error
		}
		s.Failed = append(s.Failed, FailedTask{
			TaskID:    t.ID,
			JobID:     t.JobID,
			Title:     t.JobTitle,
			Company:   t.Company,
			JobURL:    t.JobURL,
			Error:     msg,
			Attempt:   t.Attempt,
			UpdatedAt: t.UpdatedAt,
		})
	}

	if len(succeeded) == 0 {
		return s, nil
	}
	jobIDs := make([]uuid.UUID, len(succeeded))
	for i, t := range succeeded {
		jobIDs[i] = t.JobID
	}
	apps, err := r.apps.ListByJobIDs(ctx, userID, jobIDs)
	if err != nil {
		return nil, wrapErr("summary", err)
	}
	byJob := make(map[uuid.UUID]*domain.Application, len(apps))
	for _, a := range apps {
		byJob[a.JobID] = a
	}
	for _, t := range succeeded {
		st := SucceededTask{
			TaskID:      t.ID,
			JobID:       t.JobID,
			Title:       t.JobTitle,
			Company:     t.Company,
			JobURL:      t.JobURL,
			CompletedAt: t.CompletedAt,
		}
		if a, ok := byJob[t.JobID]; ok {
			st.ResumePDFURL = a.ResumePDFURL
			st.CoverPDFURL = a.CoverPDFURL
		}
		s.Succeeded = append(s.Succeeded, st)
	}
	return s, nil
}

func (r *Runner) getBatch(ctx context.Context, userID, batchID uuid.UUID) (*domain.Batch, error) {
	b, err := r.store.GetBatch(ctx, userID, batchID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Batch not found")
	}
	return b, err
}

func (r *Runner) ensureNoActiveBatch(ctx context.Context, userID uuid.UUID) error {
	active, err := r.store.FindActiveBatch(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return &ActiveBatchError{BatchID: active.ID, Status: active.Status}
}

// insertBatch creates the batch and its tasks in one transaction and
// announces it. A unique violation on the user's active batch means a
// concurrent create won.
func (r *Runner) insertBatch(
	ctx context.Context,
	userID uuid.UUID,
	scope domain.BatchScope,
	sourceID *uuid.UUID,
	jobIDs []uuid.UUID,
) (*domain.Batch, error) {
	b, err := domain.NewBatch(userID, scope, len(jobIDs))
	if err != nil {
		return nil, err
	}
	b.SourceBatchID = sourceID
	now := r.clock()
	b.CreatedAt, b.UpdatedAt = now, now

	err = r.store.InTx(ctx, func(tx store.BatchStore) error {
		return tx.CreateBatch(ctx, b, jobIDs)
	})
	if errors.Is(err, store.ErrDuplicate) {
		if activeErr := r.ensureNoActiveBatch(ctx, userID); activeErr != nil {
			return nil, activeErr
		}
	}
	if err != nil {
		return nil, err
	}

	r.log(ctx).Info("batch created",
		"batch_id", b.ID,
		"scope", scope,
		"total_count", b.TotalCount)
	r.emit(ctx, events.BatchCreated, events.BatchEvent{
		BatchID: b.ID, UserID: userID, Status: string(b.Status),
	})
	return b, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
