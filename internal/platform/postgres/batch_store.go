package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/platform/logger"
	"github.com/phrazzld/jobtrail-api/internal/store"
)

const batchColumns = `id, user_id, scope, status, total_count, error, source_batch_id,
	started_at, completed_at, created_at, updated_at`

const taskColumns = `t.id, t.batch_id, t.user_id, t.job_id, t.status, t.attempt,
	t.started_at, t.completed_at, t.error, t.created_at, t.updated_at`

// staleTaskFilter selects abandoned claims. $1 is the started_at cut-off and
// $2 an optional batch id.
const staleTaskFilter = `status = 'RUNNING'
	AND completed_at IS NULL
	AND started_at < $1
	AND ($2::uuid IS NULL OR batch_id = $2)`

// PostgresBatchStore implements store.BatchStore on PostgreSQL.
// Every transition is a single conditional UPDATE whose row count tells the
// caller whether it won.
type PostgresBatchStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresBatchStore creates a batch store over a connection pool or a
// transaction. If logger is nil, a default logger will be used.
func NewPostgresBatchStore(db store.DBTX, logger *slog.Logger) *PostgresBatchStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresBatchStore{
		db:     db,
		logger: logger.With(slog.String("component", "batch_store")),
	}
}

var _ store.BatchStore = (*PostgresBatchStore)(nil)

// InTx implements store.BatchStore.InTx. A store already bound to a
// transaction runs fn directly.
func (s *PostgresBatchStore) InTx(ctx context.Context, fn func(store.BatchStore) error) error {
	beginner, ok := s.db.(store.TxBeginner)
	if !ok {
		return fn(s)
	}
	return store.RunInTransaction(ctx, beginner, func(ctx context.Context, tx *sql.Tx) error {
		return fn(&PostgresBatchStore{db: tx, logger: s.logger})
	})
}

// CreateBatch implements store.BatchStore.CreateBatch.
// Tasks get strictly increasing creation times in jobIDs order so claims
// follow the order jobs were selected in.
func (s *PostgresBatchStore) CreateBatch(ctx context.Context, batch *domain.Batch, jobIDs []uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := batch.Validate(); err != nil {
		log.Warn("batch validation failed during create",
			slog.String("error", err.Error()),
			slog.String("batch_id", batch.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	return s.InTx(ctx, func(txStore store.BatchStore) error {
		tx := txStore.(*PostgresBatchStore)

		_, err := tx.db.ExecContext(ctx, `
			INSERT INTO application_batches
				(id, user_id, scope, status, total_count, error, source_batch_id,
				 started_at, completed_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			batch.ID, batch.UserID, batch.Scope, batch.Status, batch.TotalCount,
			batch.Error, nullUUID(batch.SourceBatchID), batch.StartedAt, batch.CompletedAt,
			batch.CreatedAt, batch.UpdatedAt,
		)
		if err != nil {
			log.Error("failed to insert batch",
				slog.String("error", err.Error()),
				slog.String("batch_id", batch.ID.String()))
			return fmt.Errorf("failed to create batch: %w", MapError(err))
		}

		for i, jobID := range jobIDs {
			createdAt := batch.CreatedAt.Add(time.Duration(i) * time.Microsecond)
			_, err := tx.db.ExecContext(ctx, `
				INSERT INTO application_batch_tasks
					(id, batch_id, user_id, job_id, status, attempt, created_at, updated_at)
				VALUES ($1, $2, $3, $4, 'PENDING', 0, $5, $5)
				ON CONFLICT (batch_id, job_id) DO NOTHING`,
				uuid.New(), batch.ID, batch.UserID, jobID, createdAt,
			)
			if err != nil {
				log.Error("failed to insert batch task",
					slog.String("error", err.Error()),
					slog.String("batch_id", batch.ID.String()),
					slog.String("job_id", jobID.String()))
				return fmt.Errorf("failed to create batch task: %w", MapError(err))
			}
		}

		log.Debug("batch created",
			slog.String("batch_id", batch.ID.String()),
			slog.Int("task_count", len(jobIDs)))
		return nil
	})
}

// GetBatch implements store.BatchStore.GetBatch.
func (s *PostgresBatchStore) GetBatch(ctx context.Context, userID, batchID uuid.UUID) (*domain.Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM application_batches WHERE id = $1 AND user_id = $2`,
		batchID, userID)
	return s.scanBatchRow(ctx, row, "get batch")
}

// FindActiveBatch implements store.BatchStore.FindActiveBatch.
func (s *PostgresBatchStore) FindActiveBatch(ctx context.Context, userID uuid.UUID) (*domain.Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+batchColumns+` FROM application_batches
		WHERE user_id = $1 AND status IN ('QUEUED', 'RUNNING')
		ORDER BY created_at DESC
		LIMIT 1`,
		userID)
	return s.scanBatchRow(ctx, row, "find active batch")
}

// LatestBatch implements store.BatchStore.LatestBatch.
func (s *PostgresBatchStore) LatestBatch(ctx context.Context, userID uuid.UUID) (*domain.Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+batchColumns+` FROM application_batches
		WHERE user_id = $1
		ORDER BY updated_at DESC, created_at DESC
		LIMIT 1`,
		userID)
	return s.scanBatchRow(ctx, row, "latest batch")
}

// StartBatch implements store.BatchStore.StartBatch.
func (s *PostgresBatchStore) StartBatch(ctx context.Context, batchID uuid.UUID, now time.Time) (bool, error) {
	return s.execCAS(ctx, "start batch", `
		UPDATE application_batches
		SET status = 'RUNNING', started_at = COALESCE(started_at, $2), updated_at = $2
		WHERE id = $1 AND status = 'QUEUED'`,
		batchID, now)
}

// UpdateBatchStatus implements store.BatchStore.UpdateBatchStatus.
func (s *PostgresBatchStore) UpdateBatchStatus(
	ctx context.Context,
	batchID uuid.UUID,
	update store.BatchStatusUpdate,
) (bool, error) {
	return s.execCAS(ctx, "update batch status", `
		UPDATE application_batches
		SET status = $2, error = $3, started_at = $4, completed_at = $5, updated_at = $6
		WHERE id = $1 AND status IN ('QUEUED', 'RUNNING')`,
		batchID, update.Status, update.Error, update.StartedAt, update.CompletedAt, update.Now)
}

// CancelBatch implements store.BatchStore.CancelBatch.
func (s *PostgresBatchStore) CancelBatch(
	ctx context.Context,
	batchID uuid.UUID,
	reason string,
	now time.Time,
) (bool, error) {
	return s.execCAS(ctx, "cancel batch", `
		UPDATE application_batches
		SET status = 'CANCELLED', error = $2, completed_at = $3, updated_at = $3
		WHERE id = $1 AND status IN ('QUEUED', 'RUNNING')`,
		batchID, reason, now)
}

// NextRunnableBatch implements store.BatchStore.NextRunnableBatch.
func (s *PostgresBatchStore) NextRunnableBatch(ctx context.Context, staleBefore time.Time) (*domain.Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+batchColumns+` FROM application_batches b
		WHERE b.status IN ('QUEUED', 'RUNNING')
		  AND (
			EXISTS (
				SELECT 1 FROM application_batch_tasks t
				WHERE t.batch_id = b.id AND t.status = 'PENDING')
			OR EXISTS (
				SELECT 1 FROM application_batch_tasks t
				WHERE t.batch_id = b.id AND t.status = 'RUNNING'
				  AND t.completed_at IS NULL AND t.started_at < $1)
			OR NOT EXISTS (
				SELECT 1 FROM application_batch_tasks t
				WHERE t.batch_id = b.id AND t.status IN ('PENDING', 'RUNNING'))
		  )
		ORDER BY b.updated_at ASC, b.id ASC
		LIMIT 1`,
		staleBefore)
	return s.scanBatchRow(ctx, row, "next runnable batch")
}

// ReclaimStaleTasks implements store.BatchStore.ReclaimStaleTasks.
// With an attempt cap, tasks at the cap fail before the remainder are reset.
func (s *PostgresBatchStore) ReclaimStaleTasks(
	ctx context.Context,
	opts store.ReclaimOptions,
) (store.ReclaimResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	var result store.ReclaimResult
	batchID := nullUUID(opts.BatchID)

	if opts.MaxAttempts > 0 {
		res, err := s.db.ExecContext(ctx, `
			UPDATE application_batch_tasks
			SET status = 'FAILED', error = $3, completed_at = $4, updated_at = $4
			WHERE `+staleTaskFilter+` AND attempt >= $5`,
			opts.StaleBefore, batchID, domain.StaleAttemptsExhausted, opts.Now, opts.MaxAttempts)
		if err != nil {
			log.Error("failed to fail exhausted stale tasks", slog.String("error", err.Error()))
			return result, fmt.Errorf("failed to fail exhausted stale tasks: %w", MapError(err))
		}
		if result.Exhausted, err = res.RowsAffected(); err != nil {
			return result, fmt.Errorf("failed to get rows affected: %w", err)
		}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE application_batch_tasks
		SET status = 'PENDING', started_at = NULL, completed_at = NULL,
		    attempt = attempt + 1, updated_at = $3
		WHERE `+staleTaskFilter+` AND ($4 = 0 OR attempt < $4)`,
		opts.StaleBefore, batchID, opts.Now, opts.MaxAttempts)
	if err != nil {
		log.Error("failed to reclaim stale tasks", slog.String("error", err.Error()))
		return result, fmt.Errorf("failed to reclaim stale tasks: %w", MapError(err))
	}
	if result.Reset, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if result.Reset > 0 || result.Exhausted > 0 {
		log.Info("reclaimed stale tasks",
			slog.Int64("reset", result.Reset),
			slog.Int64("exhausted", result.Exhausted))
	}
	return result, nil
}

// NextPendingTask implements store.BatchStore.NextPendingTask.
func (s *PostgresBatchStore) NextPendingTask(ctx context.Context, batchID uuid.UUID) (*store.ClaimCandidate, error) {
	var (
		c       store.ClaimCandidate
		company sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id, t.job_id, t.attempt, j.title, j.company, j.job_url
		FROM application_batch_tasks t
		JOIN jobs j ON j.id = t.job_id
		WHERE t.batch_id = $1 AND t.status = 'PENDING'
		ORDER BY t.created_at ASC, t.id ASC
		LIMIT 1`,
		batchID,
	).Scan(&c.TaskID, &c.JobID, &c.Attempt, &c.JobTitle, &company, &c.JobURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to find pending task",
			slog.String("error", err.Error()),
			slog.String("batch_id", batchID.String()))
		return nil, fmt.Errorf("failed to find pending task: %w", MapError(err))
	}
	c.Company = nullStringPtr(company)
	return &c, nil
}

// ClaimTask implements store.BatchStore.ClaimTask.
func (s *PostgresBatchStore) ClaimTask(ctx context.Context, taskID uuid.UUID, now time.Time) (bool, error) {
	return s.execCAS(ctx, "claim task", `
		UPDATE application_batch_tasks
		SET status = 'RUNNING', started_at = $2, completed_at = NULL, error = NULL, updated_at = $2
		WHERE id = $1 AND status = 'PENDING'`,
		taskID, now)
}

// GetTask implements store.BatchStore.GetTask.
func (s *PostgresBatchStore) GetTask(ctx context.Context, userID, batchID, taskID uuid.UUID) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM application_batch_tasks t
		WHERE t.id = $1 AND t.batch_id = $2 AND t.user_id = $3`,
		taskID, batchID, userID)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, fmt.Errorf("failed to get task: %w", MapError(err))
	}
	return task, nil
}

// CompleteTask implements store.BatchStore.CompleteTask.
func (s *PostgresBatchStore) CompleteTask(ctx context.Context, c store.TaskCompletion) (bool, error) {
	var attempt any
	if c.Attempt != nil {
		attempt = *c.Attempt
	}
	return s.execCAS(ctx, "complete task", `
		UPDATE application_batch_tasks
		SET status = $2, error = $3, completed_at = $4, updated_at = $4
		WHERE id = $1 AND status = 'RUNNING' AND ($5::integer IS NULL OR attempt = $5)`,
		c.TaskID, c.Status, c.Error, c.CompletedAt, attempt)
}

// SkipOpenTasks implements store.BatchStore.SkipOpenTasks.
func (s *PostgresBatchStore) SkipOpenTasks(
	ctx context.Context,
	batchID uuid.UUID,
	reason string,
	now time.Time,
) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE application_batch_tasks
		SET status = 'SKIPPED', error = $2, completed_at = $3, updated_at = $3
		WHERE batch_id = $1 AND status IN ('PENDING', 'RUNNING')`,
		batchID, reason, now)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to skip open tasks",
			slog.String("error", err.Error()),
			slog.String("batch_id", batchID.String()))
		return 0, fmt.Errorf("failed to skip open tasks: %w", MapError(err))
	}
	return res.RowsAffected()
}

// CountTasksByStatus implements store.BatchStore.CountTasksByStatus.
func (s *PostgresBatchStore) CountTasksByStatus(
	ctx context.Context,
	userID, batchID uuid.UUID,
) (domain.Progress, error) {
	var progress domain.Progress

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM application_batch_tasks
		WHERE batch_id = $1 AND user_id = $2
		GROUP BY status`,
		batchID, userID)
	if err != nil {
		return progress, fmt.Errorf("failed to count tasks: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			status domain.TaskStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return progress, fmt.Errorf("failed to scan task count: %w", err)
		}
		progress.Add(status, count)
	}
	if err := rows.Err(); err != nil {
		return progress, fmt.Errorf("error iterating task counts: %w", err)
	}
	return progress, nil
}

// LatestFailedTaskError implements store.BatchStore.LatestFailedTaskError.
func (s *PostgresBatchStore) LatestFailedTaskError(ctx context.Context, batchID uuid.UUID) (*string, error) {
	var msg sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT error FROM application_batch_tasks
		WHERE batch_id = $1 AND status = 'FAILED'
		ORDER BY updated_at DESC, id DESC
		LIMIT 1`,
		batchID,
	).Scan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest task error: %w", MapError(err))
	}
	return nullStringPtr(msg), nil
}

// FailedJobIDs implements store.BatchStore.FailedJobIDs.
func (s *PostgresBatchStore) FailedJobIDs(
	ctx context.Context,
	userID, batchID uuid.UUID,
	limit int,
) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id FROM application_batch_tasks
		WHERE batch_id = $1 AND user_id = $2 AND status = 'FAILED'
		GROUP BY job_id
		ORDER BY MAX(updated_at) DESC, job_id
		LIMIT $3`,
		batchID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed jobs: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failed jobs: %w", err)
	}
	return ids, nil
}

// ListTasks implements store.BatchStore.ListTasks.
func (s *PostgresBatchStore) ListTasks(
	ctx context.Context,
	userID, batchID uuid.UUID,
	status domain.TaskStatus,
	limit int,
) ([]domain.TaskView, error) {
	order := "t.completed_at DESC NULLS LAST, t.id"
	if status == domain.TaskStatusFailed {
		order = "t.updated_at DESC, t.id"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`, j.title, j.company, j.job_url
		FROM application_batch_tasks t
		JOIN jobs j ON j.id = t.job_id
		WHERE t.batch_id = $1 AND t.user_id = $2 AND t.status = $3
		ORDER BY `+order+`
		LIMIT $4`,
		batchID, userID, status, limit)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list tasks",
			slog.String("error", err.Error()),
			slog.String("batch_id", batchID.String()),
			slog.String("status", string(status)))
		return nil, fmt.Errorf("failed to list tasks: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	views := []domain.TaskView{}
	for rows.Next() {
		var (
			view    domain.TaskView
			company sql.NullString
		)
		task, err := scanTask(rows, &view.JobTitle, &company, &view.JobURL)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		view.Task = *task
		view.Company = nullStringPtr(company)
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return views, nil
}

// execCAS runs a conditional update and reports whether exactly this call
// changed a row.
func (s *PostgresBatchStore) execCAS(ctx context.Context, op string, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("conditional update failed",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return false, fmt.Errorf("failed to %s: %w", op, MapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresBatchStore) scanBatchRow(ctx context.Context, row rowScanner, op string) (*domain.Batch, error) {
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrBatchNotFound
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to read batch",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to %s: %w", op, MapError(err))
	}
	return batch, nil
}

func scanBatch(row rowScanner) (*domain.Batch, error) {
	var (
		b           domain.Batch
		errMsg      sql.NullString
		sourceBatch uuid.NullUUID
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(&b.ID, &b.UserID, &b.Scope, &b.Status, &b.TotalCount, &errMsg, &sourceBatch,
		&startedAt, &completedAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Error = nullStringPtr(errMsg)
	if sourceBatch.Valid {
		id := sourceBatch.UUID
		b.SourceBatchID = &id
	}
	b.StartedAt = nullTimePtr(startedAt)
	b.CompletedAt = nullTimePtr(completedAt)
	return &b, nil
}

// scanTask reads taskColumns followed by any extra destinations.
func scanTask(row rowScanner, extra ...any) (*domain.Task, error) {
	var (
		t           domain.Task
		startedAt   sql.NullTime
		completedAt sql.NullTime
		errMsg      sql.NullString
	)
	dest := append([]any{&t.ID, &t.BatchID, &t.UserID, &t.JobID, &t.Status, &t.Attempt,
		&startedAt, &completedAt, &errMsg, &t.CreatedAt, &t.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	t.StartedAt = nullTimePtr(startedAt)
	t.CompletedAt = nullTimePtr(completedAt)
	t.Error = nullStringPtr(errMsg)
	return &t, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time.UTC()
	return &v
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
