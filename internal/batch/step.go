package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/redact"
	"github.com/phrazzld/jobtrail-api/internal/store"
)

// Outcome tags the result of one step.
type Outcome string

// Possible step outcomes. Idle is only produced by RunNextAvailableStep.
const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDone      Outcome = "done"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeIdle      Outcome = "idle"
)

// StopReason explains why a stepping loop ended.
type StopReason string

// Possible stop reasons.
const (
	StopLimitReached  StopReason = "LIMIT_REACHED"
	StopBatchComplete StopReason = "BATCH_COMPLETE"
	StopBatchTerminal StopReason = "BATCH_TERMINAL"
)

const jobNotFoundMessage = "JOB_NOT_FOUND"

// StepTask is the resolved task of a processed step.
type StepTask struct {
	TaskID       uuid.UUID         `json:"taskId"`
	JobID        uuid.UUID         `json:"jobId"`
	Title        string            `json:"title"`
	Status       domain.TaskStatus `json:"status"`
	Error        *string           `json:"error,omitempty"`
	ResumePDFURL *string           `json:"resumePdfUrl,omitempty"`
	CoverPDFURL  *string           `json:"coverPdfUrl,omitempty"`
}

// StepResult is the outcome of one claim, build and complete cycle.
type StepResult struct {
	Outcome     Outcome            `json:"outcome"`
	BatchID     *uuid.UUID         `json:"batchId,omitempty"`
	UserID      *uuid.UUID         `json:"userId,omitempty"`
	BatchStatus domain.BatchStatus `json:"batchStatus,omitempty"`
	Progress    *domain.Progress   `json:"progress,omitempty"`
	Task        *StepTask          `json:"task,omitempty"`
	// Terminal is set when the step found the batch already terminal.
	Terminal bool `json:"-"`
}

// RunStep claims one task, builds its artifacts and records the outcome.
// A completion rejected because the task was cancelled or reclaimed during
// the build is logged and otherwise ignored.
func (r *Runner) RunStep(ctx context.Context, userID, batchID uuid.UUID) (*StepResult, error) {
	claim, err := r.ClaimNext(ctx, userID, batchID)
	if err != nil {
		return nil, err
	}

	res := &StepResult{BatchID: &batchID, UserID: &userID}
	switch claim.Kind {
	case ClaimNotFound:
		res.Outcome = OutcomeNotFound
		return res, nil
	case ClaimTerminal, ClaimDone:
		res.Outcome = OutcomeDone
		res.BatchStatus = claim.BatchStatus
		res.Progress = claim.Progress
		res.Terminal = claim.Kind == ClaimTerminal
		return res, nil
	}

	task := claim.Task
	stepTask := &StepTask{TaskID: task.ID, JobID: task.JobID, Title: task.Title}
	artifacts, buildErr := r.build(ctx, userID, task)

	completion := Completion{TaskID: task.ID, Attempt: &task.Attempt}
	if buildErr != nil {
		msg := redact.Message(buildErr, MaxTaskErrorLength, domain.DefaultTaskFailureMessage)
		completion.Status = domain.TaskStatusFailed
		completion.Error = &msg
		stepTask.Error = &msg
		r.log(ctx).Warn("artifact build failed",
			"batch_id", batchID,
			"task_id", task.ID,
			"error", msg)
	} else {
		completion.Status = domain.TaskStatusSucceeded
		if artifacts != nil {
			stepTask.ResumePDFURL = artifacts.ResumePDFURL
			stepTask.CoverPDFURL = artifacts.CoverPDFURL
		}
	}
	stepTask.Status = completion.Status

	done, err := r.CompleteTask(ctx, userID, batchID, completion)
	var re *RunnerError
	switch {
	case errors.As(err, &re):
		r.log(ctx).Info("discarded completion of a task that moved on",
			"batch_id", batchID,
			"task_id", task.ID,
			"code", re.Code,
			"reason", re.Message)
	case err != nil:
		return nil, err
	default:
		res.BatchStatus = done.BatchStatus
		res.Progress = &done.Progress
	}

	res.Outcome = OutcomeProcessed
	res.Task = stepTask
	return res, nil
}

// failMissingJob completes a claimed task FAILED because its job is gone.
func (r *Runner) failMissingJob(ctx context.Context, userID, batchID uuid.UUID, task *ClaimedTask) error {
	msg := jobNotFoundMessage
	_, err := r.CompleteTask(ctx, userID, batchID, Completion{
		TaskID:  task.ID,
		Attempt: &task.Attempt,
		Status:  domain.TaskStatusFailed,
		Error:   &msg,
	})
	if re, ok := AsRunnerError(err); ok {
		r.log(ctx).Info("discarded completion of a task that moved on",
			"batch_id", batchID,
			"task_id", task.ID,
			"code", re.Code,
			"reason", re.Message)
		return nil
	}
	return err
}

func (r *Runner) build(ctx context.Context, userID uuid.UUID, task *ClaimedTask) (*Artifacts, error) {
	if r.builder == nil {
		return nil, errors.New("ARTIFACT_BUILDER_UNAVAILABLE")
	}
	job, err := r.jobs.GetJob(ctx, userID, task.JobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New(jobNotFoundMessage)
	}
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	return r.builder.Build(ctx, userID, job)
}

// ExecuteCounts tallies the tasks resolved by Execute.
type ExecuteCounts struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ExecuteResult reports an Execute loop.
type ExecuteResult struct {
	BatchID     uuid.UUID          `json:"batchId"`
	BatchStatus domain.BatchStatus `json:"batchStatus"`
	StopReason  StopReason         `json:"stopReason"`
	Progress    domain.Progress    `json:"progress"`
	Counts      ExecuteCounts      `json:"counts"`
	Tasks       []StepTask         `json:"tasks"`
}

// Execute runs up to maxSteps steps in-process.
func (r *Runner) Execute(ctx context.Context, userID, batchID uuid.UUID, maxSteps int) (*ExecuteResult, error) {
	if !r.cfg.ExecuteEnabled {
		return nil, ErrExecuteDisabled
	}
	maxSteps = clamp(maxSteps, DefaultExecuteSteps, 1, MaxExecuteSteps)

	b, err := r.getBatch(ctx, userID, batchID)
	if err != nil {
		return nil, wrapErr("execute", err)
	}

	res := &ExecuteResult{BatchID: b.ID, StopReason: StopLimitReached, Tasks: []StepTask{}}
	var loop loopState
	for i := 0; i < maxSteps; i++ {
		step, err := r.RunStep(ctx, userID, batchID)
		if err != nil {
			return nil, wrapErr("execute", err)
		}
		if step.Outcome == OutcomeNotFound {
			return nil, notFound("Batch not found")
		}
		if step.Outcome == OutcomeDone {
			res.StopReason = loop.stop(step.Terminal, step.BatchStatus)
			break
		}

		loop.claimed++
		res.Tasks = append(res.Tasks, *step.Task)
		res.Counts.Processed++
		if step.Task.Status == domain.TaskStatusSucceeded {
			res.Counts.Succeeded++
		} else {
			res.Counts.Failed++
		}
	}

	res.Progress, err = r.store.CountTasksByStatus(ctx, userID, batchID)
	if err != nil {
		return nil, wrapErr("execute", err)
	}
	res.BatchStatus = loop.effectiveStatus(b.Status, res.Progress, res.StopReason)
	return res, nil
}

// RunOnceJob is the job context handed to an external builder.
type RunOnceJob struct {
	ID          uuid.UUID        `json:"id"`
	Title       string           `json:"title"`
	Company     *string          `json:"company"`
	JobURL      string           `json:"jobUrl"`
	Status      domain.JobStatus `json:"status"`
	Description *string          `json:"description"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// RunOnceTask is a task claimed for an external builder.
type RunOnceTask struct {
	TaskID  uuid.UUID  `json:"taskId"`
	JobID   uuid.UUID  `json:"jobId"`
	Attempt int        `json:"attempt"`
	Job     RunOnceJob `json:"job"`
}

// CompletionResult reports whether one submitted completion took effect.
type CompletionResult struct {
	TaskID   uuid.UUID         `json:"taskId"`
	Status   domain.TaskStatus `json:"status"`
	Accepted bool              `json:"accepted"`
	Error    string            `json:"error,omitempty"`
}

// RunOnceInput carries the completions to apply and the claim budget.
type RunOnceInput struct {
	MaxSteps    int
	Completions []Completion
}

// RunOnceResult reports a RunOnce call.
type RunOnceResult struct {
	Batch             *domain.Batch      `json:"batch"`
	Progress          domain.Progress    `json:"progress"`
	Tasks             []RunOnceTask      `json:"tasks"`
	RequestedMaxSteps int                `json:"requestedMaxSteps"`
	ClaimedCount      int                `json:"claimedCount"`
	CompletedCount    int                `json:"completedCount"`
	Completions       []CompletionResult `json:"completionResults"`
	StopReason        StopReason         `json:"stopReason"`
}

// RunOnce applies externally produced completions and claims up to MaxSteps
// tasks for an external builder. Claimed tasks whose job disappeared are
// failed with JOB_NOT_FOUND and not returned.
func (r *Runner) RunOnce(ctx context.Context, userID, batchID uuid.UUID, in RunOnceInput) (*RunOnceResult, error) {
	maxSteps := clamp(in.MaxSteps, DefaultRunOnceSteps, 1, MaxRunOnceSteps)

	b, err := r.getBatch(ctx, userID, batchID)
	if err != nil {
		return nil, wrapErr("run_once", err)
	}

	res := &RunOnceResult{
		Batch:             b,
		Tasks:             []RunOnceTask{},
		RequestedMaxSteps: maxSteps,
		Completions:       []CompletionResult{},
		StopReason:        StopLimitReached,
	}

	seen := make(map[uuid.UUID]bool, len(in.Completions))
	for _, c := range in.Completions {
		if seen[c.TaskID] || len(seen) == MaxCompletions {
			continue
		}
		seen[c.TaskID] = true

		cr := CompletionResult{TaskID: c.TaskID, Status: c.Status, Accepted: true}
		if _, err := r.CompleteTask(ctx, userID, batchID, c); err != nil {
			re, ok := AsRunnerError(err)
			if !ok {
				return nil, wrapErr("run_once", err)
			}
			cr.Accepted = false
			cr.Error = re.Code
		} else {
			res.CompletedCount++
		}
		res.Completions = append(res.Completions, cr)
	}

	var loop loopState
	if b.Status.IsTerminal() {
		res.StopReason = loop.stop(true, b.Status)
	} else {
		for i := 0; i < maxSteps; i++ {
			claim, err := r.ClaimNext(ctx, userID, batchID)
			if err != nil {
				return nil, wrapErr("run_once", err)
			}
			if claim.Kind == ClaimNotFound {
				return nil, notFound("Batch not found")
			}
			if claim.Kind != ClaimClaimed {
				res.StopReason = loop.stop(claim.Kind == ClaimTerminal, claim.BatchStatus)
				break
			}

			job, err := r.jobs.GetJob(ctx, userID, claim.Task.JobID)
			if errors.Is(err, store.ErrNotFound) {
				if err := r.failMissingJob(ctx, userID, batchID, claim.Task); err != nil {
					return nil, wrapErr("run_once", err)
				}
				continue
			}
			if err != nil {
				return nil, wrapErr("run_once", err)
			}
			loop.claimed++
			res.Tasks = append(res.Tasks, RunOnceTask{
				TaskID:  claim.Task.ID,
				JobID:   claim.Task.JobID,
				Attempt: claim.Task.Attempt,
				Job: RunOnceJob{
					ID:          job.ID,
					Title:       job.Title,
					Company:     job.Company,
					JobURL:      job.JobURL,
					Status:      job.Status,
					Description: job.Description,
					UpdatedAt:   job.UpdatedAt,
				},
			})
		}
	}
	res.ClaimedCount = loop.claimed

	res.Progress, err = r.store.CountTasksByStatus(ctx, userID, batchID)
	if err != nil {
		return nil, wrapErr("run_once", err)
	}
	batchView := *b
	batchView.Status = loop.effectiveStatus(b.Status, res.Progress, res.StopReason)
	res.Batch = &batchView
	return res, nil
}

// loopState tracks what a stepping loop observed.
type loopState struct {
	claimed        int
	terminalStatus domain.BatchStatus
	doneStatus     domain.BatchStatus
}

func (l *loopState) stop(terminal bool, status domain.BatchStatus) StopReason {
	if terminal {
		l.terminalStatus = status
		return StopBatchTerminal
	}
	l.doneStatus = status
	return StopBatchComplete
}

// effectiveStatus is the batch status to report after a stepping loop.
func (l *loopState) effectiveStatus(initial domain.BatchStatus, p domain.Progress, reason StopReason) domain.BatchStatus {
	switch {
	case l.terminalStatus != "":
		return l.terminalStatus
	case l.doneStatus != "":
		return l.doneStatus
	case p.Open() > 0:
		return domain.BatchStatusRunning
	case p.Failed > 0:
		return domain.BatchStatusFailed
	case p.Succeeded > 0 || p.Skipped > 0:
		return domain.BatchStatusSucceeded
	case l.claimed > 0 || reason == StopLimitReached:
		return domain.BatchStatusRunning
	default:
		return initial
	}
}
