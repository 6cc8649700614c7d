package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/store"
)

type memoryData struct {
	batches map[uuid.UUID]*domain.Batch
	tasks   map[uuid.UUID]*domain.Task
	jobs    map[uuid.UUID]*domain.Job
	apps    map[uuid.UUID]*domain.Application // keyed by job id

	// Errors injects a failure into the named method, e.g. "CompleteTask".
	errors map[string]error
	// lostClaims makes the next n ClaimTask calls lose their race.
	lostClaims int
	calls      map[string]int
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		batches:    make(map[uuid.UUID]*domain.Batch, len(d.batches)),
		tasks:      make(map[uuid.UUID]*domain.Task, len(d.tasks)),
		jobs:       d.jobs,
		apps:       make(map[uuid.UUID]*domain.Application, len(d.apps)),
		errors:     d.errors,
		lostClaims: d.lostClaims,
		calls:      d.calls,
	}
	for id, b := range d.batches {
		cp := *b
		c.batches[id] = &cp
	}
	for id, t := range d.tasks {
		cp := *t
		c.tasks[id] = &cp
	}
	for id, a := range d.apps {
		cp := *a
		c.apps[id] = &cp
	}
	return c
}

// MemoryStore is an in-memory store.BatchStore, store.JobStore and
// store.ApplicationStore. Every method runs under one mutex and applies the
// same status preconditions as the PostgreSQL implementation, so concurrent
// callers observe the same compare-and-swap outcomes.
type MemoryStore struct {
	mu     *sync.Mutex
	data   **memoryData
	locked bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	d := &memoryData{
		batches: make(map[uuid.UUID]*domain.Batch),
		tasks:   make(map[uuid.UUID]*domain.Task),
		jobs:    make(map[uuid.UUID]*domain.Job),
		apps:    make(map[uuid.UUID]*domain.Application),
		errors:  make(map[string]error),
		calls:   make(map[string]int),
	}
	return &MemoryStore{mu: &sync.Mutex{}, data: &d}
}

var (
	_ store.BatchStore       = (*MemoryStore)(nil)
	_ store.JobStore         = (*MemoryStore)(nil)
	_ store.ApplicationStore = (*MemoryStore)(nil)
)

func (s *MemoryStore) enter(method string) (*memoryData, func(), error) {
	unlock := func() {}
	if !s.locked {
		s.mu.Lock()
		unlock = s.mu.Unlock
	}
	d := *s.data
	d.calls[method]++
	if err := d.errors[method]; err != nil {
		unlock()
		return nil, func() {}, err
	}
	return d, unlock, nil
}

// FailWith makes every later call to method return err. A nil err clears it.
func (s *MemoryStore) FailWith(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete((*s.data).errors, method)
		return
	}
	(*s.data).errors[method] = err
}

// LoseNextClaims makes the next n ClaimTask calls report a lost race.
func (s *MemoryStore) LoseNextClaims(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	(*s.data).lostClaims = n
}

// Calls returns how often method has been called.
func (s *MemoryStore) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (*s.data).calls[method]
}

// AddJob stores a copy of job.
func (s *MemoryStore) AddJob(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	(*s.data).jobs[job.ID] = &cp
}

// DeleteJob removes a job row and, like the foreign key cascade, its tasks.
func (s *MemoryStore) DeleteJob(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := *s.data
	delete(d.jobs, id)
	for taskID, t := range d.tasks {
		if t.JobID == id {
			delete(d.tasks, taskID)
		}
	}
}

// Task returns a copy of the stored task, or nil.
func (s *MemoryStore) Task(id uuid.UUID) *domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := (*s.data).tasks[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

// Tasks returns copies of the batch's tasks in claim order.
func (s *MemoryStore) Tasks(batchID uuid.UUID) []*domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Task
	for _, t := range (*s.data).tasks {
		if t.BatchID == batchID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sortTasks(out)
	return out
}

// Batch returns a copy of the stored batch, or nil.
func (s *MemoryStore) Batch(id uuid.UUID) *domain.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := (*s.data).batches[id]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

// UpdateTask mutates a stored task directly, bypassing preconditions.
func (s *MemoryStore) UpdateTask(id uuid.UUID, fn func(*domain.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := (*s.data).tasks[id]; ok {
		fn(t)
	}
}

// UpdateBatch mutates a stored batch directly, bypassing preconditions.
func (s *MemoryStore) UpdateBatch(id uuid.UUID, fn func(*domain.Batch)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := (*s.data).batches[id]; ok {
		fn(b)
	}
}

// InTx implements store.BatchStore.InTx. Changes made by fn are discarded
// when it returns an error.
func (s *MemoryStore) InTx(ctx context.Context, fn func(store.BatchStore) error) error {
	if s.locked {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := (*s.data).clone()
	if err := fn(&MemoryStore{mu: s.mu, data: s.data, locked: true}); err != nil {
		*s.data = snapshot
		return err
	}
	return nil
}

// CreateBatch implements store.BatchStore.CreateBatch.
func (s *MemoryStore) CreateBatch(ctx context.Context, batch *domain.Batch, jobIDs []uuid.UUID) error {
	d, unlock, err := s.enter("CreateBatch")
	defer unlock()
	if err != nil {
		return err
	}
	if err := batch.Validate(); err != nil {
		return err
	}
	if _, exists := d.batches[batch.ID]; exists {
		return store.ErrDuplicate
	}
	for _, other := range d.batches {
		if other.UserID == batch.UserID && other.Status.IsActive() && batch.Status.IsActive() {
			return fmt.Errorf("%w: user already has an active batch", store.ErrDuplicate)
		}
	}

	cp := *batch
	d.batches[batch.ID] = &cp
	seen := make(map[uuid.UUID]bool, len(jobIDs))
	for i, jobID := range jobIDs {
		if seen[jobID] {
			continue
		}
		seen[jobID] = true
		createdAt := batch.CreatedAt.Add(time.Duration(i) * time.Microsecond)
		id := uuid.New()
		d.tasks[id] = &domain.Task{
			ID:        id,
			BatchID:   batch.ID,
			UserID:    batch.UserID,
			JobID:     jobID,
			Status:    domain.TaskStatusPending,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}
	}
	return nil
}

// GetBatch implements store.BatchStore.GetBatch.
func (s *MemoryStore) GetBatch(ctx context.Context, userID, batchID uuid.UUID) (*domain.Batch, error) {
	d, unlock, err := s.enter("GetBatch")
	defer unlock()
	if err != nil {
		return nil, err
	}
	b, ok := d.batches[batchID]
	if !ok || b.UserID != userID {
		return nil, store.ErrBatchNotFound
	}
	cp := *b
	return &cp, nil
}

// FindActiveBatch implements store.BatchStore.FindActiveBatch.
func (s *MemoryStore) FindActiveBatch(ctx context.Context, userID uuid.UUID) (*domain.Batch, error) {
	d, unlock, err := s.enter("FindActiveBatch")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var found *domain.Batch
	for _, b := range d.batches {
		if b.UserID != userID || !b.Status.IsActive() {
			continue
		}
		if found == nil || b.CreatedAt.After(found.CreatedAt) {
			found = b
		}
	}
	if found == nil {
		return nil, store.ErrBatchNotFound
	}
	cp := *found
	return &cp, nil
}

// LatestBatch implements store.BatchStore.LatestBatch.
func (s *MemoryStore) LatestBatch(ctx context.Context, userID uuid.UUID) (*domain.Batch, error) {
	d, unlock, err := s.enter("LatestBatch")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var found *domain.Batch
	for _, b := range d.batches {
		if b.UserID != userID {
			continue
		}
		if found == nil || b.UpdatedAt.After(found.UpdatedAt) ||
			(b.UpdatedAt.Equal(found.UpdatedAt) && b.CreatedAt.After(found.CreatedAt)) {
			found = b
		}
	}
	if found == nil {
		return nil, store.ErrBatchNotFound
	}
	cp := *found
	return &cp, nil
}

// StartBatch implements store.BatchStore.StartBatch.
func (s *MemoryStore) StartBatch(ctx context.Context, batchID uuid.UUID, now time.Time) (bool, error) {
	d, unlock, err := s.enter("StartBatch")
	defer unlock()
	if err != nil {
		return false, err
	}
	b, ok := d.batches[batchID]
	if !ok || b.Status != domain.BatchStatusQueued {
		return false, nil
	}
	b.Status = domain.BatchStatusRunning
	if b.StartedAt == nil {
		b.StartedAt = timePtr(now)
	}
	b.UpdatedAt = now
	return true, nil
}

// UpdateBatchStatus implements store.BatchStore.UpdateBatchStatus.
func (s *MemoryStore) UpdateBatchStatus(ctx context.Context, batchID uuid.UUID, u store.BatchStatusUpdate) (bool, error) {
	d, unlock, err := s.enter("UpdateBatchStatus")
	defer unlock()
	if err != nil {
		return false, err
	}
	b, ok := d.batches[batchID]
	if !ok || !b.Status.IsActive() {
		return false, nil
	}
	b.Status = u.Status
	b.Error = copyString(u.Error)
	b.StartedAt = timePtr(u.StartedAt)
	if u.CompletedAt != nil {
		b.CompletedAt = timePtr(*u.CompletedAt)
	} else {
		b.CompletedAt = nil
	}
	b.UpdatedAt = u.Now
	return true, nil
}

// CancelBatch implements store.BatchStore.CancelBatch.
func (s *MemoryStore) CancelBatch(ctx context.Context, batchID uuid.UUID, reason string, now time.Time) (bool, error) {
	d, unlock, err := s.enter("CancelBatch")
	defer unlock()
	if err != nil {
		return false, err
	}
	b, ok := d.batches[batchID]
	if !ok || !b.Status.IsActive() {
		return false, nil
	}
	b.Status = domain.BatchStatusCancelled
	b.Error = &reason
	b.CompletedAt = timePtr(now)
	b.UpdatedAt = now
	return true, nil
}

// NextRunnableBatch implements store.BatchStore.NextRunnableBatch.
func (s *MemoryStore) NextRunnableBatch(ctx context.Context, staleBefore time.Time) (*domain.Batch, error) {
	d, unlock, err := s.enter("NextRunnableBatch")
	defer unlock()
	if err != nil {
		return nil, err
	}

	var candidates []*domain.Batch
	for _, b := range d.batches {
		if !b.Status.IsActive() {
			continue
		}
		open, runnable := 0, false
		for _, t := range d.tasks {
			if t.BatchID != b.ID {
				continue
			}
			switch {
			case t.Status == domain.TaskStatusPending:
				open++
				runnable = true
			case t.Status == domain.TaskStatusRunning:
				open++
				if isStale(t, staleBefore) {
					runnable = true
				}
			}
		}
		if runnable || open == 0 {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return nil, store.ErrBatchNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].UpdatedAt.Equal(candidates[j].UpdatedAt) {
			return candidates[i].UpdatedAt.Before(candidates[j].UpdatedAt)
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})
	cp := *candidates[0]
	return &cp, nil
}

// ReclaimStaleTasks implements store.BatchStore.ReclaimStaleTasks.
func (s *MemoryStore) ReclaimStaleTasks(ctx context.Context, opts store.ReclaimOptions) (store.ReclaimResult, error) {
	d, unlock, err := s.enter("ReclaimStaleTasks")
	defer unlock()
	var res store.ReclaimResult
	if err != nil {
		return res, err
	}
	for _, t := range d.tasks {
		if opts.BatchID != nil && t.BatchID != *opts.BatchID {
			continue
		}
		if t.Status != domain.TaskStatusRunning || !isStale(t, opts.StaleBefore) {
			continue
		}
		if opts.MaxAttempts > 0 && t.Attempt >= opts.MaxAttempts {
			msg := domain.StaleAttemptsExhausted
			t.Status = domain.TaskStatusFailed
			t.Error = &msg
			t.CompletedAt = timePtr(opts.Now)
			t.UpdatedAt = opts.Now
			res.Exhausted++
			continue
		}
		t.Status = domain.TaskStatusPending
		t.StartedAt = nil
		t.CompletedAt = nil
		t.Attempt++
		t.UpdatedAt = opts.Now
		res.Reset++
	}
	return res, nil
}

// NextPendingTask implements store.BatchStore.NextPendingTask.
func (s *MemoryStore) NextPendingTask(ctx context.Context, batchID uuid.UUID) (*store.ClaimCandidate, error) {
	d, unlock, err := s.enter("NextPendingTask")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var pending []*domain.Task
	for _, t := range d.tasks {
		if t.BatchID == batchID && t.Status == domain.TaskStatusPending {
			if _, ok := d.jobs[t.JobID]; ok {
				pending = append(pending, t)
			}
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}
	sortTasks(pending)
	t := pending[0]
	job := d.jobs[t.JobID]
	return &store.ClaimCandidate{
		TaskID:   t.ID,
		JobID:    t.JobID,
		Attempt:  t.Attempt,
		JobTitle: job.Title,
		Company:  copyString(job.Company),
		JobURL:   job.JobURL,
	}, nil
}

// ClaimTask implements store.BatchStore.ClaimTask.
func (s *MemoryStore) ClaimTask(ctx context.Context, taskID uuid.UUID, now time.Time) (bool, error) {
	d, unlock, err := s.enter("ClaimTask")
	defer unlock()
	if err != nil {
		return false, err
	}
	if d.lostClaims > 0 {
		d.lostClaims--
		return false, nil
	}
	t, ok := d.tasks[taskID]
	if !ok || t.Status != domain.TaskStatusPending {
		return false, nil
	}
	t.Status = domain.TaskStatusRunning
	t.StartedAt = timePtr(now)
	t.CompletedAt = nil
	t.Error = nil
	t.UpdatedAt = now
	return true, nil
}

// GetTask implements store.BatchStore.GetTask.
func (s *MemoryStore) GetTask(ctx context.Context, userID, batchID, taskID uuid.UUID) (*domain.Task, error) {
	d, unlock, err := s.enter("GetTask")
	defer unlock()
	if err != nil {
		return nil, err
	}
	t, ok := d.tasks[taskID]
	if !ok || t.BatchID != batchID || t.UserID != userID {
		return nil, store.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

// CompleteTask implements store.BatchStore.CompleteTask.
func (s *MemoryStore) CompleteTask(ctx context.Context, c store.TaskCompletion) (bool, error) {
	d, unlock, err := s.enter("CompleteTask")
	defer unlock()
	if err != nil {
		return false, err
	}
	t, ok := d.tasks[c.TaskID]
	if !ok || t.Status != domain.TaskStatusRunning {
		return false, nil
	}
	if c.Attempt != nil && t.Attempt != *c.Attempt {
		return false, nil
	}
	t.Status = c.Status
	t.Error = copyString(c.Error)
	t.CompletedAt = timePtr(c.CompletedAt)
	t.UpdatedAt = c.CompletedAt
	return true, nil
}

// SkipOpenTasks implements store.BatchStore.SkipOpenTasks.
func (s *MemoryStore) SkipOpenTasks(ctx context.Context, batchID uuid.UUID, reason string, now time.Time) (int64, error) {
	d, unlock, err := s.enter("SkipOpenTasks")
	defer unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, t := range d.tasks {
		if t.BatchID != batchID || t.Status.IsTerminal() {
			continue
		}
		msg := reason
		t.Status = domain.TaskStatusSkipped
		t.Error = &msg
		t.CompletedAt = timePtr(now)
		t.UpdatedAt = now
		n++
	}
	return n, nil
}

// CountTasksByStatus implements store.BatchStore.CountTasksByStatus.
func (s *MemoryStore) CountTasksByStatus(ctx context.Context, userID, batchID uuid.UUID) (domain.Progress, error) {
	d, unlock, err := s.enter("CountTasksByStatus")
	defer unlock()
	var p domain.Progress
	if err != nil {
		return p, err
	}
	for _, t := range d.tasks {
		if t.BatchID == batchID && t.UserID == userID {
			p.Add(t.Status, 1)
		}
	}
	return p, nil
}

// LatestFailedTaskError implements store.BatchStore.LatestFailedTaskError.
func (s *MemoryStore) LatestFailedTaskError(ctx context.Context, batchID uuid.UUID) (*string, error) {
	d, unlock, err := s.enter("LatestFailedTaskError")
	defer unlock()
	if err != nil {
		return nil, err
	}
	failed := filterTasks(d, batchID, domain.TaskStatusFailed)
	if len(failed) == 0 {
		return nil, nil
	}
	sortByUpdatedDesc(failed)
	return copyString(failed[0].Error), nil
}

// FailedJobIDs implements store.BatchStore.FailedJobIDs.
func (s *MemoryStore) FailedJobIDs(ctx context.Context, userID, batchID uuid.UUID, limit int) ([]uuid.UUID, error) {
	d, unlock, err := s.enter("FailedJobIDs")
	defer unlock()
	if err != nil {
		return nil, err
	}
	failed := filterTasks(d, batchID, domain.TaskStatusFailed)
	sortByUpdatedDesc(failed)

	var ids []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, t := range failed {
		if t.UserID != userID || seen[t.JobID] {
			continue
		}
		seen[t.JobID] = true
		ids = append(ids, t.JobID)
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

// ListTasks implements store.BatchStore.ListTasks.
func (s *MemoryStore) ListTasks(
	ctx context.Context,
	userID, batchID uuid.UUID,
	status domain.TaskStatus,
	limit int,
) ([]domain.TaskView, error) {
	d, unlock, err := s.enter("ListTasks")
	defer unlock()
	if err != nil {
		return nil, err
	}
	tasks := filterTasks(d, batchID, status)
	if status == domain.TaskStatusFailed {
		sortByUpdatedDesc(tasks)
	} else {
		sort.SliceStable(tasks, func(i, j int) bool {
			a, b := tasks[i].CompletedAt, tasks[j].CompletedAt
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return a.After(*b)
			}
		})
	}

	views := []domain.TaskView{}
	for _, t := range tasks {
		job, ok := d.jobs[t.JobID]
		if t.UserID != userID || !ok {
			continue
		}
		views = append(views, domain.TaskView{
			Task:     *t,
			JobTitle: job.Title,
			Company:  copyString(job.Company),
			JobURL:   job.JobURL,
		})
		if len(views) == limit {
			break
		}
	}
	return views, nil
}

// ListEligibleJobs implements store.JobStore.ListEligibleJobs.
func (s *MemoryStore) ListEligibleJobs(ctx context.Context, q store.JobQuery) ([]*domain.Job, error) {
	d, unlock, err := s.enter("ListEligibleJobs")
	defer unlock()
	if err != nil {
		return nil, err
	}
	wanted := make(map[uuid.UUID]bool, len(q.JobIDs))
	for _, id := range q.JobIDs {
		wanted[id] = true
	}

	var jobs []*domain.Job
	for _, j := range d.jobs {
		if j.UserID != q.UserID || j.Status != domain.JobStatusNew {
			continue
		}
		if len(wanted) > 0 && !wanted[j.ID] {
			continue
		}
		cp := *j
		jobs = append(jobs, &cp)
	}
	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].UpdatedAt.Equal(jobs[k].UpdatedAt) {
			return jobs[i].UpdatedAt.After(jobs[k].UpdatedAt)
		}
		return jobs[i].ID.String() < jobs[k].ID.String()
	})
	if len(wanted) == 0 && q.Limit > 0 && len(jobs) > q.Limit {
		jobs = jobs[:q.Limit]
	}
	return jobs, nil
}

// GetJob implements store.JobStore.GetJob.
func (s *MemoryStore) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*domain.Job, error) {
	d, unlock, err := s.enter("GetJob")
	defer unlock()
	if err != nil {
		return nil, err
	}
	j, ok := d.jobs[jobID]
	if !ok || j.UserID != userID {
		return nil, store.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// UpsertArtifacts implements store.ApplicationStore.UpsertArtifacts.
func (s *MemoryStore) UpsertArtifacts(ctx context.Context, app *domain.Application) error {
	d, unlock, err := s.enter("UpsertArtifacts")
	defer unlock()
	if err != nil {
		return err
	}
	existing, ok := d.apps[app.JobID]
	if !ok || existing.UserID != app.UserID {
		cp := *app
		if cp.ID == uuid.Nil {
			cp.ID = uuid.New()
		}
		d.apps[app.JobID] = &cp
		return nil
	}
	if app.ResumePDFURL != nil {
		existing.ResumePDFURL = copyString(app.ResumePDFURL)
	}
	if app.CoverPDFURL != nil {
		existing.CoverPDFURL = copyString(app.CoverPDFURL)
	}
	existing.UpdatedAt = app.UpdatedAt
	return nil
}

// ListByJobIDs implements store.ApplicationStore.ListByJobIDs.
func (s *MemoryStore) ListByJobIDs(ctx context.Context, userID uuid.UUID, jobIDs []uuid.UUID) ([]*domain.Application, error) {
	d, unlock, err := s.enter("ListByJobIDs")
	defer unlock()
	if err != nil {
		return nil, err
	}
	var apps []*domain.Application
	for _, id := range jobIDs {
		if a, ok := d.apps[id]; ok && a.UserID == userID {
			cp := *a
			apps = append(apps, &cp)
		}
	}
	return apps, nil
}

func isStale(t *domain.Task, staleBefore time.Time) bool {
	return t.CompletedAt == nil && t.StartedAt != nil && t.StartedAt.Before(staleBefore)
}

func filterTasks(d *memoryData, batchID uuid.UUID, status domain.TaskStatus) []*domain.Task {
	var out []*domain.Task
	for _, t := range d.tasks {
		if t.BatchID == batchID && t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

func sortTasks(tasks []*domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID.String() < tasks[j].ID.String()
	})
}

func sortByUpdatedDesc(tasks []*domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].UpdatedAt.Equal(tasks[j].UpdatedAt) {
			return tasks[i].UpdatedAt.After(tasks[j].UpdatedAt)
		}
		return tasks[i].ID.String() > tasks[j].ID.String()
	})
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
