package batch_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/events"
	"github.com/phrazzld/jobtrail-api/internal/mocks"
	"github.com/phrazzld/jobtrail-api/internal/platform/logger/logtest"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.BatchEvent
	types  []string
}

func (r *recordedEvents) HandleEvent(ctx context.Context, e *events.Event) error {
	p, err := e.BatchPayload()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
	r.types = append(r.types, e.Type)
	return nil
}

func (r *recordedEvents) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

type fixture struct {
	store   *mocks.MemoryStore
	builder *mocks.MockArtifactBuilder
	clock   *testClock
	events  *recordedEvents
	runner  *batch.Runner
	userID  uuid.UUID
}

func newFixture(t *testing.T, cfg batch.Config) *fixture {
	t.Helper()
	log, _ := logtest.New(t)

	f := &fixture{
		store:   mocks.NewMemoryStore(),
		builder: mocks.NewMockArtifactBuilderWithURLs("https://pdf/resume.pdf", "https://pdf/cover.pdf"),
		clock:   newTestClock(),
		events:  &recordedEvents{},
		userID:  uuid.New(),
	}
	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(f.events)

	f.runner = batch.NewRunner(f.store, f.store, f.store, f.builder, cfg,
		batch.WithClock(f.clock.Now),
		batch.WithEmitter(emitter),
		batch.WithLogger(log))
	return f
}

// addJobs stores n NEW jobs for userID; the first job is the newest.
func (f *fixture) addJobs(userID uuid.UUID, n int) []*domain.Job {
	base := f.clock.Now()
	jobs := make([]*domain.Job, n)
	for i := 0; i < n; i++ {
		company := fmt.Sprintf("Company %d", i)
		jobs[i] = &domain.Job{
			ID:        uuid.New(),
			UserID:    userID,
			Title:     fmt.Sprintf("Engineer %d", i),
			Company:   &company,
			JobURL:    fmt.Sprintf("https://jobs.example.com/%d", i),
			Status:    domain.JobStatusNew,
			CreatedAt: base,
			UpdatedAt: base.Add(-time.Duration(i) * time.Minute),
		}
		f.store.AddJob(jobs[i])
	}
	return jobs
}

// newBatch creates a batch over n fresh jobs of the fixture user.
func (f *fixture) newBatch(t *testing.T, n int) (*domain.Batch, []*domain.Job) {
	t.Helper()
	jobs := f.addJobs(f.userID, n)
	b, err := f.runner.Create(context.Background(), f.userID, batch.CreateOptions{})
	require.NoError(t, err)
	return b, jobs
}

// claim claims the next task and fails the test unless one was claimed.
func (f *fixture) claim(t *testing.T, batchID uuid.UUID) *batch.ClaimedTask {
	t.Helper()
	res, err := f.runner.ClaimNext(context.Background(), f.userID, batchID)
	require.NoError(t, err)
	require.Equal(t, batch.ClaimClaimed, res.Kind)
	return res.Task
}

// complete completes a claimed task and fails the test on error.
func (f *fixture) complete(t *testing.T, batchID, taskID uuid.UUID, status domain.TaskStatus) *batch.CompleteResult {
	t.Helper()
	res, err := f.runner.CompleteTask(context.Background(), f.userID, batchID, batch.Completion{
		TaskID: taskID, Status: status,
	})
	require.NoError(t, err)
	return res
}
