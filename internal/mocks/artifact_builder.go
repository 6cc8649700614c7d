package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/domain"
)

// MockArtifactBuilder implements batch.ArtifactBuilder for testing
type MockArtifactBuilder struct {
	// BuildFn allows test cases to mock the Build behavior
	BuildFn func(ctx context.Context, userID uuid.UUID, job *domain.Job) (*batch.Artifacts, error)

	// Default response values
	Artifacts *batch.Artifacts
	Err       error

	// Call tracking for verification
	BuildCalls struct {
		// mu protects the call tracking state for concurrent workers
		mu sync.Mutex

		Count  int
		JobIDs []uuid.UUID
	}
}

var _ batch.ArtifactBuilder = (*MockArtifactBuilder)(nil)

// Build implements the batch.ArtifactBuilder interface
func (m *MockArtifactBuilder) Build(ctx context.Context, userID uuid.UUID, job *domain.Job) (*batch.Artifacts, error) {
	m.BuildCalls.mu.Lock()
	m.BuildCalls.Count++
	m.BuildCalls.JobIDs = append(m.BuildCalls.JobIDs, job.ID)
	m.BuildCalls.mu.Unlock()

	if m.BuildFn != nil {
		return m.BuildFn(ctx, userID, job)
	}
	return m.Artifacts, m.Err
}

// BuildCount returns how many times Build was called.
func (m *MockArtifactBuilder) BuildCount() int {
	m.BuildCalls.mu.Lock()
	defer m.BuildCalls.mu.Unlock()
	return m.BuildCalls.Count
}

// NewMockArtifactBuilderWithURLs creates a builder that always returns the given URLs.
func NewMockArtifactBuilderWithURLs(resumeURL, coverURL string) *MockArtifactBuilder {
	return &MockArtifactBuilder{
		Artifacts: &batch.Artifacts{ResumePDFURL: &resumeURL, CoverPDFURL: &coverURL},
	}
}

// NewMockArtifactBuilderWithError creates a builder that always fails with err.
func NewMockArtifactBuilderWithError(err error) *MockArtifactBuilder {
	return &MockArtifactBuilder{Err: err}
}
