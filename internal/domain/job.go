package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents where a tracked job posting is in the application funnel.
type JobStatus string

// Possible job status values. Only NEW jobs are eligible for a batch.
const (
	JobStatusNew      JobStatus = "NEW"
	JobStatusApplied  JobStatus = "APPLIED"
	JobStatusRejected JobStatus = "REJECTED"
)

// Job is a job posting tracked by a user.
type Job struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"-"`
	Title       string    `json:"title"`
	Company     *string   `json:"company"`
	JobURL      string    `json:"jobUrl"`
	Status      JobStatus `json:"status"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Application records the artifacts generated for a job.
type Application struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"-"`
	JobID        uuid.UUID `json:"jobId"`
	ResumePDFURL *string   `json:"resumePdfUrl"`
	CoverPDFURL  *string   `json:"coverPdfUrl"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
