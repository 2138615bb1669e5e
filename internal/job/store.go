package job

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a job cannot be found by ID.
var ErrNotFound = errors.New("job not found")

// Store defines the interface for job record persistence.
// It acts as a port in the hexagonal architecture pattern; the pipeline
// treats persistence failures as a visibility problem, never as a reason
// to abort a job.
type Store interface {
	// Create persists a new job record. The job ID must not already exist.
	Create(ctx context.Context, j *Job) error

	// Get retrieves a job by its unique identifier.
	// Returns ErrNotFound if the job does not exist.
	Get(ctx context.Context, jobID string) (*Job, error)

	// Update applies a partial update to the named job. Fields left nil in
	// u are untouched. Updating a terminal or missing record is a no-op;
	// the missing case returns ErrNotFound so the caller can log it.
	Update(ctx context.Context, jobID string, u Update) error

	// List returns the total number of jobs and one page of them ordered
	// by creation time, most recent first. Pages are 1-based.
	List(ctx context.Context, page, perPage int) (int64, []*Job, error)
}
