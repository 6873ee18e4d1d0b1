// Package ledger is the authoritative record of each transcoding job's
// status. Claiming a job is a single atomic create-if-absent operation, so
// at most one worker can hold a given job at a time even when two
// notifications for the same video race each other.
package ledger

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a job record.
type Status string

const (
	// StatusProcessing indicates the job has been claimed and is in flight.
	StatusProcessing Status = "processing"
	// StatusProcessed indicates the job finished successfully.
	StatusProcessed Status = "processed"
	// StatusFailed indicates the job was attempted and reported a failure.
	StatusFailed Status = "failed"
)

// Static errors for ledger operations.
var (
	// ErrAlreadyClaimed is returned by Claim when the job is already in
	// flight or already processed.
	ErrAlreadyClaimed = errors.New("job already claimed")
	// ErrRecordNotFound is returned by Get when no record exists for the job.
	ErrRecordNotFound = errors.New("job record not found")
)

// Record is the persisted state of one job.
type Record struct {
	// ID is the job identity derived from the source object key.
	ID string
	// OwnerID identifies the user the video belongs to.
	OwnerID string
	// Status is the current lifecycle state.
	Status Status
	// OutputKey is the processed object key, set only on success.
	OutputKey string
	// Error holds the failure reason when Status is failed.
	Error string
	// CreatedAt is when the job was first claimed.
	CreatedAt time.Time
	// UpdatedAt is when the record last changed.
	UpdatedAt time.Time
}

// Ledger is the port for job-record persistence.
//
// Claim semantics: a job is claimable when no record exists, when its
// previous attempt failed, or when a processing claim has outlived its TTL
// (crashed worker). A processed job is never claimable again.
type Ledger interface {
	// Claim atomically creates a processing record for jobID.
	// Returns ErrAlreadyClaimed when the job is not claimable.
	Claim(ctx context.Context, jobID, ownerID string) error

	// Release drops a claim that produced no work, deleting the record.
	// Used when the source object turned out to be gone.
	Release(ctx context.Context, jobID string) error

	// MarkProcessed transitions the record to processed with its output key.
	// Safe to call multiple times with the same terminal fields.
	MarkProcessed(ctx context.Context, jobID, outputKey string) error

	// MarkFailed transitions the record to failed with a reason.
	MarkFailed(ctx context.Context, jobID, reason string) error

	// Get retrieves the record for jobID.
	// Returns ErrRecordNotFound if no record exists.
	Get(ctx context.Context, jobID string) (*Record, error)
}
