package jobqueue

import (
	"context"
	"errors"
	"time"

	t "miniforge/internal/types"
)

var (
	ErrNotFound = errors.New("jobqueue: job not found")
)

// ClaimResult reports the outcome of a claim attempt. A lost race is not an
// error; the loser just observes ClaimAlreadyClaimed.
type ClaimResult string

const (
	Claimed             ClaimResult = "claimed"
	ClaimNotFound       ClaimResult = "not-found"
	ClaimAlreadyClaimed ClaimResult = "already-claimed"
)

// JobSummary is the monitoring view of a job.
type JobSummary struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Status    t.JobStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Store is the durable record of generation jobs. The pending->processing
// transition in Claim is the system's only concurrency control: it must be
// atomic, and exactly one of any set of racing claimers wins.
type Store interface {
	Create(ctx context.Context, job t.GenerationJob) error
	Get(ctx context.Context, id string) (t.GenerationJob, error)

	// Claim moves a job from pending to processing. With an empty id it
	// claims the oldest pending job (FIFO by creation time).
	Claim(ctx context.Context, id string) (t.GenerationJob, ClaimResult, error)

	Complete(ctx context.Context, id, result string) error
	Fail(ctx context.Context, id, errMsg string) error

	// ReportFailure records a failure discovered after the job already
	// reached completed: status is overwritten back to failed and the error
	// detail merged. Completion is not permanent until the deployment is
	// confirmed live.
	ReportFailure(ctx context.Context, id, errMsg string) error

	ListPending(ctx context.Context) ([]JobSummary, error)

	// Sweep deletes jobs whose ExpiresAt has passed, returning the count.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
