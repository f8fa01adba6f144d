// Package jobs implements the durable ingestion job queue.
package jobs

import (
	"context"
	"time"

	"github.com/chunkvault/chunkvault/internal/models"
)

// NotifyChannel is the Postgres channel used to wake idle workers when a
// job is enqueued or requeued.
const NotifyChannel = "chunkvault_jobs"

// Repository is the durable queue of ingestion jobs. All state transitions
// are guarded by the expected pre-state and report common.ErrNotEligible
// when no row matched, which makes retries and cancels idempotent no-ops.
type Repository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	ListAll(ctx context.Context) ([]*models.Job, error)
	ListPendingAndFailed(ctx context.Context) ([]*models.Job, error)

	// ClaimNext atomically claims the oldest PENDING job, transitions it
	// to PROCESSING and returns it. It returns common.ErrNotFound when
	// the queue is empty. Concurrent callers never claim the same job.
	ClaimNext(ctx context.Context) (*models.Job, error)

	// MarkComplete and MarkFailed finalize a PROCESSING job.
	MarkComplete(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errorMessage string) error

	// Heartbeat renews the processing lease of a claimed job.
	Heartbeat(ctx context.Context, id string) error

	// RequeueStale resets PROCESSING jobs whose heartbeat is older than
	// cutoff back to PENDING and returns how many were requeued.
	RequeueStale(ctx context.Context, cutoff time.Time) (int64, error)

	// Admin job control.
	Retry(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) error

	// MarkFileDeletedByName marks the most recent terminal job for the
	// given master file name as FILE_DELETED. Used inside the delete
	// cascade transaction.
	MarkFileDeletedByName(ctx context.Context, masterFileName string) error

	// NotifyNewJob wakes idle workers listening on NotifyChannel.
	NotifyNewJob(ctx context.Context) error
}
