package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chunkvault/chunkvault/internal/common"
	"github.com/chunkvault/chunkvault/internal/dbx"
	"github.com/chunkvault/chunkvault/internal/models"
)

// PostgresRepository implements the job queue over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const jobColumns = `id, owner_id, master_file_name, local_path, status, error_message, retry_count, created_at, started_at, finished_at, heartbeat_at`

func scanJob(row interface{ Scan(dest ...any) error }) (*models.Job, error) {
	var (
		job                                models.Job
		startedAt, finishedAt, heartbeatAt sql.NullTime
	)
	err := row.Scan(&job.ID, &job.OwnerID, &job.MasterFileName, &job.LocalPath,
		&job.Status, &job.ErrorMessage, &job.RetryCount, &job.CreatedAt,
		&startedAt, &finishedAt, &heartbeatAt)
	if err != nil {
		return nil, err
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}
	if heartbeatAt.Valid {
		job.HeartbeatAt = &heartbeatAt.Time
	}
	return &job, nil
}

func (r *PostgresRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, owner_id, master_file_name, local_path, status, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.OwnerID, job.MasterFileName, job.LocalPath, models.JobStatusPending)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select job: %w", err)
	}
	return job, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Job, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select jobs: %w", err)
	}
	defer rows.Close()

	var result []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.Job, error) {
	return r.list(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC`)
}

func (r *PostgresRepository) ListPendingAndFailed(ctx context.Context) ([]*models.Job, error) {
	return r.list(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status IN ($1, $2) ORDER BY created_at DESC`,
		models.JobStatusPending, models.JobStatusFailed)
}

// ClaimNext claims the oldest PENDING job with a single conditional update.
// FOR UPDATE SKIP LOCKED guarantees that concurrently polling workers never
// observe the same candidate row.
func (r *PostgresRepository) ClaimNext(ctx context.Context) (*models.Job, error) {
	query := `
		UPDATE jobs
		SET status = $1, started_at = now(), heartbeat_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = $2
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + jobColumns
	job, err := scanJob(r.db.QueryRowContext(ctx, query,
		models.JobStatusProcessing, models.JobStatusPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, nil
}

// guardedExec runs a conditional update and converts "zero rows affected"
// into common.ErrNotEligible.
func (r *PostgresRepository) guardedExec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotEligible
	}
	return nil
}

func (r *PostgresRepository) MarkComplete(ctx context.Context, id string) error {
	query := `UPDATE jobs SET status = $1, finished_at = now() WHERE id = $2 AND status = $3`
	return r.guardedExec(ctx, query, models.JobStatusComplete, id, models.JobStatusProcessing)
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	query := `UPDATE jobs SET status = $1, error_message = $2, finished_at = now() WHERE id = $3 AND status = $4`
	return r.guardedExec(ctx, query, models.JobStatusFailed, errorMessage, id, models.JobStatusProcessing)
}

func (r *PostgresRepository) Heartbeat(ctx context.Context, id string) error {
	query := `UPDATE jobs SET heartbeat_at = now() WHERE id = $1 AND status = $2`
	return r.guardedExec(ctx, query, id, models.JobStatusProcessing)
}

func (r *PostgresRepository) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE jobs
		SET status = $1, retry_count = retry_count + 1, error_message = '', started_at = NULL, heartbeat_at = NULL
		WHERE status = $2 AND heartbeat_at < $3
	`
	res, err := r.db.ExecContext(ctx, query, models.JobStatusPending, models.JobStatusProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

// Retry resets a FAILED job back to PENDING, incrementing the retry count
// and clearing the error message and timestamps.
func (r *PostgresRepository) Retry(ctx context.Context, id string) error {
	query := `
		UPDATE jobs
		SET status = $1, error_message = '', retry_count = retry_count + 1,
		    started_at = NULL, finished_at = NULL, heartbeat_at = NULL
		WHERE id = $2 AND status = $3
	`
	return r.guardedExec(ctx, query, models.JobStatusPending, id, models.JobStatusFailed)
}

// Cancel marks a PENDING or PROCESSING job FAILED. For an in-flight job the
// cancellation is cooperative only: the worker is not interrupted, the job
// just cannot be re-claimed afterwards.
func (r *PostgresRepository) Cancel(ctx context.Context, id string) error {
	query := `
		UPDATE jobs
		SET status = $1, error_message = 'Cancelled', finished_at = now()
		WHERE id = $2 AND status IN ($3, $4)
	`
	return r.guardedExec(ctx, query, models.JobStatusFailed, id,
		models.JobStatusPending, models.JobStatusProcessing)
}

// Purge removes a terminal job from history.
func (r *PostgresRepository) Purge(ctx context.Context, id string) error {
	query := `DELETE FROM jobs WHERE id = $1 AND status IN ($2, $3, $4)`
	return r.guardedExec(ctx, query, id,
		models.JobStatusComplete, models.JobStatusFailed, models.JobStatusFileDeleted)
}

func (r *PostgresRepository) MarkFileDeletedByName(ctx context.Context, masterFileName string) error {
	query := `
		UPDATE jobs
		SET status = $1
		WHERE id = (
			SELECT id FROM jobs
			WHERE master_file_name = $2 AND status IN ($3, $4)
			ORDER BY created_at DESC
			LIMIT 1
		)
	`
	return r.guardedExec(ctx, query, models.JobStatusFileDeleted, masterFileName,
		models.JobStatusComplete, models.JobStatusFailed)
}

func (r *PostgresRepository) NotifyNewJob(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `SELECT pg_notify($1, '')`, NotifyChannel)
	if err != nil {
		return fmt.Errorf("notify error: %w", err)
	}
	return nil
}
