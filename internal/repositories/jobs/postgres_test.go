package jobs

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/chunkvault/chunkvault/internal/common"
	"github.com/chunkvault/chunkvault/internal/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func jobRows(t *testing.T, j *models.Job) *sqlmock.Rows {
	t.Helper()
	var started, finished, heartbeat any
	if j.StartedAt != nil {
		started = *j.StartedAt
	}
	if j.FinishedAt != nil {
		finished = *j.FinishedAt
	}
	if j.HeartbeatAt != nil {
		heartbeat = *j.HeartbeatAt
	}
	return sqlmock.NewRows([]string{
		"id", "owner_id", "master_file_name", "local_path", "status",
		"error_message", "retry_count", "created_at", "started_at", "finished_at", "heartbeat_at",
	}).AddRow(j.ID, j.OwnerID, j.MasterFileName, j.LocalPath, string(j.Status),
		j.ErrorMessage, j.RetryCount, j.CreatedAt, started, finished, heartbeat)
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+jobs\b`).
		WithArgs("j1", "owner", "report.pdf", "/tmp/report.pdf", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.Job{
		ID:             "j1",
		OwnerID:        "owner",
		MasterFileName: "report.pdf",
		LocalPath:      "/tmp/report.pdf",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestClaimNext_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	claimed := &models.Job{
		ID:             "j1",
		OwnerID:        "owner",
		MasterFileName: "report.pdf",
		LocalPath:      "/tmp/report.pdf",
		Status:         models.JobStatusProcessing,
		CreatedAt:      now,
		StartedAt:      &now,
		HeartbeatAt:    &now,
	}

	q := `(?s)^\s*UPDATE\s+jobs\b.*FOR\s+UPDATE\s+SKIP\s+LOCKED.*RETURNING\b`
	mock.ExpectQuery(q).
		WithArgs("PROCESSING", "PENDING").
		WillReturnRows(jobRows(t, claimed))

	job, err := repo.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.ID != "j1" || job.Status != models.JobStatusProcessing {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.StartedAt == nil || job.HeartbeatAt == nil {
		t.Fatal("expected started_at and heartbeat_at to be set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestClaimNext_EmptyQueue(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^\s*UPDATE\s+jobs\b`).
		WithArgs("PROCESSING", "PENDING").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ClaimNext(context.Background())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkComplete_Guarded(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*UPDATE\s+jobs\s+SET\s+status\b`).
		WithArgs("COMPLETE", "j1", "PROCESSING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkComplete(context.Background(), "j1")
	if !errors.Is(err, common.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestRetry_OnlyFromFailed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*UPDATE\s+jobs\b.*retry_count\s*=\s*retry_count\s*\+\s*1`).
		WithArgs("PENDING", "j1", "FAILED").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Retry(context.Background(), "j1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// same statement against a COMPLETE job affects zero rows
	mock.ExpectExec(`(?s)^\s*UPDATE\s+jobs\b`).
		WithArgs("PENDING", "j2", "FAILED").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Retry(context.Background(), "j2")
	if !errors.Is(err, common.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestCancel_SetsCancelledMessage(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*UPDATE\s+jobs\b.*error_message\s*=\s*'Cancelled'`).
		WithArgs("FAILED", "j1", "PENDING", "PROCESSING").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Cancel(context.Background(), "j1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPurge_TerminalOnly(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*DELETE\s+FROM\s+jobs\b`).
		WithArgs("j1", "COMPLETE", "FAILED", "FILE_DELETED").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Purge(context.Background(), "j1")
	if !errors.Is(err, common.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestRequeueStale(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := time.Now().Add(-2 * time.Minute)
	mock.ExpectExec(`(?s)^\s*UPDATE\s+jobs\b.*heartbeat_at\s*<`).
		WithArgs("PENDING", "PROCESSING", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RequeueStale(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 requeued, got %d", n)
	}
}

func TestMarkFileDeletedByName(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^\s*UPDATE\s+jobs\b.*ORDER\s+BY\s+created_at\s+DESC`).
		WithArgs("FILE_DELETED", "report.pdf", "COMPLETE", "FAILED").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkFileDeletedByName(context.Background(), "report.pdf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
