// Package services holds the application layer between the HTTP API and
// the repositories. Services validate requests, own transactions and wake
// workers when new jobs arrive.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/chunkvault/chunkvault/internal/common"
	"github.com/chunkvault/chunkvault/internal/logging"
	"github.com/chunkvault/chunkvault/internal/models"
	"github.com/chunkvault/chunkvault/internal/repositories/repomanager"
)

// SubmitRequest carries everything needed to enqueue one ingestion job.
type SubmitRequest struct {
	OwnerID        string `json:"owner_id"`
	MasterFileName string `json:"master_file_name"`
	LocalPath      string `json:"local_path"`
}

type JobService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewJobService(db *sql.DB, rm repomanager.RepositoryManager, log logging.Logger) *JobService {
	return &JobService{
		db:          db,
		repomanager: rm,
		log:         log,
	}
}

// Submit enqueues a new PENDING job and wakes idle workers. A notify
// failure does not fail the submission: the polling fallback will still
// pick the job up.
func (s *JobService) Submit(ctx context.Context, req *SubmitRequest) (*models.Job, error) {
	if req.MasterFileName == "" {
		return nil, fmt.Errorf("%w: master file name is required", common.ErrInvalidRequest)
	}
	if req.LocalPath == "" {
		return nil, fmt.Errorf("%w: local path is required", common.ErrInvalidRequest)
	}

	jobRepo := s.repomanager.Jobs(s.db)

	job := &models.Job{
		ID:             uuid.New().String(),
		OwnerID:        req.OwnerID,
		MasterFileName: req.MasterFileName,
		LocalPath:      req.LocalPath,
		Status:         models.JobStatusPending,
	}
	if err := jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := jobRepo.NotifyNewJob(ctx); err != nil {
		s.log.Warn(ctx, "job notify failed", "job_id", job.ID, "error", err.Error())
	}

	return job, nil
}

func (s *JobService) Get(ctx context.Context, id string) (*models.Job, error) {
	return s.repomanager.Jobs(s.db).GetByID(ctx, id)
}

func (s *JobService) ListAll(ctx context.Context) ([]*models.Job, error) {
	return s.repomanager.Jobs(s.db).ListAll(ctx)
}

// ListPending returns the jobs still owed work, PENDING and FAILED ones.
func (s *JobService) ListPending(ctx context.Context) ([]*models.Job, error) {
	return s.repomanager.Jobs(s.db).ListPendingAndFailed(ctx)
}

// Retry moves a FAILED job back to PENDING and wakes workers. It returns
// common.ErrNotEligible when the job is in any other state.
func (s *JobService) Retry(ctx context.Context, id string) error {
	jobRepo := s.repomanager.Jobs(s.db)
	if err := jobRepo.Retry(ctx, id); err != nil {
		return err
	}
	if err := jobRepo.NotifyNewJob(ctx); err != nil {
		s.log.Warn(ctx, "job notify failed", "job_id", id, "error", err.Error())
	}
	return nil
}

// Cancel marks a PENDING job FAILED before any worker claims it.
func (s *JobService) Cancel(ctx context.Context, id string) error {
	return s.repomanager.Jobs(s.db).Cancel(ctx, id)
}

// Purge removes a terminal job record.
func (s *JobService) Purge(ctx context.Context, id string) error {
	return s.repomanager.Jobs(s.db).Purge(ctx, id)
}
