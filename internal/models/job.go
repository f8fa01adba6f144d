// Package models defines the data model persisted in the registry database.
package models

import "time"

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

const (
	JobStatusPending     JobStatus = "PENDING"
	JobStatusProcessing  JobStatus = "PROCESSING"
	JobStatusComplete    JobStatus = "COMPLETE"
	JobStatusFailed      JobStatus = "FAILED"
	JobStatusFileDeleted JobStatus = "FILE_DELETED"
)

// Terminal reports whether a job in this status can be purged.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusComplete, JobStatusFailed, JobStatusFileDeleted:
		return true
	}
	return false
}

// Job is one durable record in the ingestion queue. It is created on
// submission and mutated only by the worker (claim, finalize, heartbeat)
// and by admin job control (retry, cancel, purge).
type Job struct {
	ID             string
	OwnerID        string
	MasterFileName string
	LocalPath      string
	Status         JobStatus
	ErrorMessage   string
	RetryCount     int
	CreatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
	// HeartbeatAt is bumped by the owning worker while the job is
	// PROCESSING. Jobs with a stale heartbeat are requeued by the reaper.
	HeartbeatAt *time.Time
}
