// Package worker implements the distribution worker: it claims queued
// ingestion jobs, splits the source file into fixed windows, encrypts each
// window independently, scatters the ciphertexts round-robin across the
// eligible account pool and catalogs every placement in the registry.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/chunkvault/chunkvault/internal/chunker"
	"github.com/chunkvault/chunkvault/internal/common"
	"github.com/chunkvault/chunkvault/internal/config"
	"github.com/chunkvault/chunkvault/internal/cryptox"
	"github.com/chunkvault/chunkvault/internal/logging"
	"github.com/chunkvault/chunkvault/internal/models"
	"github.com/chunkvault/chunkvault/internal/repositories/accounts"
	"github.com/chunkvault/chunkvault/internal/repositories/chunks"
	"github.com/chunkvault/chunkvault/internal/repositories/jobs"
	"github.com/chunkvault/chunkvault/internal/storage"
)

// Waiter blocks until a new-job notification arrives or max elapses.
// It is the quiet-queue suspension point of the claim loop.
type Waiter interface {
	Wait(ctx context.Context, max time.Duration)
}

// SleepWaiter is the plain fixed-interval fallback.
type SleepWaiter struct{}

func (SleepWaiter) Wait(ctx context.Context, max time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(max):
	}
}

type Worker struct {
	cfg      *config.Config
	jobs     jobs.Repository
	chunks   chunks.Repository
	accounts accounts.Repository
	backend  storage.Backend
	waiter   Waiter
	log      logging.Logger
}

func New(cfg *config.Config, jobRepo jobs.Repository, chunkRepo chunks.Repository,
	accountRepo accounts.Repository, backend storage.Backend, waiter Waiter, log logging.Logger) *Worker {
	return &Worker{
		cfg:      cfg,
		jobs:     jobRepo,
		chunks:   chunkRepo,
		accounts: accountRepo,
		backend:  backend,
		waiter:   waiter,
		log:      log,
	}
}

// Run executes the claim loop until ctx is cancelled. A failing job never
// stops the loop: every per-job error is converted into a FAILED status
// with a recorded message.
func (w *Worker) Run(ctx context.Context) error {
	poll := w.cfg.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}

	w.log.Info(ctx, "worker started", "chunk_size", w.cfg.ChunkSize, "poll_interval", poll.String())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := w.jobs.ClaimNext(ctx)
		if errors.Is(err, common.ErrNotFound) {
			w.waiter.Wait(ctx, poll)
			continue
		}
		if err != nil {
			w.log.Error(ctx, "claim failed", "error", err.Error())
			w.waiter.Wait(ctx, poll)
			continue
		}

		w.ProcessJob(ctx, job)
	}
}

// ProcessJob runs the distribution pipeline for one claimed job and
// finalizes its status. A panic inside the pipeline marks the job FAILED
// instead of killing the claim loop.
func (w *Worker) ProcessJob(ctx context.Context, job *models.Job) {
	log := w.log.With("job_id", job.ID, "master_file", job.MasterFileName)
	log.Info(ctx, "job claimed", "retry_count", job.RetryCount)

	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "job panicked", "panic", fmt.Sprint(r))
			if ferr := w.jobs.MarkFailed(ctx, job.ID, fmt.Sprintf("panic: %v", r)); ferr != nil {
				log.Warn(ctx, "could not finalize panicked job", "error", ferr.Error())
			}
		}
	}()

	stopHeartbeat := w.startHeartbeat(ctx, job.ID)
	defer stopHeartbeat()

	if err := w.distribute(ctx, job); err != nil {
		log.Error(ctx, "job failed", "error", err.Error())
		if ferr := w.jobs.MarkFailed(ctx, job.ID, err.Error()); ferr != nil {
			log.Warn(ctx, "could not finalize failed job", "error", ferr.Error())
		}
		return
	}

	if err := w.jobs.MarkComplete(ctx, job.ID); err != nil {
		log.Warn(ctx, "could not finalize completed job", "error", err.Error())
		return
	}
	log.Info(ctx, "job complete")

	w.refreshQuotas(ctx)
}

// distribute streams the source file and uploads one encrypted chunk at a
// time. Chunk i (1-indexed) goes to accounts[(i-1) mod N]. A failure on any
// chunk aborts the job; records already registered stay in the registry.
func (w *Worker) distribute(ctx context.Context, job *models.Job) error {
	pool, err := w.accounts.ListEligible(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	if len(pool) == 0 {
		return fmt.Errorf("%w: no eligible storage accounts", common.ErrConfiguration)
	}

	source, err := os.Open(job.LocalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", common.ErrSourceNotFound, job.LocalPath)
		}
		return fmt.Errorf("open source: %w", err)
	}
	defer source.Close()

	splitter, err := chunker.NewSplitter(source, w.cfg.ChunkSize)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}

	masterUUID := uuid.New().String()
	sessions := make(map[string]storage.Session)

	for {
		chunk, err := splitter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("chunk source: %w", err)
		}

		holder := pool[(chunk.Sequence-1)%len(pool)]

		session, ok := sessions[holder.ID]
		if !ok {
			session, err = w.backend.Authenticate(ctx, holder.CredentialRef)
			if err != nil {
				return fmt.Errorf("account %s: %w", holder.ID, err)
			}
			sessions[holder.ID] = session
		}

		ciphertext, key, nonce, err := cryptox.EncryptChunk(chunk.Data)
		if err != nil {
			return fmt.Errorf("encrypt chunk %d: %w", chunk.Sequence, err)
		}

		objectName := fmt.Sprintf("%s_chunk%d", job.MasterFileName, chunk.Sequence)
		objectID, err := w.upload(ctx, session, objectName, ciphertext)
		if err != nil {
			return fmt.Errorf("upload chunk %d to %s: %w", chunk.Sequence, holder.ID, err)
		}

		record := &models.ChunkRecord{
			ID:              uuid.New().String(),
			MasterFileUUID:  masterUUID,
			MasterFileName:  job.MasterFileName,
			SequenceNumber:  chunk.Sequence,
			HolderAccountID: holder.ID,
			BackendObjectID: objectID,
			SizeBytes:       int64(len(chunk.Data)),
			EncryptionKey:   key,
			EncryptionIV:    nonce,
		}
		if err := w.chunks.Register(ctx, record); err != nil {
			return fmt.Errorf("register chunk %d: %w", chunk.Sequence, err)
		}
	}

	return nil
}

// upload puts one ciphertext with bounded exponential backoff on transient
// backend IO errors. Auth and quota failures are not retried.
func (w *Worker) upload(ctx context.Context, session storage.Session, name string, data []byte) (string, error) {
	var objectID string

	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		objectID, err = session.Put(ctx, name, data)
		if err != nil && errors.Is(err, common.ErrBackendIO) {
			return retry.RetryableError(err)
		}
		return err
	})

	return objectID, err
}

// startHeartbeat renews the processing lease until the returned stop
// function is called.
func (w *Worker) startHeartbeat(ctx context.Context, jobID string) func() {
	interval := w.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.jobs.Heartbeat(ctx, jobID); err != nil {
					w.log.Warn(ctx, "heartbeat failed", "job_id", jobID, "error", err.Error())
				}
			}
		}
	}()
	return func() { close(done) }
}

// refreshQuotas records a fresh usage snapshot for every eligible account.
// Failures are logged, never fatal.
func (w *Worker) refreshQuotas(ctx context.Context) {
	pool, err := w.accounts.ListEligible(ctx)
	if err != nil {
		w.log.Warn(ctx, "quota refresh: list accounts", "error", err.Error())
		return
	}
	for _, account := range pool {
		session, err := w.backend.Authenticate(ctx, account.CredentialRef)
		if err != nil {
			w.log.Warn(ctx, "quota refresh: authenticate", "account_id", account.ID, "error", err.Error())
			continue
		}
		quota, err := session.Quota(ctx)
		if err != nil {
			w.log.Warn(ctx, "quota refresh: snapshot", "account_id", account.ID, "error", err.Error())
			continue
		}
		if err := w.accounts.UpdateQuota(ctx, account.ID, quota.Used, quota.Limit); err != nil {
			w.log.Warn(ctx, "quota refresh: persist", "account_id", account.ID, "error", err.Error())
		}
	}
}

// RunReaper periodically requeues PROCESSING jobs whose heartbeat lease
// expired, so a crashed worker cannot leave a job stuck forever. Requeued
// jobs are announced on the notify channel.
func (w *Worker) RunReaper(ctx context.Context) {
	interval := w.cfg.LeaseTimeout / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-w.cfg.LeaseTimeout)
			n, err := w.jobs.RequeueStale(ctx, cutoff)
			if err != nil {
				w.log.Error(ctx, "reaper sweep failed", "error", err.Error())
				continue
			}
			if n > 0 {
				w.log.Warn(ctx, "requeued stale jobs", "count", n)
				if err := w.jobs.NotifyNewJob(ctx); err != nil {
					w.log.Warn(ctx, "reaper notify failed", "error", err.Error())
				}
			}
		}
	}
}
