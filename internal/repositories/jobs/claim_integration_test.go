package jobs_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/chunkvault/chunkvault/internal/common"
	"github.com/chunkvault/chunkvault/internal/models"
	"github.com/chunkvault/chunkvault/internal/repositories/jobs"
	"github.com/chunkvault/chunkvault/internal/repositories/repomanager"
)

const (
	pgPort     = "5432"
	pgUser     = "test"
	pgPassword = "test"
	pgDatabase = "testdb"
)

// startPostgres runs a throwaway PostgreSQL container and returns a migrated
// connection.
func startPostgres(t *testing.T, ctx context.Context) *sql.DB {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:latest",
		ExposedPorts: []string{pgPort + "/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgUser,
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       pgDatabase,
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections"),
			wait.ForExposedPort(),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, pgPort)
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable",
		pgUser, pgPassword, host, mappedPort.Port(), pgDatabase)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// the container may accept connections slightly after the ready log
	deadline := time.Now().Add(30 * time.Second)
	for {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("database never became reachable: %v", err)
		}
		time.Sleep(250 * time.Millisecond)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	require.NoError(t, rm.RunMigrations(ctx, db))

	return db
}

func TestClaimNextConcurrentExclusivity(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	db := startPostgres(t, ctx)
	repo := jobs.NewPostgresRepository(db)

	job := &models.Job{
		ID:             uuid.New().String(),
		OwnerID:        "owner-1",
		MasterFileName: "data.bin",
		LocalPath:      "/incoming/data.bin",
	}
	require.NoError(t, repo.Create(ctx, job))

	const claimants = 8

	var (
		wins   int32
		misses int32
		start  = make(chan struct{})
		wg     sync.WaitGroup
	)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			claimed, err := repo.ClaimNext(ctx)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
				assert.Equal(t, job.ID, claimed.ID)
				assert.Equal(t, models.JobStatusProcessing, claimed.Status)
			default:
				assert.ErrorIs(t, err, common.ErrNotFound)
				atomic.AddInt32(&misses, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(claimants-1), misses)

	stored, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, stored.Status)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.HeartbeatAt)
}

func TestClaimNextOldestFirst(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	db := startPostgres(t, ctx)
	repo := jobs.NewPostgresRepository(db)

	var ids []string
	for i := 0; i < 3; i++ {
		job := &models.Job{
			ID:             uuid.New().String(),
			OwnerID:        "owner-1",
			MasterFileName: fmt.Sprintf("data%d.bin", i),
			LocalPath:      "/incoming/data.bin",
		}
		require.NoError(t, repo.Create(ctx, job))
		ids = append(ids, job.ID)
		time.Sleep(10 * time.Millisecond)
	}

	for _, want := range ids {
		claimed, err := repo.ClaimNext(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, claimed.ID)
	}

	_, err := repo.ClaimNext(ctx)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
