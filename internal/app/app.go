// Package app wires configuration, the registry database, the storage
// backend and the services into runnable daemons. It also owns graceful
// shutdown on OS signals.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chunkvault/chunkvault/internal/config"
	"github.com/chunkvault/chunkvault/internal/logging"
	"github.com/chunkvault/chunkvault/internal/repositories/repomanager"
	"github.com/chunkvault/chunkvault/internal/storage"
)

// app holds the dependencies shared by both daemons.
type app struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	backend     storage.Backend
}

func newApp(cfg *config.Config) (*app, error) {
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	backend := storage.NewS3Backend(cfg.S3Bucket, cfg.S3Region, cfg.S3BaseEndpoint, cfg.S3QuotaLimit)

	return &app{
		config:      cfg,
		logger:      logger,
		db:          db,
		repomanager: rm,
		backend:     backend,
	}, nil
}

func (a *app) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (a *app) close(ctx context.Context) {
	if err := a.db.Close(); err != nil {
		a.logger.Error(ctx, "db close", "error", err.Error())
	}
}
