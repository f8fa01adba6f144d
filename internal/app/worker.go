package app

import (
	"context"
	"sync"

	"github.com/chunkvault/chunkvault/internal/config"
	"github.com/chunkvault/chunkvault/internal/worker"
)

// WorkerApp runs the distribution worker daemon: the claim loop, the stale
// job reaper and the Postgres notification listener.
type WorkerApp struct {
	*app
}

func NewWorkerApp(cfg *config.Config) (*WorkerApp, error) {
	a, err := newApp(cfg)
	if err != nil {
		return nil, err
	}
	return &WorkerApp{app: a}, nil
}

func (a *WorkerApp) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	a.logger.Info(ctx, "starting worker")
	a.initSignalHandler(cancelFunc)
	defer a.close(ctx)

	listener := worker.NewPgListener(a.config.DatabaseDSN, a.logger)
	defer listener.Close(context.Background())

	w := worker.New(a.config,
		a.repomanager.Jobs(a.db),
		a.repomanager.Chunks(a.db),
		a.repomanager.Accounts(a.db),
		a.backend, listener, a.logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.RunReaper(ctx)
	}()

	err := w.Run(ctx)
	wg.Wait()

	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
