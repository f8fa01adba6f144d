package app

import (
	"context"

	"github.com/chunkvault/chunkvault/internal/cache"
	"github.com/chunkvault/chunkvault/internal/config"
	"github.com/chunkvault/chunkvault/internal/httpapi"
	"github.com/chunkvault/chunkvault/internal/services"
)

// ServerApp runs the HTTP API daemon.
type ServerApp struct {
	*app
}

func NewServerApp(cfg *config.Config) (*ServerApp, error) {
	a, err := newApp(cfg)
	if err != nil {
		return nil, err
	}
	return &ServerApp{app: a}, nil
}

func (a *ServerApp) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	a.logger.Info(ctx, "starting api server", "addr", a.config.EndpointAddr)
	a.initSignalHandler(cancelFunc)
	defer a.close(ctx)

	jobService := services.NewJobService(a.db, a.repomanager, a.logger)
	fileService := services.NewFileService(a.db, a.repomanager, a.backend, a.logger)

	proxy, err := cache.NewProxy(a.config.CacheDir, a.config.CacheTTL, a.backend,
		a.repomanager.Accounts(a.db), a.logger)
	if err != nil {
		return err
	}

	server := httpapi.NewServer(jobService, fileService, proxy)
	return httpapi.Start(ctx, a.config.EndpointAddr, server, a.logger)
}
