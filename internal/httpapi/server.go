// Package httpapi exposes the ingestion queue, the reassembled files and
// the media cache over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/chunkvault/chunkvault/internal/common"
	"github.com/chunkvault/chunkvault/internal/logging"
)

type Server interface {
	SubmitJob(c echo.Context) error
	ListJobs(c echo.Context) error
	ListPendingJobs(c echo.Context) error
	GetJob(c echo.Context) error
	RetryJob(c echo.Context) error
	CancelJob(c echo.Context) error
	PurgeJob(c echo.Context) error

	ListFiles(c echo.Context) error
	DownloadFile(c echo.Context) error
	DeleteFile(c echo.Context) error

	ServeMedia(c echo.Context) error
}

func RegisterHandlers(e *echo.Echo, s Server) {
	e.POST("/api/jobs", s.SubmitJob).Name = "submit-job"
	e.GET("/api/jobs", s.ListJobs).Name = "list-jobs"
	e.GET("/api/jobs/pending", s.ListPendingJobs).Name = "list-pending-jobs"
	e.GET("/api/jobs/:id", s.GetJob).Name = "get-job"
	e.POST("/api/jobs/:id/retry", s.RetryJob).Name = "retry-job"
	e.POST("/api/jobs/:id/cancel", s.CancelJob).Name = "cancel-job"
	e.POST("/api/jobs/:id/purge", s.PurgeJob).Name = "purge-job"

	e.GET("/api/files", s.ListFiles).Name = "list-files"
	e.GET("/api/files/:uuid", s.DownloadFile).Name = "download-file"
	e.DELETE("/api/files/:uuid", s.DeleteFile).Name = "delete-file"

	// Backend object ids contain slashes, so the media route matches the
	// whole remaining path.
	e.GET("/api/media/*", s.ServeMedia).Name = "serve-media"
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func Start(ctx context.Context, addr string, s Server, log logging.Logger) error {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	RegisterHandlers(e, s)

	go func() {
		<-ctx.Done()
		if err := e.Shutdown(context.Background()); err != nil {
			log.Error(ctx, "http shutdown", "error", err.Error())
		}
	}()

	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// statusFor maps the shared error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrNotEligible):
		return http.StatusConflict
	case errors.Is(err, common.ErrPartialData),
		errors.Is(err, common.ErrBackendIO),
		errors.Is(err, common.ErrBackendAuth):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
