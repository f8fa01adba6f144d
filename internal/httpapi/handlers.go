package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chunkvault/chunkvault/internal/cache"
	"github.com/chunkvault/chunkvault/internal/models"
	"github.com/chunkvault/chunkvault/internal/services"
)

type server struct {
	jobs  *services.JobService
	files *services.FileService
	media *cache.Proxy
}

func NewServer(jobSvc *services.JobService, fileSvc *services.FileService, media *cache.Proxy) Server {
	return &server{
		jobs:  jobSvc,
		files: fileSvc,
		media: media,
	}
}

type jobResponse struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"owner_id,omitempty"`
	MasterFileName string     `json:"master_file_name"`
	LocalPath      string     `json:"local_path"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	RetryCount     int        `json:"retry_count"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

func toJobResponse(job *models.Job) jobResponse {
	return jobResponse{
		ID:             job.ID,
		OwnerID:        job.OwnerID,
		MasterFileName: job.MasterFileName,
		LocalPath:      job.LocalPath,
		Status:         string(job.Status),
		ErrorMessage:   job.ErrorMessage,
		RetryCount:     job.RetryCount,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		FinishedAt:     job.FinishedAt,
	}
}

func toJobResponses(jobs []*models.Job) []jobResponse {
	out := make([]jobResponse, len(jobs))
	for i, job := range jobs {
		out[i] = toJobResponse(job)
	}
	return out
}

func httpError(err error) error {
	return echo.NewHTTPError(statusFor(err), err.Error())
}

func (s *server) SubmitJob(c echo.Context) error {
	var req services.SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	job, err := s.jobs.Submit(c.Request().Context(), &req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, toJobResponse(job))
}

func (s *server) ListJobs(c echo.Context) error {
	jobs, err := s.jobs.ListAll(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toJobResponses(jobs))
}

func (s *server) ListPendingJobs(c echo.Context) error {
	jobs, err := s.jobs.ListPending(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toJobResponses(jobs))
}

func (s *server) GetJob(c echo.Context) error {
	job, err := s.jobs.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, toJobResponse(job))
}

func (s *server) RetryJob(c echo.Context) error {
	if err := s.jobs.Retry(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *server) CancelJob(c echo.Context) error {
	if err := s.jobs.Cancel(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *server) PurgeJob(c echo.Context) error {
	if err := s.jobs.Purge(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type masterFileResponse struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

func (s *server) ListFiles(c echo.Context) error {
	masters, err := s.files.List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	out := make([]masterFileResponse, len(masters))
	for i, m := range masters {
		out[i] = masterFileResponse{UUID: m.UUID, Name: m.Name}
	}
	return c.JSON(http.StatusOK, out)
}

// DownloadFile reassembles the master file and serves it whole. With
// ?download=1 the response asks the browser to save instead of display.
func (s *server) DownloadFile(c echo.Context) error {
	file, err := s.files.Retrieve(c.Request().Context(), c.Param("uuid"))
	if err != nil {
		return httpError(err)
	}

	disposition := "inline"
	if c.QueryParam("download") == "1" {
		disposition = "attachment"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`%s; filename=%q`, disposition, file.Name))

	return c.Blob(http.StatusOK, file.ContentType, file.Data)
}

func (s *server) DeleteFile(c echo.Context) error {
	if err := s.files.Delete(c.Request().Context(), c.Param("uuid")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ServeMedia serves one stored object through the read-through disk cache
// using the requesting account's own credentials.
func (s *server) ServeMedia(c echo.Context) error {
	accountID := c.QueryParam("account_id")
	if accountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}

	objectID := c.Param("*")
	if objectID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "object id is required")
	}

	data, contentType, err := s.media.Serve(c.Request().Context(), objectID, accountID)
	if err != nil {
		return httpError(err)
	}
	return c.Blob(http.StatusOK, contentType, data)
}
