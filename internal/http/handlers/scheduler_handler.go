package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/brokerage-alerts/internal/http/middleware"
	"github.com/tbourn/brokerage-alerts/internal/scheduler"
)

// JobRunner exposes the scheduler to the admin endpoints.
type JobRunner interface {
	Status() []scheduler.JobStatus
	RunNow(ctx context.Context, name string) (scheduler.RunResult, error)
}

// SchedulerStatusResponse lists the registered jobs.
type SchedulerStatusResponse struct {
	Jobs []scheduler.JobStatus `json:"jobs"`
}

// SchedulerStatus godoc
// @ID          schedulerStatus
// @Summary     Scheduler status (admin)
// @Description Registered jobs with their daily trigger, timezone, state, next run and last result.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} handlers.SchedulerStatusResponse
// @Failure     403  {object} handlers.ErrorResponse "Forbidden"
// @Failure     503  {object} handlers.ErrorResponse "Scheduler disabled"
// @Router      /admin/scheduler [get]
func (h *Handlers) SchedulerStatus(c *gin.Context) {
	if h.jobs == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "scheduler disabled")
		return
	}
	ok(c, http.StatusOK, SchedulerStatusResponse{Jobs: h.jobs.Status()})
}

// RunJob godoc
// @ID          runSchedulerJob
// @Summary     Run a job now (admin)
// @Description Runs one job immediately through the same evaluator and deduplication path as the schedule
// @Description and returns its result. A job body failure is reported in the result's "erro" field.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       job  path  string  true  "Job name"  example(renovacoes)
// @Success     200  {object} scheduler.RunResult
// @Failure     403  {object} handlers.ErrorResponse "Forbidden"
// @Failure     404  {object} handlers.ErrorResponse "Unknown job"
// @Failure     409  {object} handlers.ErrorResponse "Job already running"
// @Failure     503  {object} handlers.ErrorResponse "Scheduler disabled"
// @Router      /admin/scheduler/{job}/run [post]
func (h *Handlers) RunJob(c *gin.Context) {
	if h.jobs == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "scheduler disabled")
		return
	}
	res, err := h.jobs.RunNow(c.Request.Context(), c.Param("job"))
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		fail(c, http.StatusNotFound, ErrCodeUnknownJob, "unknown job")
		return
	case errors.Is(err, scheduler.ErrJobRunning):
		fail(c, http.StatusConflict, ErrCodeJobRunning, "job already running")
		return
	case err != nil:
		middleware.LoggerFrom(c).Warn().Err(err).Str("job", c.Param("job")).Msg("manual job run failed")
	}
	ok(c, http.StatusOK, res)
}
