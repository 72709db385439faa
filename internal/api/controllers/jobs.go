package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/datallboy/bossfetch/internal/app"
	"github.com/datallboy/bossfetch/internal/domain"
)

const defaultHistoryLimit = 50

type JobsController struct {
	App *app.Context
}

// Submit queues a new fetch job
func (ctrl *JobsController) Submit(c *echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	items := make([]domain.RemoteItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it = strings.TrimSpace(it); it != "" {
			items = append(items, domain.RemoteItem(it))
		}
	}

	job, err := ctrl.App.Jobs.Add(c.Request().Context(), items, req.Workers)
	if err != nil {
		var perr *domain.PartitionError
		if errors.As(err, &perr) {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusAccepted, job)
}

// List returns the live queue and the most recent history
func (ctrl *JobsController) List(c *echo.Context) error {
	limit := defaultHistoryLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
		}
		limit = n
	}

	history, err := ctrl.App.Store.ListJobs(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	if history == nil {
		history = []*domain.Job{}
	}

	return c.JSON(http.StatusOK, JobListResponse{Queued: ctrl.App.Jobs.List(), History: history})
}

func (ctrl *JobsController) Get(c *echo.Context) error {
	job, ok := ctrl.App.Jobs.Get(c.Request().Context(), c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "job not found"})
	}
	return c.JSON(http.StatusOK, job)
}

// Cancel interrupts a running job or drops a queued one
func (ctrl *JobsController) Cancel(c *echo.Context) error {
	id := c.Param("id")
	if !ctrl.App.Jobs.Cancel(id) {
		if _, ok := ctrl.App.Jobs.Get(c.Request().Context(), id); ok {
			return c.JSON(http.StatusConflict, ErrorResponse{Error: "job already finished"})
		}
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "job not found"})
	}
	return c.NoContent(http.StatusAccepted)
}

// Progress reports the live tally of the running job
func (ctrl *JobsController) Progress(c *echo.Context) error {
	p, ok := ctrl.App.Jobs.Progress()
	if !ok {
		return c.JSON(http.StatusOK, ProgressResponse{Active: false})
	}
	return c.JSON(http.StatusOK, ProgressResponse{Active: true, Progress: &p})
}
