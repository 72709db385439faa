package controllers

import (
	"github.com/datallboy/bossfetch/internal/domain"
	"github.com/datallboy/bossfetch/internal/engine"
)

type SubmitRequest struct {
	Items   []string `json:"items"`
	Workers int      `json:"workers"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type JobListResponse struct {
	Queued  []*domain.Job `json:"queued"`
	History []*domain.Job `json:"history"`
}

type ProgressResponse struct {
	Active   bool             `json:"active"`
	Progress *engine.Progress `json:"progress,omitempty"`
}
