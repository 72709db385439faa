package domain

import (
	"context"
	"time"
)

type JobStatus string

const (
	StatusPending     JobStatus = "pending"
	StatusRunning     JobStatus = "running"
	StatusCompleted   JobStatus = "completed"
	StatusInterrupted JobStatus = "interrupted"
	StatusFailed      JobStatus = "failed"
)

// Finished reports whether the status is terminal.
func (s JobStatus) Finished() bool {
	return s == StatusCompleted || s == StatusInterrupted || s == StatusFailed
}

// Job is one invocation of the fetch orchestrator over a set of items.
type Job struct {
	ID        string       `json:"id"`
	Items     []RemoteItem `json:"items"`
	Workers   int          `json:"workers"`
	Status    JobStatus    `json:"status"`
	Summary   Summary      `json:"summary"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`

	CancelFunc context.CancelFunc `json:"-"`
}
