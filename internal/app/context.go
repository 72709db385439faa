package app

import (
	"context"

	"github.com/datallboy/bossfetch/internal/domain"
	"github.com/datallboy/bossfetch/internal/engine"
	"github.com/datallboy/bossfetch/internal/infra/config"
	"github.com/datallboy/bossfetch/internal/infra/logger"
)

// JobQueue allows the API to queue and inspect jobs without knowing how
// they are run.
type JobQueue interface {
	Add(ctx context.Context, items []domain.RemoteItem, workers int) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, bool)
	List() []*domain.Job
	Active() (*domain.Job, bool)
	Cancel(id string) bool
	Progress() (engine.Progress, bool)
}

// Store is the read side of the job history.
type Store interface {
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	ListJobs(ctx context.Context, limit int) ([]*domain.Job, error)
	Close() error
}

// Context holds the core environment and shared resources for bossfetch.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	Store Store
	Jobs  JobQueue
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}
