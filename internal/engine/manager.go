package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/datallboy/bossfetch/internal/domain"
	"github.com/datallboy/bossfetch/internal/infra/logger"
)

// Runner executes one job to completion. *Coordinator satisfies it.
type Runner interface {
	Run(ctx context.Context, job *domain.Job) (domain.Summary, error)
}

// JobStore persists jobs across restarts.
type JobStore interface {
	SaveJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	UnfinishedJobs(ctx context.Context) ([]*domain.Job, error)
}

// Progress is the live view of the active job.
type Progress struct {
	JobID    string           `json:"job_id"`
	Workers  int              `json:"workers"`
	Snapshot Snapshot         `json:"progress"`
	Failures []domain.Failure `json:"failures"`
	Started  time.Time        `json:"started_at"`
}

// JobManager runs queued jobs one at a time in FIFO order. It also
// observes the coordinator to expose live progress for the active job.
type JobManager struct {
	mu             sync.RWMutex
	store          JobStore
	log            *logger.Logger
	defaultWorkers int

	queue    []*domain.Job
	active   *domain.Job
	progress *Progress

	newJobChan chan struct{}
}

// NewJobManager builds a manager. When loadExisting is set, jobs left
// pending or running by a previous process are queued again.
func NewJobManager(store JobStore, log *logger.Logger, defaultWorkers int, loadExisting bool) *JobManager {
	m := &JobManager{
		store:          store,
		log:            log.Named("jobs"),
		defaultWorkers: defaultWorkers,
		queue:          make([]*domain.Job, 0),
		newJobChan:     make(chan struct{}, 1),
	}

	if loadExisting {
		jobs, err := store.UnfinishedJobs(context.Background())
		if err != nil {
			m.log.Error("failed to load unfinished jobs: %v", err)
		}
		for _, job := range jobs {
			job.Status = domain.StatusPending
			m.queue = append(m.queue, job)
		}
		if len(m.queue) > 0 {
			m.log.Info("Resuming %d unfinished jobs", len(m.queue))
		}
	}

	return m
}

// Add validates items against the partitioner and queues a new job. A
// non-positive workers value uses the configured default.
func (m *JobManager) Add(ctx context.Context, items []domain.RemoteItem, workers int) (*domain.Job, error) {
	if workers <= 0 {
		workers = m.defaultWorkers
	}

	if _, err := Partition(items, workers); err != nil {
		return nil, err
	}

	job := &domain.Job{
		ID:        ksuid.New().String(),
		Items:     Dedupe(items),
		Workers:   workers,
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}

	if err := m.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job to database: %w", err)
	}

	m.mu.Lock()
	m.queue = append(m.queue, job)
	m.mu.Unlock()

	// Signal the Start() loop that there is work to do
	select {
	case m.newJobChan <- struct{}{}:
	default:
	}

	return job, nil
}

// Start processes the queue until ctx is cancelled.
func (m *JobManager) Start(ctx context.Context, runner Runner) {
	for {
		var next *domain.Job

		m.mu.RLock()
		for _, job := range m.queue {
			if job.Status == domain.StatusPending {
				next = job
				break
			}
		}
		m.mu.RUnlock()

		if next == nil {
			select {
			case <-m.newJobChan:
				continue
			case <-ctx.Done():
				return
			}
		}

		jobCtx, cancel := context.WithCancel(ctx)

		m.mu.Lock()
		if next.Status != domain.StatusPending {
			// Cancelled between selection and start
			m.mu.Unlock()
			cancel()
			continue
		}
		m.active = next
		next.CancelFunc = cancel
		next.Status = domain.StatusRunning
		m.mu.Unlock()
		m.persist(next)

		summary, err := runner.Run(jobCtx, next)
		cancel()

		if ctx.Err() != nil && errors.Is(err, domain.ErrInterrupted) {
			// Shutting down: leave the job for the next process to resume
			m.requeue(next)
			return
		}
		m.finalizeJob(next, summary, err)

		if ctx.Err() != nil {
			return
		}
	}
}

// Cancel interrupts a queued or running job.
func (m *JobManager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.queue {
		if job.ID != id {
			continue
		}
		if job.Status.Finished() {
			return false
		}
		if job.CancelFunc != nil {
			job.CancelFunc()
			return true
		}

		// Not started yet: drop it from the queue
		job.Status = domain.StatusInterrupted
		job.Error = "Cancelled by user"
		m.persistLocked(job)
		m.removeFromLiveQueue(job.ID)
		return true
	}
	return false
}

// Get returns a copy of the job from the live queue, falling back to the store.
func (m *JobManager) Get(ctx context.Context, id string) (*domain.Job, bool) {
	m.mu.RLock()
	for _, job := range m.queue {
		if job.ID == id {
			c := *job
			m.mu.RUnlock()
			return &c, true
		}
	}
	m.mu.RUnlock()

	job, err := m.store.GetJob(ctx, id)
	if err == nil && job != nil {
		return job, true
	}
	return nil, false
}

// List returns copies of the jobs still in the live queue.
func (m *JobManager) List() []*domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*domain.Job, len(m.queue))
	for i, job := range m.queue {
		c := *job
		jobs[i] = &c
	}
	return jobs
}

// Active returns a copy of the running job, if any.
func (m *JobManager) Active() (*domain.Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.active == nil {
		return nil, false
	}
	c := *m.active
	return &c, true
}

// Progress returns the live tally for the running job.
func (m *JobManager) Progress() (Progress, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.progress == nil {
		return Progress{}, false
	}
	p := *m.progress
	p.Failures = append([]domain.Failure(nil), m.progress.Failures...)
	return p, true
}

func (m *JobManager) JobStarted(job *domain.Job, total, workers int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.progress = &Progress{
		JobID:    job.ID,
		Workers:  workers,
		Snapshot: Snapshot{Total: total},
		Failures: []domain.Failure{},
		Started:  time.Now(),
	}
}

func (m *JobManager) ResultReceived(res domain.FetchResult, snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.progress == nil {
		return
	}
	m.progress.Snapshot = snap
	if !res.OK() {
		m.progress.Failures = append(m.progress.Failures, domain.Failure{Item: res.Item, Message: res.Message})
	}
}

func (m *JobManager) JobFinished(domain.Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = nil
}

func (m *JobManager) finalizeJob(job *domain.Job, summary domain.Summary, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Summary = summary
	job.CancelFunc = nil

	switch {
	case err == nil:
		job.Status = domain.StatusCompleted
	case errors.Is(err, domain.ErrInterrupted):
		job.Status = domain.StatusInterrupted
		job.Error = "Cancelled by user"
	default:
		job.Status = domain.StatusFailed
		job.Error = err.Error()
	}

	m.log.Info("Job %s %s: %d/%d items, %d failed", job.ID, job.Status, summary.ItemsSeen, summary.ItemsTotal, len(summary.Failures))

	// Persist the final outcome
	m.persistLocked(job)

	m.active = nil
	m.removeFromLiveQueue(job.ID)
}

func (m *JobManager) requeue(job *domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = domain.StatusPending
	job.CancelFunc = nil
	m.persistLocked(job)
	m.active = nil
}

func (m *JobManager) persist(job *domain.Job) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.persistLocked(job)
}

func (m *JobManager) persistLocked(job *domain.Job) {
	if err := m.store.SaveJob(context.Background(), job); err != nil {
		m.log.Error("failed to persist job %s: %v", job.ID, err)
	}
}

// removeFromLiveQueue keeps the live slice small by removing finished jobs
func (m *JobManager) removeFromLiveQueue(id string) {
	for i, job := range m.queue {
		if job.ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
}
