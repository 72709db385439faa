package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/datallboy/bossfetch/internal/domain"
	"github.com/datallboy/bossfetch/internal/infra/logger"
)

const (
	DefaultGracePeriod = 2 * time.Second
	DefaultKillTimeout = 5 * time.Second
)

type Options struct {
	// GracePeriod is the single shared deadline for all workers to exit
	// after the coordinator stops receiving.
	GracePeriod time.Duration
	// KillTimeout bounds how long a killed worker is waited on before it
	// is abandoned.
	KillTimeout time.Duration
	Observers   []Observer
}

// Coordinator runs one job at a time: partition, spawn, drain, shut down.
type Coordinator struct {
	log       *logger.Logger
	newMirror MirrorFactory
	opts      Options
}

func NewCoordinator(log *logger.Logger, newMirror MirrorFactory, opts Options) *Coordinator {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.KillTimeout <= 0 {
		opts.KillTimeout = DefaultKillTimeout
	}
	return &Coordinator{
		log:       log.Named("engine"),
		newMirror: newMirror,
		opts:      opts,
	}
}

// Run fetches every item of job and returns once all workers have exited
// or been killed. Cancelling ctx stops the receive loop early; the summary
// then covers only the results drained so far and the error is an
// *domain.InterruptedError.
func (c *Coordinator) Run(ctx context.Context, job *domain.Job) (domain.Summary, error) {
	summary, _, err := c.run(ctx, job)
	return summary, err
}

func (c *Coordinator) run(ctx context.Context, job *domain.Job) (domain.Summary, []*WorkerHandle, error) {
	summary := domain.Summary{JobID: job.ID, StartedAt: time.Now()}

	chunks, err := Partition(job.Items, job.Workers)
	if err != nil {
		summary.FinishedAt = time.Now()
		return summary, nil, err
	}

	total := countItems(chunks)
	summary.ItemsTotal = total
	summary.Workers = len(chunks)

	// Build every client up front so a bad factory fails the job before
	// any transfer starts.
	mirrors := make([]Mirror, len(chunks))
	for i := range chunks {
		m, err := c.newMirror()
		if err != nil {
			for _, built := range mirrors[:i] {
				closeMirror(built)
			}
			summary.FinishedAt = time.Now()
			return summary, nil, fmt.Errorf("failed to create mirror client for worker %d: %w", i+1, err)
		}
		mirrors[i] = m
	}

	results := make(chan domain.FetchResult, total)
	handles := make([]*WorkerHandle, len(chunks))
	for i, chunk := range chunks {
		handles[i] = spawn(NewWorker(i+1, chunk, mirrors[i], results, c.log))
	}

	c.log.Info("Fetching %d items with %d workers", total, len(chunks))
	obs := observers(c.opts.Observers)
	obs.started(job, total, len(chunks))

	counts := &tally{total: total, failures: []domain.Failure{}}
	recvErr := c.receive(ctx, results, counts, obs)

	summary.WorkersKilled = c.shutdown(handles)
	summary.ItemsSeen = counts.seen
	summary.BytesTotal = counts.bytes
	summary.Failures = counts.failures
	summary.FinishedAt = time.Now()

	var interrupted *domain.InterruptedError
	if errors.As(recvErr, &interrupted) {
		summary.Interrupted = true
		c.log.Warn("Interrupted after %d/%d items", counts.seen, total)
	}

	obs.finished(summary)
	return summary, handles, recvErr
}

// receive drains exactly total results unless ctx is cancelled first.
func (c *Coordinator) receive(ctx context.Context, results <-chan domain.FetchResult, t *tally, obs observers) error {
	for t.seen < t.total {
		select {
		case <-ctx.Done():
			return &domain.InterruptedError{Seen: t.seen, Expected: t.total, Cause: context.Cause(ctx)}
		case res := <-results:
			t.record(res)
			if !res.OK() {
				c.log.Error("[FAIL] %s (worker %d): %s", res.Item, res.Worker, res.Message)
			} else {
				c.log.Debug("fetched %s (%d bytes, worker %d)", res.Item, res.Bytes, res.Worker)
			}
			obs.received(res, t.snapshot())
		}
	}
	return nil
}

// shutdown joins every worker against one shared grace deadline, kills the
// survivors and waits up to KillTimeout for them. Workers still running
// after that are abandoned. It returns the number of workers killed.
func (c *Coordinator) shutdown(handles []*WorkerHandle) int {
	deadline := time.Now().Add(c.opts.GracePeriod)

	var stragglers []*WorkerHandle
	for _, h := range handles {
		if !h.Join(time.Until(deadline)) {
			stragglers = append(stragglers, h)
		}
	}

	if len(stragglers) == 0 {
		return 0
	}

	for _, h := range stragglers {
		c.log.Warn("Worker %d still running after %s, terminating", h.ID(), c.opts.GracePeriod)
		h.Kill()
	}

	killDeadline := time.Now().Add(c.opts.KillTimeout)
	for _, h := range stragglers {
		if !h.Join(time.Until(killDeadline)) {
			c.log.Error("Worker %d did not stop within %s, abandoning it", h.ID(), c.opts.KillTimeout)
		}
	}

	killed := 0
	for _, h := range stragglers {
		if h.State() == StateKilled {
			killed++
		}
	}
	return killed
}

type tally struct {
	total    int
	seen     int
	bytes    int64
	failures []domain.Failure
}

func (t *tally) record(res domain.FetchResult) {
	t.seen++
	if res.OK() {
		t.bytes += res.Bytes
		return
	}
	t.failures = append(t.failures, domain.Failure{Item: res.Item, Message: res.Message})
}

func (t *tally) snapshot() Snapshot {
	return Snapshot{Total: t.total, Seen: t.seen, Failed: len(t.failures), Bytes: t.bytes}
}
