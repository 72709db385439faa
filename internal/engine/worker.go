package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/datallboy/bossfetch/internal/domain"
	"github.com/datallboy/bossfetch/internal/infra/logger"
)

// Worker fetches one chunk, in order, through its own Mirror and emits
// exactly one FetchResult per item it attempts.
type Worker struct {
	id      int
	chunk   domain.JobChunk
	mirror  Mirror
	results chan<- domain.FetchResult
	log     *logger.Logger
}

func NewWorker(id int, chunk domain.JobChunk, mirror Mirror, results chan<- domain.FetchResult, log *logger.Logger) *Worker {
	return &Worker{
		id:      id,
		chunk:   chunk,
		mirror:  mirror,
		results: results,
		log:     log.Named(fmt.Sprintf("worker-%d", id)),
	}
}

func (w *Worker) ID() int { return w.id }

// Run ignores interrupts. ctx is the kill switch held by the worker's
// handle, and a cancelled ctx stops the worker before its next item.
// Run returns the number of results it emitted.
func (w *Worker) Run(ctx context.Context) int {
	defer closeMirror(w.mirror)

	w.log.Debug("starting with %d items", w.chunk.Len())

	emitted := 0
	for _, item := range w.chunk.Items {
		if ctx.Err() != nil {
			w.log.Debug("killed with %d items left", w.chunk.Len()-emitted)
			return emitted
		}

		res := w.fetch(ctx, item)
		res.Worker = w.id

		// The results buffer holds one slot per item, so this never blocks
		w.results <- res
		emitted++
	}

	w.log.Debug("finished %d items", emitted)
	return emitted
}

func (w *Worker) fetch(ctx context.Context, item domain.RemoteItem) (res domain.FetchResult) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("mirror panicked on %s: %v", item, r)
			res = domain.Failed(item, fmt.Errorf("mirror panic: %v", r))
		}
	}()

	n, err := w.mirror.Fetch(ctx, item)
	if err != nil {
		var terr *domain.TransferError
		if errors.As(err, &terr) {
			err = terr.Err
		}
		return domain.Failed(item, err)
	}

	return domain.Success(item, n)
}
