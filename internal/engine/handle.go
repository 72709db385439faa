package engine

import (
	"context"
	"sync/atomic"
	"time"
)

type WorkerState int32

const (
	StateRunning WorkerState = iota
	StateExited
	StateKilled
)

func (s WorkerState) String() string {
	switch s {
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return "running"
	}
}

// WorkerHandle is the coordinator's only reference to a running worker.
type WorkerHandle struct {
	id    int
	done  chan struct{}
	kill  context.CancelFunc
	state atomic.Int32
}

// spawn starts w on its own goroutine with a private kill context. The
// context never derives from the interrupt context.
func spawn(w *Worker) *WorkerHandle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &WorkerHandle{
		id:   w.ID(),
		done: make(chan struct{}),
		kill: cancel,
	}

	go func() {
		defer close(h.done)
		defer cancel()
		w.Run(ctx)
		h.state.CompareAndSwap(int32(StateRunning), int32(StateExited))
	}()

	return h
}

func (h *WorkerHandle) ID() int { return h.id }

func (h *WorkerHandle) State() WorkerState { return WorkerState(h.state.Load()) }

// Done is closed once the worker goroutine has returned.
func (h *WorkerHandle) Done() <-chan struct{} { return h.done }

func (h *WorkerHandle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Join waits up to timeout for the worker to exit. A non-positive timeout
// only polls.
func (h *WorkerHandle) Join(timeout time.Duration) bool {
	if timeout <= 0 {
		return !h.Alive()
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-h.done:
		return true
	case <-t.C:
		return false
	}
}

// Kill cancels the worker's context. It is a no-op for a worker that
// already exited on its own.
func (h *WorkerHandle) Kill() {
	if h.state.CompareAndSwap(int32(StateRunning), int32(StateKilled)) {
		h.kill()
	}
}
