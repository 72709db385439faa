package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/datallboy/bossfetch/internal/domain"
)

func items(names ...string) []domain.RemoteItem {
	out := make([]domain.RemoteItem, len(names))
	for i, n := range names {
		out[i] = domain.RemoteItem(n)
	}
	return out
}

// fakeMirror serves sizes from a shared table. Items listed in fail return
// an error, items in block wait for the worker's context (or release).
type fakeMirror struct {
	sizes   map[domain.RemoteItem]int64
	fail    map[domain.RemoteItem]error
	block   map[domain.RemoteItem]bool
	release <-chan struct{}
	ignore  bool

	calls  *callLog
	closed *atomic.Int32
}

func (m *fakeMirror) Fetch(ctx context.Context, item domain.RemoteItem) (int64, error) {
	m.calls.add(item)

	if m.block[item] {
		if m.ignore {
			<-m.release
			return 0, errors.New("released")
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-m.release:
		}
	}

	if err, ok := m.fail[item]; ok {
		return 0, &domain.TransferError{Item: item, Err: err}
	}
	return m.sizes[item], nil
}

func (m *fakeMirror) Close() error {
	m.closed.Add(1)
	return nil
}

type callLog struct {
	mu    sync.Mutex
	items []domain.RemoteItem
}

func (c *callLog) add(item domain.RemoteItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
}

func (c *callLog) all() []domain.RemoteItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.RemoteItem(nil), c.items...)
}

type fakeFarm struct {
	template fakeMirror
	built    atomic.Int32
	closed   atomic.Int32
	calls    callLog
	failAt   int32
}

func newFarm(sizes map[domain.RemoteItem]int64) *fakeFarm {
	f := &fakeFarm{}
	f.template.sizes = sizes
	f.template.fail = map[domain.RemoteItem]error{}
	f.template.block = map[domain.RemoteItem]bool{}
	return f
}

func (f *fakeFarm) factory() (Mirror, error) {
	n := f.built.Add(1)
	if f.failAt != 0 && n == f.failAt {
		return nil, errors.New("connection refused")
	}
	m := f.template
	m.calls = &f.calls
	m.closed = &f.closed
	return &m, nil
}

// recorder is an Observer that keeps everything it is told.
type recorder struct {
	mu       sync.Mutex
	total    int
	workers  int
	received []domain.FetchResult
	snaps    []Snapshot
	summary  *domain.Summary
	onResult func(Snapshot)
}

func (r *recorder) JobStarted(_ *domain.Job, total, workers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total, r.workers = total, workers
}

func (r *recorder) ResultReceived(res domain.FetchResult, snap Snapshot) {
	r.mu.Lock()
	r.received = append(r.received, res)
	r.snaps = append(r.snaps, snap)
	hook := r.onResult
	r.mu.Unlock()

	if hook != nil {
		hook(snap)
	}
}

func (r *recorder) JobFinished(s domain.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = &s
}
