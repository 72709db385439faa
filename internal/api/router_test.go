package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/bossfetch/internal/api/controllers"
	"github.com/datallboy/bossfetch/internal/app"
	"github.com/datallboy/bossfetch/internal/domain"
	"github.com/datallboy/bossfetch/internal/engine"
	"github.com/datallboy/bossfetch/internal/infra/config"
	"github.com/datallboy/bossfetch/internal/infra/logger"
)

type fakeQueue struct {
	jobs      map[string]*domain.Job
	added     []*domain.Job
	cancelled []string
	progress  *engine.Progress
	addErr    error
}

func (q *fakeQueue) Add(_ context.Context, items []domain.RemoteItem, workers int) (*domain.Job, error) {
	if q.addErr != nil {
		return nil, q.addErr
	}
	if _, err := engine.Partition(items, workers); err != nil {
		return nil, err
	}
	job := &domain.Job{ID: "job-new", Items: items, Workers: workers, Status: domain.StatusPending}
	q.added = append(q.added, job)
	return job, nil
}

func (q *fakeQueue) Get(_ context.Context, id string) (*domain.Job, bool) {
	job, ok := q.jobs[id]
	return job, ok
}

func (q *fakeQueue) List() []*domain.Job { return q.added }

func (q *fakeQueue) Active() (*domain.Job, bool) { return nil, false }

func (q *fakeQueue) Cancel(id string) bool {
	job, ok := q.jobs[id]
	if !ok || job.Status.Finished() {
		return false
	}
	q.cancelled = append(q.cancelled, id)
	return true
}

func (q *fakeQueue) Progress() (engine.Progress, bool) {
	if q.progress == nil {
		return engine.Progress{}, false
	}
	return *q.progress, true
}

type fakeStore struct {
	jobs []*domain.Job
	err  error
}

func (s *fakeStore) GetJob(context.Context, string) (*domain.Job, error) { return nil, nil }

func (s *fakeStore) ListJobs(_ context.Context, limit int) ([]*domain.Job, error) {
	if s.err != nil {
		return nil, s.err
	}
	if limit > 0 && limit < len(s.jobs) {
		return s.jobs[:limit], nil
	}
	return s.jobs, nil
}

func (s *fakeStore) Close() error { return nil }

func newTestServer(q *fakeQueue, s *fakeStore) *echo.Echo {
	ctx := app.NewContext(&config.Config{}, logger.Discard())
	ctx.Jobs = q
	ctx.Store = s

	e := echo.New()
	RegisterRoutes(e, ctx)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSubmitJob(t *testing.T) {
	q := &fakeQueue{}
	e := newTestServer(q, &fakeStore{})

	rec := do(e, http.MethodPost, "/api/jobs", `{"items": ["/a.fits", " ", "/b.fits"], "workers": 2}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job domain.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "job-new", job.ID)
	assert.Equal(t, []domain.RemoteItem{"/a.fits", "/b.fits"}, job.Items)
	require.Len(t, q.added, 1)
}

func TestSubmitRejectsBadPartition(t *testing.T) {
	e := newTestServer(&fakeQueue{}, &fakeStore{})

	rec := do(e, http.MethodPost, "/api/jobs", `{"items": ["/a.fits"], "workers": 6}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid worker count")

	rec = do(e, http.MethodPost, "/api/jobs", `{"items": [], "workers": 2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no items to fetch")
}

func TestSubmitStoreFailure(t *testing.T) {
	e := newTestServer(&fakeQueue{addErr: errors.New("disk full")}, &fakeStore{})

	rec := do(e, http.MethodPost, "/api/jobs", `{"items": ["/a.fits"], "workers": 1}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListJobs(t *testing.T) {
	s := &fakeStore{jobs: []*domain.Job{{ID: "b"}, {ID: "a"}}}
	e := newTestServer(&fakeQueue{}, s)

	rec := do(e, http.MethodGet, "/api/jobs?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp controllers.JobListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.History, 1)
	assert.Equal(t, "b", resp.History[0].ID)

	rec = do(e, http.MethodGet, "/api/jobs?limit=-3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetJob(t *testing.T) {
	q := &fakeQueue{jobs: map[string]*domain.Job{
		"done": {ID: "done", Status: domain.StatusCompleted, Summary: domain.Summary{
			ItemsSeen: 2,
			Failures:  []domain.Failure{{Item: "/b.fits", Message: "HTTP 404"}},
		}},
	}}
	e := newTestServer(q, &fakeStore{})

	rec := do(e, http.MethodGet, "/api/jobs/done", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"HTTP 404"`)

	rec = do(e, http.MethodGet, "/api/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelJob(t *testing.T) {
	q := &fakeQueue{jobs: map[string]*domain.Job{
		"run":  {ID: "run", Status: domain.StatusRunning},
		"done": {ID: "done", Status: domain.StatusCompleted},
	}}
	e := newTestServer(q, &fakeStore{})

	assert.Equal(t, http.StatusAccepted, do(e, http.MethodDelete, "/api/jobs/run", "").Code)
	assert.Equal(t, []string{"run"}, q.cancelled)

	assert.Equal(t, http.StatusConflict, do(e, http.MethodDelete, "/api/jobs/done", "").Code)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodDelete, "/api/jobs/nope", "").Code)
}

func TestProgress(t *testing.T) {
	q := &fakeQueue{}
	e := newTestServer(q, &fakeStore{})

	rec := do(e, http.MethodGet, "/api/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"active": false}`, rec.Body.String())

	q.progress = &engine.Progress{JobID: "j", Workers: 2, Snapshot: engine.Snapshot{Total: 4, Seen: 1, Bytes: 10}}
	rec = do(e, http.MethodGet, "/api/progress", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp controllers.ProgressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Active)
	assert.Equal(t, 1, resp.Progress.Snapshot.Seen)
}
