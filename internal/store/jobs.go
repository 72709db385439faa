package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/datallboy/bossfetch/internal/domain"
)

const jobColumns = `id, status, workers, items, items_total, items_seen, bytes_total,
	workers_used, workers_killed, interrupted, error, created_at, started_at, finished_at`

// SaveJob upserts the job row and replaces its recorded failures.
func (s *PersistentStore) SaveJob(ctx context.Context, job *domain.Job) error {
	itemsJSON, err := json.Marshal(job.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sum := job.Summary
	query := `INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			workers = excluded.workers,
			items = excluded.items,
			items_total = excluded.items_total,
			items_seen = excluded.items_seen,
			bytes_total = excluded.bytes_total,
			workers_used = excluded.workers_used,
			workers_killed = excluded.workers_killed,
			interrupted = excluded.interrupted,
			error = excluded.error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`

	_, err = tx.ExecContext(ctx, s.rebind(query),
		job.ID,
		string(job.Status),
		job.Workers,
		string(itemsJSON),
		sum.ItemsTotal,
		sum.ItemsSeen,
		sum.BytesTotal,
		sum.Workers,
		sum.WorkersKilled,
		boolToInt(sum.Interrupted),
		job.Error,
		unixNano(job.CreatedAt),
		unixNano(sum.StartedAt),
		unixNano(sum.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM job_failures WHERE job_id = ?`), job.ID); err != nil {
		return fmt.Errorf("failed to clear failures for %s: %w", job.ID, err)
	}

	for _, f := range sum.Failures {
		_, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO job_failures (job_id, item, message) VALUES (?, ?, ?)`),
			job.ID, string(f.Item), f.Message)
		if err != nil {
			return fmt.Errorf("failed to save failure for %s: %w", f.Item, err)
		}
	}

	return tx.Commit()
}

// GetJob returns nil, nil when no job has the given id.
func (s *PersistentStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+jobColumns+` FROM jobs WHERE id = ? LIMIT 1`), id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch job: %w", err)
	}

	if job.Summary.Failures, err = s.GetFailures(ctx, id); err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns the most recent jobs first. A non-positive limit returns
// every job.
func (s *PersistentStore) ListJobs(ctx context.Context, limit int) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	jobs, err := s.queryJobs(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if job.Summary.Failures, err = s.GetFailures(ctx, job.ID); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

// UnfinishedJobs returns pending and running jobs, oldest first.
func (s *PersistentStore) UnfinishedJobs(ctx context.Context) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN (?, ?) ORDER BY id ASC`
	return s.queryJobs(ctx, s.rebind(query), string(domain.StatusPending), string(domain.StatusRunning))
}

func (s *PersistentStore) GetFailures(ctx context.Context, jobID string) ([]domain.Failure, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT item, message FROM job_failures WHERE job_id = ? ORDER BY item`), jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch failures: %w", err)
	}
	defer rows.Close()

	failures := []domain.Failure{}
	for rows.Next() {
		var f domain.Failure
		var item string
		if err := rows.Scan(&item, &f.Message); err != nil {
			return nil, err
		}
		f.Item = domain.RemoteItem(item)
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

func (s *PersistentStore) queryJobs(ctx context.Context, query string, args ...any) ([]*domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jobs: %w", err)
	}

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		jobs = append(jobs, job)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Failures are loaded after the cursor is closed so a single sqlite
	// connection is never asked to run two statements at once
	for _, job := range jobs {
		if job.Summary.Failures, err = s.GetFailures(ctx, job.ID); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	var (
		job                              domain.Job
		status, itemsJSON                string
		interrupted                      int
		createdAt, startedAt, finishedAt int64
	)

	err := row.Scan(
		&job.ID, &status, &job.Workers, &itemsJSON,
		&job.Summary.ItemsTotal, &job.Summary.ItemsSeen, &job.Summary.BytesTotal,
		&job.Summary.Workers, &job.Summary.WorkersKilled, &interrupted,
		&job.Error, &createdAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(itemsJSON), &job.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal items for %s: %w", job.ID, err)
	}

	job.Status = domain.JobStatus(status)
	job.Summary.JobID = job.ID
	job.Summary.Interrupted = interrupted != 0
	job.CreatedAt = fromUnixNano(createdAt)
	job.Summary.StartedAt = fromUnixNano(startedAt)
	job.Summary.FinishedAt = fromUnixNano(finishedAt)

	return &job, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
