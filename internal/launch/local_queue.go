package launch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LocalQueue is a launch queue stored in the local SQLite database. The
// controller submits to it; an executing agent claims and completes jobs.
type LocalQueue struct {
	db          *sql.DB
	name        string
	submittedBy string
}

var _ Submitter = (*LocalQueue)(nil)

// timeLayout is fixed width so that stored timestamps sort lexically in time
// order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var timeNow = time.Now

func NewLocalQueue(db *sql.DB, name, submittedBy string) *LocalQueue {
	if name == "" {
		name = "default"
	}
	if submittedBy == "" {
		submittedBy = "launchbridge"
	}
	return &LocalQueue{db: db, name: name, submittedBy: submittedBy}
}

// Name returns the queue name jobs are submitted to.
func (q *LocalQueue) Name() string { return q.name }

// Submit inserts a queued launch job for spec.
func (q *LocalQueue) Submit(ctx context.Context, spec RunSpec) (Handle, error) {
	if spec.URI == "" {
		return nil, fmt.Errorf("run spec uri is empty")
	}
	if spec.Resource == "" {
		return nil, fmt.Errorf("run spec resource is empty")
	}
	if spec.Overrides.Args == nil {
		spec.Overrides.Args = []string{}
	}

	payload, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal run spec: %w", err)
	}

	id := uuid.NewString()
	now := timeNow().UTC().Format(timeLayout)

	var runID any
	if spec.RunID != "" {
		runID = spec.RunID
	}

	_, err = q.db.ExecContext(ctx, `
INSERT INTO launch_jobs(id, queue, run_id, spec, status, submitted_by, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?);
`, id, q.name, runID, string(payload), StatusQueued, q.submittedBy, now)
	if err != nil {
		return nil, fmt.Errorf("submit launch job: %w", err)
	}
	return &jobHandle{q: q, id: id}, nil
}

// Handle returns a handle for an existing job id.
func (q *LocalQueue) Handle(id string) Handle {
	return &jobHandle{q: q, id: id}
}

// Claim marks the oldest queued job running and returns it. Returns (nil, nil)
// if the queue is empty.
func (q *LocalQueue) Claim(ctx context.Context) (*Job, error) {
	now := timeNow().UTC().Format(timeLayout)

	row := q.db.QueryRowContext(ctx, `
WITH next AS (
  SELECT id
  FROM launch_jobs
  WHERE queue = ? AND status = ?
  ORDER BY created_at ASC, rowid ASC
  LIMIT 1
)
UPDATE launch_jobs
SET status = ?, started_at = ?
WHERE id IN (SELECT id FROM next)
RETURNING id, queue, run_id, spec, status, submitted_by, created_at, started_at, completed_at, last_error;
`, q.name, StatusQueued, StatusRunning, now)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim launch job: %w", err)
	}
	return j, nil
}

// Get returns one job by id.
func (q *LocalQueue) Get(ctx context.Context, id string) (*Job, error) {
	row := q.db.QueryRowContext(ctx, `
SELECT id, queue, run_id, spec, status, submitted_by, created_at, started_at, completed_at, last_error
FROM launch_jobs WHERE id = ?;
`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get launch job: %w", err)
	}
	return j, nil
}

// List returns the queue's jobs, oldest first.
func (q *LocalQueue) List(ctx context.Context) ([]*Job, error) {
	rows, err := q.db.QueryContext(ctx, `
SELECT id, queue, run_id, spec, status, submitted_by, created_at, started_at, completed_at, last_error
FROM launch_jobs WHERE queue = ?
ORDER BY created_at ASC, rowid ASC;
`, q.name)
	if err != nil {
		return nil, fmt.Errorf("list launch jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan launch job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Complete marks a job terminal and appends a row to launch_job_log. Jobs that
// were already killed keep their status.
func (q *LocalQueue) Complete(ctx context.Context, id string, status Status, lastError *string) error {
	if id == "" {
		return fmt.Errorf("job id is empty")
	}
	if status != StatusSucceeded && status != StatusFailed && status != StatusKilled {
		return fmt.Errorf("invalid terminal status: %q", status)
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		current     string
		runID       sql.NullString
		submittedBy string
		createdAt   string
	)
	err = tx.QueryRowContext(ctx, `
SELECT status, run_id, submitted_by, created_at FROM launch_jobs WHERE id = ?;
`, id).Scan(&current, &runID, &submittedBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("load job for completion: %w", err)
	}
	if Status(current).Terminal() {
		return nil
	}

	completedAt := timeNow().UTC().Format(timeLayout)
	_, err = tx.ExecContext(ctx, `
UPDATE launch_jobs SET status = ?, completed_at = ?, last_error = ? WHERE id = ?;
`, status, completedAt, lastError, id)
	if err != nil {
		return fmt.Errorf("update job completion: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO launch_job_log(id, queue, run_id, status, submitted_by, created_at, completed_at, last_error)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, id, q.name, runID, status, submittedBy, createdAt, completedAt, lastError)
	if err != nil {
		return fmt.Errorf("insert launch_job_log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (q *LocalQueue) status(ctx context.Context, id string) (Status, error) {
	var s string
	err := q.db.QueryRowContext(ctx, `SELECT status FROM launch_jobs WHERE id = ?;`, id).Scan(&s)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrJobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read launch job status: %w", err)
	}
	return Status(s), nil
}

func (q *LocalQueue) kill(ctx context.Context, id string) error {
	msg := "killed by sweep controller"
	return q.Complete(ctx, id, StatusKilled, &msg)
}

type jobHandle struct {
	q  *LocalQueue
	id string
}

func (h *jobHandle) ID() string { return h.id }

func (h *jobHandle) Kill(ctx context.Context) error { return h.q.kill(ctx, h.id) }

func (h *jobHandle) Status(ctx context.Context) (Status, error) { return h.q.status(ctx, h.id) }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j            Job
		runID        sql.NullString
		specS        string
		statusS      string
		createdAtS   string
		startedAtS   sql.NullString
		completedAtS sql.NullString
		lastError    sql.NullString
	)
	if err := row.Scan(&j.ID, &j.Queue, &runID, &specS, &statusS, &j.SubmittedBy, &createdAtS, &startedAtS, &completedAtS, &lastError); err != nil {
		return nil, err
	}

	j.Status = Status(statusS)
	if runID.Valid {
		j.RunID = runID.String
	}
	if err := json.Unmarshal([]byte(specS), &j.Spec); err != nil {
		return nil, fmt.Errorf("decode run spec for job %s: %w", j.ID, err)
	}
	j.Spec.RunID = j.RunID
	if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		j.CreatedAt = t
	}
	if startedAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, startedAtS.String); err == nil {
			j.StartedAt = &t
		}
	}
	if completedAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completedAtS.String); err == nil {
			j.CompletedAt = &t
		}
	}
	if lastError.Valid {
		j.LastError = &lastError.String
	}
	return &j, nil
}
