package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattjoyce/launchbridge/internal/runstate"
)

// ErrRunNotFound is returned by Get for a run that was never journaled.
var ErrRunNotFound = errors.New("run not found")

// RunRow is the persisted view of one run.
type RunRow struct {
	RunID     string
	SweepID   string
	State     runstate.State
	UpdatedAt time.Time
}

// TransitionRow is one journaled state change.
type TransitionRow struct {
	Seq   int64
	RunID string
	From  runstate.State
	To    runstate.State
	At    time.Time
}

// Store journals run state transitions so that an external layer can inspect
// runs (ERRORED ones in particular) after the controller exits.
type Store struct {
	db      *sql.DB
	sweepID string
}

func NewStore(db *sql.DB, sweepID string) *Store {
	return &Store{db: db, sweepID: sweepID}
}

// Record upserts the run's current state and appends the transition.
func (s *Store) Record(ctx context.Context, tr runstate.Transition) error {
	if tr.RunID == "" {
		return fmt.Errorf("run id is empty")
	}
	at := tr.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	atS := at.Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO run_status(run_id, sweep_id, state, updated_at)
VALUES(?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
  state = excluded.state,
  updated_at = excluded.updated_at;
`, tr.RunID, s.sweepID, string(tr.To), atS)
	if err != nil {
		return fmt.Errorf("upsert run status: %w", err)
	}

	var from any
	if tr.From != "" {
		from = string(tr.From)
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO run_transitions(run_id, sweep_id, from_state, to_state, at)
VALUES(?, ?, ?, ?, ?);
`, tr.RunID, s.sweepID, from, string(tr.To), atS)
	if err != nil {
		return fmt.Errorf("insert run transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Get returns the persisted state of one run.
func (s *Store) Get(ctx context.Context, runID string) (*RunRow, error) {
	var (
		row       RunRow
		stateS    string
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT run_id, sweep_id, state, updated_at FROM run_status WHERE run_id = ?;
`, runID).Scan(&row.RunID, &row.SweepID, &stateS, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read run status: %w", err)
	}
	row.State = runstate.State(stateS)
	row.UpdatedAt = parseTime(updatedAt)
	return &row, nil
}

// List returns runs for the store's sweep, or for every sweep when the store
// was created with an empty sweep id. Ordered by run id.
func (s *Store) List(ctx context.Context) ([]RunRow, error) {
	query := `SELECT run_id, sweep_id, state, updated_at FROM run_status`
	var args []any
	if s.sweepID != "" {
		query += ` WHERE sweep_id = ?`
		args = append(args, s.sweepID)
	}
	query += ` ORDER BY run_id ASC;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list run status: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var (
			r         RunRow
			stateS    string
			updatedAt string
		)
		if err := rows.Scan(&r.RunID, &r.SweepID, &stateS, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan run status: %w", err)
		}
		r.State = runstate.State(stateS)
		r.UpdatedAt = parseTime(updatedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// History returns the journaled transitions for a run, oldest first.
func (s *Store) History(ctx context.Context, runID string) ([]TransitionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, run_id, from_state, to_state, at FROM run_transitions
WHERE run_id = ?
ORDER BY seq ASC;
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list run transitions: %w", err)
	}
	defer rows.Close()

	var out []TransitionRow
	for rows.Next() {
		var (
			tr   TransitionRow
			from sql.NullString
			to   string
			at   string
		)
		if err := rows.Scan(&tr.Seq, &tr.RunID, &from, &to, &at); err != nil {
			return nil, fmt.Errorf("scan run transition: %w", err)
		}
		if from.Valid {
			tr.From = runstate.State(from.String)
		}
		tr.To = runstate.State(to)
		tr.At = parseTime(at)
		out = append(out, tr)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
