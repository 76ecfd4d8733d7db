package state

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattjoyce/launchbridge/internal/runstate"
	"github.com/mattjoyce/launchbridge/internal/storage"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStoreGetMissingRun(t *testing.T) {
	t.Parallel()

	s := NewStore(openTestDB(t), "sw1")
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestStoreRecordTracksLatestStateAndHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore(openTestDB(t), "sw1")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	steps := []runstate.Transition{
		{RunID: "r1", To: runstate.Queued, At: at},
		{RunID: "r1", From: runstate.Queued, To: runstate.Running, At: at.Add(time.Second)},
		{RunID: "r1", From: runstate.Running, To: runstate.Errored, At: at.Add(2 * time.Second)},
	}
	for _, tr := range steps {
		if err := s.Record(ctx, tr); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	row, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if row.State != runstate.Errored || row.SweepID != "sw1" {
		t.Fatalf("unexpected row: %#v", row)
	}
	if !row.UpdatedAt.Equal(at.Add(2 * time.Second)) {
		t.Fatalf("unexpected updated_at: %v", row.UpdatedAt)
	}

	hist, err := s.History(ctx, "r1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("expected 3 transitions, got %d", len(hist))
	}
	if hist[0].From != "" || hist[0].To != runstate.Queued {
		t.Fatalf("unexpected first transition: %#v", hist[0])
	}
	if hist[2].From != runstate.Running || hist[2].To != runstate.Errored {
		t.Fatalf("unexpected last transition: %#v", hist[2])
	}
}

func TestStoreListScopesBySweep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	a := NewStore(db, "sw-a")
	b := NewStore(db, "sw-b")

	for _, id := range []string{"r2", "r1"} {
		if err := a.Record(ctx, runstate.Transition{RunID: id, To: runstate.Queued}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := b.Record(ctx, runstate.Transition{RunID: "r3", To: runstate.Stopped}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	rows, err := a.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 2 || rows[0].RunID != "r1" || rows[1].RunID != "r2" {
		t.Fatalf("unexpected rows: %#v", rows)
	}

	all, err := NewStore(db, "").List(ctx)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rows across sweeps, got %d", len(all))
	}
}

func TestStoreRecordRejectsEmptyRunID(t *testing.T) {
	t.Parallel()

	s := NewStore(openTestDB(t), "sw1")
	if err := s.Record(context.Background(), runstate.Transition{To: runstate.Queued}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}
