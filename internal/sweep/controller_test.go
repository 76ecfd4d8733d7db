package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/launchbridge/internal/dispatch"
	"github.com/mattjoyce/launchbridge/internal/events"
	"github.com/mattjoyce/launchbridge/internal/heartbeat"
	"github.com/mattjoyce/launchbridge/internal/launch"
	"github.com/mattjoyce/launchbridge/internal/metrics"
	"github.com/mattjoyce/launchbridge/internal/protocol"
	"github.com/mattjoyce/launchbridge/internal/runstate"
	"github.com/mattjoyce/launchbridge/internal/state"
	"github.com/mattjoyce/launchbridge/internal/storage"
)

// scriptedClient answers heartbeats from a callback and records reports.
type scriptedClient struct {
	registerErr error

	mu      sync.Mutex
	beats   int
	reports []map[string]bool
	next    func(n int) []protocol.Command
}

func (c *scriptedClient) RegisterAgent(context.Context, string, string) (string, error) {
	if c.registerErr != nil {
		return "", c.registerErr
	}
	return "agent-1", nil
}

func (c *scriptedClient) Heartbeat(_ context.Context, _ string, runStates map[string]bool) ([]protocol.Command, error) {
	c.mu.Lock()
	n := c.beats
	c.beats++
	c.reports = append(c.reports, runStates)
	next := c.next
	c.mu.Unlock()
	if next == nil {
		return nil, nil
	}
	return next(n), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		Heartbeat: heartbeat.Config{
			SweepID:        "s-1",
			Host:           "test-host",
			Interval:       5 * time.Millisecond,
			MaxAttempts:    1,
			InitialBackoff: time.Millisecond,
		},
		Dispatch: dispatch.Config{
			URI:            "/work/project",
			DequeueTimeout: 5 * time.Millisecond,
		},
		QueueCapacity: 16,
	}
}

func openDB(t *testing.T) (*launch.LocalQueue, *state.Store) {
	t.Helper()
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return launch.NewLocalQueue(db, "", ""), state.NewStore(db, "s-1")
}

func historyStates(t *testing.T, st *state.Store, runID string) []runstate.State {
	t.Helper()
	rows, err := st.History(context.Background(), runID)
	require.NoError(t, err)
	out := make([]runstate.State, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.To)
	}
	return out
}

func runController(t *testing.T, c *Controller, ctx context.Context) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not stop")
		return nil
	}
}

func TestControllerRunStopExit(t *testing.T) {
	lq, journal := openDB(t)
	hub := events.NewHub(256)

	var c *Controller
	client := &scriptedClient{}
	phase := 0
	client.next = func(int) []protocol.Command {
		switch phase {
		case 0:
			phase = 1
			return []protocol.Command{
				{Type: protocol.CommandRun, RunID: "r1", Args: map[string]any{"lr": map[string]any{"value": 0.1}}},
				{Type: protocol.CommandRun, RunID: "r2", Args: map[string]any{"epochs": 3}},
			}
		case 1:
			s1, _ := c.Table().Get("r1")
			s2, _ := c.Table().Get("r2")
			if s1 == runstate.Running && s2 == runstate.Running {
				phase = 2
				return []protocol.Command{{Type: protocol.CommandStop, RunID: "r2"}}
			}
		case 2:
			phase = 3
			return []protocol.Command{{Type: protocol.CommandExit}}
		}
		return nil
	}

	c = New(testConfig(), client, lq, testLogger(),
		WithEvents(hub), WithMetrics(metrics.New()), WithJournal(journal))

	require.NoError(t, runController(t, c, context.Background()))

	assert.Equal(t, []runstate.State{runstate.Queued, runstate.Running, runstate.Stopped}, historyStates(t, journal, "r1"))
	assert.Equal(t, []runstate.State{runstate.Queued, runstate.Running, runstate.Stopped}, historyStates(t, journal, "r2"))

	jobs, err := lq.List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	byRun := map[string]*launch.Job{}
	for _, j := range jobs {
		byRun[j.RunID] = j
	}
	assert.Equal(t, []string{"--lr=0.1"}, byRun["r1"].Spec.Overrides.Args)
	assert.Equal(t, []string{"--epochs=3"}, byRun["r2"].Spec.Overrides.Args)
	assert.Equal(t, launch.StatusKilled, byRun["r1"].Status)
	assert.Equal(t, launch.StatusKilled, byRun["r2"].Status)

	var transitions, exits int
	for _, ev := range hub.SnapshotSince(0) {
		switch ev.Type {
		case events.TypeRunTransition:
			transitions++
		case events.TypeControllerExited:
			exits++
		}
	}
	assert.Equal(t, 6, transitions)
	assert.Equal(t, 1, exits)
}

func TestControllerReportsLiveRuns(t *testing.T) {
	lq, _ := openDB(t)
	client := &scriptedClient{}
	client.next = func(n int) []protocol.Command {
		switch n {
		case 0:
			return []protocol.Command{{Type: protocol.CommandRun, RunID: "r1"}}
		case 5:
			return []protocol.Command{{Type: protocol.CommandExit}}
		}
		return nil
	}

	c := New(testConfig(), client, lq, testLogger())
	require.NoError(t, runController(t, c, context.Background()))

	client.mu.Lock()
	defer client.mu.Unlock()
	require.GreaterOrEqual(t, len(client.reports), 6)
	assert.Empty(t, client.reports[0])
	assert.Equal(t, map[string]bool{"r1": true}, client.reports[5])
}

func TestControllerStopsOnCancel(t *testing.T) {
	lq, _ := openDB(t)
	c := New(testConfig(), &scriptedClient{}, lq, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)
	require.NoError(t, runController(t, c, ctx))
}

func TestControllerNilLoggerUsesDefault(t *testing.T) {
	lq, _ := openDB(t)
	var c *Controller
	require.NotPanics(t, func() {
		c = New(testConfig(), &scriptedClient{}, lq, nil)
	})
	assert.Equal(t, 16, c.Queue().Cap())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)
	require.NoError(t, runController(t, c, ctx))
}

func TestControllerRegisterFailure(t *testing.T) {
	lq, _ := openDB(t)
	client := &scriptedClient{registerErr: &heartbeat.RPCError{Op: "register", StatusCode: 500, Err: errors.New("boom")}}
	c := New(testConfig(), client, lq, testLogger())

	err := runController(t, c, context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, heartbeat.ErrRPC)
}

func TestControllerServiceFailureStopsAll(t *testing.T) {
	lq, _ := openDB(t)
	boom := errors.New("listen tcp: address already in use")
	c := New(testConfig(), &scriptedClient{}, lq, testLogger(),
		WithService(func(context.Context) error { return boom }))

	err := runController(t, c, context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestControllerServiceStopsOnExit(t *testing.T) {
	lq, _ := openDB(t)
	client := &scriptedClient{next: func(int) []protocol.Command {
		return []protocol.Command{{Type: protocol.CommandExit}}
	}}
	stopped := make(chan struct{})
	c := New(testConfig(), client, lq, testLogger(),
		WithService(func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		}))

	require.NoError(t, runController(t, c, context.Background()))
	select {
	case <-stopped:
	default:
		t.Fatal("service still running after EXIT")
	}
}
