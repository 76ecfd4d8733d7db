package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/launchbridge/internal/metrics"
	"github.com/mattjoyce/launchbridge/internal/queue"
	"github.com/mattjoyce/launchbridge/internal/runstate"
	"github.com/mattjoyce/launchbridge/internal/state"
)

type fakeJournal struct {
	rows    []state.RunRow
	history map[string][]state.TransitionRow
	err     error
}

func (f *fakeJournal) Get(_ context.Context, runID string) (*state.RunRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.rows {
		if r.RunID == runID {
			r := r
			return &r, nil
		}
	}
	return nil, state.ErrRunNotFound
}

func (f *fakeJournal) List(context.Context) ([]state.RunRow, error) {
	return f.rows, f.err
}

func (f *fakeJournal) History(_ context.Context, runID string) ([]state.TransitionRow, error) {
	return f.history[runID], f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, deps Deps) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(Config{SweepID: "s-1"}, deps, testLogger()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	table := runstate.NewTable()
	require.NoError(t, table.Set("a", runstate.Queued))
	require.NoError(t, table.Set("b", runstate.Queued))
	require.NoError(t, table.Set("b", runstate.Running))
	q := queue.New(4)
	require.NoError(t, q.Push(context.Background(), queue.RunRecord{Kind: queue.KindRun, ID: "a"}))

	srv := newTestServer(t, Deps{Table: table, Queue: q})

	var resp HealthzResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/healthz", &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "s-1", resp.SweepID)
	assert.Equal(t, 1, resp.QueueDepth)
	assert.Equal(t, 4, resp.QueueCapacity)
	assert.Equal(t, map[string]int{"QUEUED": 1, "RUNNING": 1}, resp.Runs)
}

func TestListRunsMergesTableOverJournal(t *testing.T) {
	table := runstate.NewTable()
	require.NoError(t, table.Set("r2", runstate.Queued))
	require.NoError(t, table.Set("r2", runstate.Running))
	journal := &fakeJournal{rows: []state.RunRow{
		{RunID: "r1", State: runstate.Errored, UpdatedAt: time.Unix(100, 0).UTC()},
		{RunID: "r2", State: runstate.Queued, UpdatedAt: time.Unix(200, 0).UTC()},
	}}

	srv := newTestServer(t, Deps{Table: table, Journal: journal})

	var resp ListRunsResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/runs", &resp))
	require.Len(t, resp.Runs, 2)
	assert.Equal(t, "r1", resp.Runs[0].RunID)
	assert.Equal(t, "ERRORED", resp.Runs[0].State)
	assert.False(t, resp.Runs[0].Live)
	assert.Equal(t, "r2", resp.Runs[1].RunID)
	assert.Equal(t, "RUNNING", resp.Runs[1].State)
	assert.True(t, resp.Runs[1].Live)
	require.NotNil(t, resp.Runs[1].UpdatedAt)
}

func TestListRunsJournalError(t *testing.T) {
	srv := newTestServer(t, Deps{Journal: &fakeJournal{err: errors.New("disk I/O error")}})

	var resp ErrorResponse
	assert.Equal(t, http.StatusInternalServerError, getJSON(t, srv.URL+"/runs", &resp))
	assert.Equal(t, "failed to list runs", resp.Error)
}

func TestGetRun(t *testing.T) {
	journal := &fakeJournal{
		rows: []state.RunRow{{RunID: "r1", State: runstate.Stopped, UpdatedAt: time.Unix(300, 0).UTC()}},
		history: map[string][]state.TransitionRow{"r1": {
			{Seq: 1, RunID: "r1", To: runstate.Queued, At: time.Unix(100, 0).UTC()},
			{Seq: 2, RunID: "r1", From: runstate.Queued, To: runstate.Stopped, At: time.Unix(300, 0).UTC()},
		}},
	}
	srv := newTestServer(t, Deps{Table: runstate.NewTable(), Journal: journal})

	var resp RunDetailResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/runs/r1", &resp))
	assert.Equal(t, "STOPPED", resp.State)
	require.Len(t, resp.History, 2)
	assert.Equal(t, "", resp.History[0].From)
	assert.Equal(t, "QUEUED", resp.History[0].To)
	assert.Equal(t, "STOPPED", resp.History[1].To)

	var notFound ErrorResponse
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/runs/missing", &notFound))
	assert.Equal(t, "run not found", notFound.Error)
}

func TestGetRunFromTableOnly(t *testing.T) {
	table := runstate.NewTable()
	require.NoError(t, table.Set("r9", runstate.Queued))
	srv := newTestServer(t, Deps{Table: table})

	var resp RunDetailResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/runs/r9", &resp))
	assert.Equal(t, "QUEUED", resp.State)
	assert.True(t, resp.Live)
	assert.Empty(t, resp.History)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.Heartbeat(true)
	srv := newTestServer(t, Deps{Metrics: m.Handler()})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "launchbridge_heartbeats_total")
}

func TestMetricsDisabled(t *testing.T) {
	srv := newTestServer(t, Deps{})
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
