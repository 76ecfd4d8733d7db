package watch

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/launchbridge/internal/api"
	"github.com/mattjoyce/launchbridge/internal/runstate"
)

func TestFetchRuns(t *testing.T) {
	table := runstate.NewTable()
	require.NoError(t, table.Set("run-a", runstate.Queued))
	srv := httptest.NewServer(api.New(api.Config{SweepID: "s-1"}, api.Deps{Table: table},
		slog.New(slog.NewTextHandler(io.Discard, nil))).Handler())
	t.Cleanup(srv.Close)

	msg := fetchRuns(srv.URL)
	runs, ok := msg.(runsMsg)
	require.True(t, ok, "got %T: %v", msg, msg)
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, "run-a", runs.Runs[0].RunID)

	srv.Close()
	msg = fetchRuns(srv.URL)
	_, isErr := msg.(errMsg)
	assert.True(t, isErr)
}

func TestFetchHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok","sweep_id":"s-1","queue_depth":2}`))
	}))
	t.Cleanup(srv.Close)

	msg := fetchHealth(srv.URL)
	h, ok := msg.(healthMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, "s-1", h.SweepID)
	assert.Equal(t, 2, h.QueueDepth)
}
