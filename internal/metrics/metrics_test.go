package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/launchbridge/internal/runstate"
)

func TestObserveTransitionTracksGauge(t *testing.T) {
	m := New()
	table := runstate.NewTable(m.ObserveTransition)

	require.NoError(t, table.Set("r1", runstate.Queued))
	require.NoError(t, table.Set("r2", runstate.Queued))
	require.True(t, table.CompareAndSet("r1", runstate.Queued, runstate.Running))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("QUEUED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("RUNNING")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("QUEUED")))

	table.StopAll()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.runs.WithLabelValues("QUEUED")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.runs.WithLabelValues("RUNNING")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("STOPPED")))
}

func TestCounters(t *testing.T) {
	m := New()
	m.Heartbeat(true)
	m.Heartbeat(false)
	m.Heartbeat(false)
	m.Command("run")
	m.Submission(false)
	m.Build("push_failed")
	m.SetQueueDepth(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.heartbeats.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.heartbeats.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("run")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.builds.WithLabelValues("push_failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueDepth))
}

func TestHandlerServesExposition(t *testing.T) {
	m := New()
	m.Heartbeat(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `launchbridge_heartbeats_total{result="ok"} 1`))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Heartbeat(true)
	m.Command("stop")
	m.ObserveTransition(runstate.Transition{RunID: "r1", To: runstate.Queued, At: time.Now()})
	m.Submission(true)
	m.Build("ok")
	m.SetQueueDepth(1)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
