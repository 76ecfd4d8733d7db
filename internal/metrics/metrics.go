// Package metrics exposes controller and builder counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattjoyce/launchbridge/internal/runstate"
)

const namespace = "launchbridge"

// Metrics holds the collectors. All methods are safe on a nil receiver so
// components can run without metrics wired.
type Metrics struct {
	registry *prometheus.Registry

	heartbeats  *prometheus.CounterVec
	commands    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	runs        *prometheus.GaugeVec
	submissions *prometheus.CounterVec
	builds      *prometheus.CounterVec
	queueDepth  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Heartbeat RPCs by result.",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Sweep commands received by type.",
		}, []string{"type"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_transitions_total",
			Help:      "Accepted run state transitions by target state.",
		}, []string{"to"}),
		runs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs",
			Help:      "Runs currently tracked, by state.",
		}, []string{"state"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launch_submissions_total",
			Help:      "Launch queue submissions by result.",
		}, []string{"result"}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_builds_total",
			Help:      "Image build pipeline outcomes.",
		}, []string{"result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "launch_queue_depth",
			Help:      "Run records waiting for the dispatcher.",
		}),
	}
	m.registry.MustRegister(
		m.heartbeats, m.commands, m.transitions, m.runs,
		m.submissions, m.builds, m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Heartbeat(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.heartbeats.WithLabelValues(result).Inc()
}

func (m *Metrics) Command(kind string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind).Inc()
}

// ObserveTransition is a runstate.Observer keeping the per-state gauge and
// transition counter current.
func (m *Metrics) ObserveTransition(tr runstate.Transition) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(tr.To)).Inc()
	if tr.From != "" {
		m.runs.WithLabelValues(string(tr.From)).Dec()
	}
	m.runs.WithLabelValues(string(tr.To)).Inc()
}

func (m *Metrics) Submission(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.submissions.WithLabelValues(result).Inc()
}

// Build counts a build pipeline outcome: "ok", "build_failed" or "push_failed".
func (m *Metrics) Build(result string) {
	if m == nil {
		return
	}
	m.builds.WithLabelValues(result).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
