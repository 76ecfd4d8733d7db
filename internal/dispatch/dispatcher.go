package dispatch

import (
	"context"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/mattjoyce/launchbridge/internal/events"
	"github.com/mattjoyce/launchbridge/internal/launch"
	"github.com/mattjoyce/launchbridge/internal/metrics"
	"github.com/mattjoyce/launchbridge/internal/queue"
	"github.com/mattjoyce/launchbridge/internal/redact"
	"github.com/mattjoyce/launchbridge/internal/runstate"
)

// DefaultDequeueTimeout bounds each wait on the run queue.
const DefaultDequeueTimeout = 5 * time.Second

// Config controls how run specs are built and how long the loop waits for
// work.
type Config struct {
	// URI is the project location submitted with every run. Defaults to the
	// working directory.
	URI string
	// Resource is the launch target. Defaults to launch.ResourceLocalProcess.
	Resource       string
	DequeueTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.URI == "" {
		if wd, err := os.Getwd(); err == nil {
			c.URI = wd
		} else {
			c.URI = "."
		}
	}
	if c.Resource == "" {
		c.Resource = launch.ResourceLocalProcess
	}
	if c.DequeueTimeout <= 0 {
		c.DequeueTimeout = DefaultDequeueTimeout
	}
	return c
}

// Dispatcher drains the run queue and submits runs to a launch queue.
type Dispatcher struct {
	cfg       Config
	queue     *queue.Queue
	table     *runstate.Table
	submitter launch.Submitter
	events    events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// mu guards handles and orders handle bookkeeping against
	// QUEUED -> RUNNING promotion.
	mu      sync.Mutex
	handles map[string]launch.Handle
}

// Option configures optional Dispatcher collaborators.
type Option func(*Dispatcher)

func WithEvents(p events.Publisher) Option { return func(d *Dispatcher) { d.events = p } }

func WithMetrics(m *metrics.Metrics) Option { return func(d *Dispatcher) { d.metrics = m } }

// New creates a Dispatcher.
func New(cfg Config, q *queue.Queue, table *runstate.Table, sub launch.Submitter, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		cfg:       cfg.withDefaults(),
		queue:     q,
		table:     table,
		submitter: sub,
		logger:    logger.With("component", "dispatch"),
		handles:   make(map[string]launch.Handle),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.events == nil {
		d.events = (*events.Hub)(nil)
	}
	return d
}

// Start runs the dispatch loop until ctx is cancelled. Records are handled
// one at a time in queue order.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("dispatch loop started", "uri", d.cfg.URI, "resource", d.cfg.Resource)
	defer d.logger.Info("dispatch loop stopped")

	for {
		rec, ok, err := d.queue.Pop(ctx, d.cfg.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if !ok {
			d.logger.Debug("launch queue empty")
			d.reconcile(ctx)
			continue
		}
		d.metrics.SetQueueDepth(d.queue.Len())
		d.dispatch(ctx, rec)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, rec queue.RunRecord) {
	logger := d.logger.With("run_id", rec.ID, "type", rec.Kind)

	if s, ok := d.table.Get(rec.ID); !ok || s != runstate.Queued {
		logger.Info("discarding run that is no longer queued", "state", s)
		d.events.Publish(events.TypeRunDiscarded, map[string]any{
			"run_id": rec.ID,
			"state":  s,
		})
		return
	}

	spec := launch.RunSpec{
		URI:      d.cfg.URI,
		Resource: d.cfg.Resource,
		Overrides: launch.Overrides{
			Args:       CommandArgs(rec.Config),
			EntryPoint: "",
		},
		RunID: rec.ID,
	}

	h, err := d.submitter.Submit(ctx, spec)
	if err != nil {
		d.metrics.Submission(false)
		logger.Error("failed to submit run", "error", err)
		if serr := d.table.Set(rec.ID, runstate.Errored); serr != nil {
			logger.Debug("run left as is after failed submission", "error", serr)
		}
		d.events.Publish(events.TypeRunSubmitFailed, map[string]any{
			"run_id": rec.ID,
			"error":  err.Error(),
		})
		return
	}
	d.metrics.Submission(true)

	d.mu.Lock()
	promoted := d.table.CompareAndSet(rec.ID, runstate.Queued, runstate.Running)
	if promoted {
		d.handles[rec.ID] = h
	}
	d.mu.Unlock()

	if !promoted {
		// Stopped while the submission was in flight. EXIT cancels ctx, so the
		// kill must outlive it.
		if d.kill(context.WithoutCancel(ctx), rec.ID, h) {
			logger.Info("run stopped during submission, killed launch job", "job_id", h.ID())
		}
		return
	}

	args := redact.Args(spec.Overrides.Args)
	logger.Info("submitted run", "job_id", h.ID(), "args", args)
	d.events.Publish(events.TypeRunSubmitted, map[string]any{
		"run_id":   rec.ID,
		"job_id":   h.ID(),
		"uri":      spec.URI,
		"resource": spec.Resource,
		"args":     args,
	})
}

// KillRun kills the launch job recorded for runID, if any. It reports whether
// a job was held; each job is killed at most once, so later calls return
// false. The kill is not cut short when ctx is cancelled.
func (d *Dispatcher) KillRun(ctx context.Context, runID string) bool {
	d.mu.Lock()
	h, ok := d.handles[runID]
	if ok {
		delete(d.handles, runID)
	}
	d.mu.Unlock()
	if !ok {
		return false
	}

	d.kill(context.WithoutCancel(ctx), runID, h)
	return true
}

// kill kills h and publishes run.killed only when the kill succeeded.
func (d *Dispatcher) kill(ctx context.Context, runID string, h launch.Handle) bool {
	if err := h.Kill(ctx); err != nil {
		d.logger.Warn("failed to kill launch job", "run_id", runID, "job_id", h.ID(), "error", err)
		return false
	}
	d.events.Publish(events.TypeRunKilled, map[string]any{
		"run_id": runID,
		"job_id": h.ID(),
	})
	return true
}

// Tracked returns the run ids with a live launch handle, sorted.
func (d *Dispatcher) Tracked() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Sorted(maps.Keys(d.handles))
}

// reconcile polls each held handle and settles runs whose launch job has
// finished.
func (d *Dispatcher) reconcile(ctx context.Context) {
	d.mu.Lock()
	held := maps.Clone(d.handles)
	d.mu.Unlock()

	for _, runID := range slices.Sorted(maps.Keys(held)) {
		h := held[runID]
		st, err := h.Status(ctx)
		if err != nil {
			d.logger.Warn("failed to read launch job status", "run_id", runID, "job_id", h.ID(), "error", err)
			continue
		}

		var next runstate.State
		switch st {
		case launch.StatusSucceeded:
			next = runstate.Done
		case launch.StatusFailed:
			next = runstate.Errored
		case launch.StatusKilled:
			next = runstate.Stopped
		default:
			continue
		}

		d.mu.Lock()
		if cur, ok := d.handles[runID]; !ok || cur != h {
			d.mu.Unlock()
			continue
		}
		settled := d.table.CompareAndSet(runID, runstate.Running, next)
		delete(d.handles, runID)
		d.mu.Unlock()

		if settled {
			d.logger.Info("launch job finished", "run_id", runID, "job_id", h.ID(), "status", st, "state", next)
		}
	}
}
