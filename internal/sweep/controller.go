// Package sweep runs one sweep's heartbeat poller and dispatcher as a unit.
//
// The poller and dispatcher share a run state table and a launch queue. They
// run under one errgroup context: when the poller returns (EXIT from the
// backend, or a fatal registration error) the context is cancelled and the
// dispatcher stops at its next dequeue.
package sweep

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/launchbridge/internal/dispatch"
	"github.com/mattjoyce/launchbridge/internal/events"
	"github.com/mattjoyce/launchbridge/internal/heartbeat"
	"github.com/mattjoyce/launchbridge/internal/launch"
	"github.com/mattjoyce/launchbridge/internal/metrics"
	"github.com/mattjoyce/launchbridge/internal/queue"
	"github.com/mattjoyce/launchbridge/internal/runstate"
)

// Recorder persists accepted run transitions.
type Recorder interface {
	Record(ctx context.Context, tr runstate.Transition) error
}

// Service is a long-running sidecar (status API, event forwarder) that
// lives as long as the controller.
type Service func(ctx context.Context) error

// Config combines the poller and dispatcher settings.
type Config struct {
	Heartbeat     heartbeat.Config
	Dispatch      dispatch.Config
	QueueCapacity int
}

// Controller owns the shared table and queue.
type Controller struct {
	table      *runstate.Table
	queue      *queue.Queue
	poller     *heartbeat.Poller
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger

	hub      *events.Hub
	metrics  *metrics.Metrics
	journal  Recorder
	services []Service
}

type Option func(*Controller)

func WithEvents(h *events.Hub) Option { return func(c *Controller) { c.hub = h } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Controller) { c.metrics = m } }

// WithJournal records every accepted transition.
func WithJournal(r Recorder) Option { return func(c *Controller) { c.journal = r } }

// WithService runs s alongside the poller and dispatcher.
func WithService(s Service) Option {
	return func(c *Controller) { c.services = append(c.services, s) }
}

// New wires a controller. client talks to the sweep backend and sub receives
// launch jobs.
func New(cfg Config, client heartbeat.Client, sub launch.Submitter, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		table:  runstate.NewTable(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.queue = queue.New(cfg.QueueCapacity)

	c.table.Observe(c.observe)
	if c.metrics != nil {
		c.table.Observe(c.metrics.ObserveTransition)
	}

	c.dispatcher = dispatch.New(cfg.Dispatch, c.queue, c.table, sub,
		logger.With("component", "dispatch"),
		dispatch.WithEvents(c.hub),
		dispatch.WithMetrics(c.metrics),
	)
	c.poller = heartbeat.NewPoller(cfg.Heartbeat, client, c.table, c.queue, c.dispatcher,
		logger.With("component", "heartbeat"),
		heartbeat.WithEvents(c.hub),
		heartbeat.WithMetrics(c.metrics),
	)
	return c
}

// AddService runs s alongside the poller and dispatcher. It must be called
// before Run.
func (c *Controller) AddService(s Service) {
	c.services = append(c.services, s)
}

// Table exposes the run state table for read-only consumers.
func (c *Controller) Table() *runstate.Table { return c.table }

// Queue exposes the launch queue for depth reporting.
func (c *Controller) Queue() *queue.Queue { return c.queue }

// Run registers with the backend and blocks until ctx is cancelled or the
// backend sends EXIT. Either way it returns nil unless a component failed.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.poller.Register(ctx); err != nil {
		return fmt.Errorf("register agent: %w", err)
	}
	c.logger.Info("sweep controller started", "agent_id", c.poller.AgentID())

	g, gctx := errgroup.WithContext(ctx)
	gctx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		if err := c.poller.Run(gctx); err != nil {
			return fmt.Errorf("heartbeat: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := c.dispatcher.Start(gctx); err != nil {
			return fmt.Errorf("dispatcher: %w", err)
		}
		return nil
	})
	for _, svc := range c.services {
		g.Go(func() error { return svc(gctx) })
	}

	err := g.Wait()
	c.logger.Info("sweep controller stopped", "tracked_handles", len(c.dispatcher.Tracked()))
	return err
}

// observe fans an accepted transition out to the journal and the hub. It
// runs under the table lock.
func (c *Controller) observe(tr runstate.Transition) {
	if c.journal != nil {
		if err := c.journal.Record(context.Background(), tr); err != nil {
			c.logger.Warn("run journal write failed", "run_id", tr.RunID, "to", tr.To, "error", err)
		}
	}
	c.hub.Publish(events.TypeRunTransition, map[string]any{
		"run_id": tr.RunID,
		"from":   string(tr.From),
		"to":     string(tr.To),
		"at":     tr.At,
	})
}
