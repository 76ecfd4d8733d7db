package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mattjoyce/launchbridge/internal/events"
	"github.com/mattjoyce/launchbridge/internal/metrics"
	"github.com/mattjoyce/launchbridge/internal/protocol"
	"github.com/mattjoyce/launchbridge/internal/queue"
	"github.com/mattjoyce/launchbridge/internal/runstate"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 3
)

// Config controls a Poller.
type Config struct {
	SweepID string
	// Host is the agent label reported at registration. Defaults to the
	// machine hostname.
	Host     string
	Interval time.Duration
	// MaxAttempts bounds the tries per heartbeat, first call included.
	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		if h, err := os.Hostname(); err == nil {
			c.Host = h
		} else {
			c.Host = "localhost"
		}
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = c.Interval
	}
	return c
}

// Poller periodically reports run liveness to the backend and applies the
// commands it gets back: RUN and RESUME are queued for the dispatcher, STOP
// and EXIT stop runs.
type Poller struct {
	cfg     Config
	client  Client
	table   *runstate.Table
	queue   *queue.Queue
	killer  RunKiller
	events  events.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger

	agentID string
}

// Option configures optional Poller collaborators.
type Option func(*Poller)

func WithEvents(p events.Publisher) Option { return func(pl *Poller) { pl.events = p } }

func WithMetrics(m *metrics.Metrics) Option { return func(pl *Poller) { pl.metrics = m } }

func NewPoller(cfg Config, client Client, table *runstate.Table, q *queue.Queue, killer RunKiller, logger *slog.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		cfg:    cfg.withDefaults(),
		client: client,
		table:  table,
		queue:  q,
		killer: killer,
		logger: logger.With("component", "heartbeat", "sweep_id", cfg.SweepID),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.events == nil {
		p.events = (*events.Hub)(nil)
	}
	return p
}

// AgentID returns the id assigned at registration, or "" before Register.
func (p *Poller) AgentID() string {
	return p.agentID
}

// Register announces this controller to the backend.
func (p *Poller) Register(ctx context.Context) error {
	id, err := p.client.RegisterAgent(ctx, p.cfg.Host, p.cfg.SweepID)
	if err != nil {
		return asRPCError("register", err)
	}
	if id == "" {
		return &RPCError{Op: "register", Err: errors.New("backend returned an empty agent id")}
	}
	p.agentID = id
	p.logger.Info("Registered agent", "agent_id", id, "host", p.cfg.Host)
	p.events.Publish(events.TypeAgentRegistered, map[string]any{
		"agent_id": id,
		"host":     p.cfg.Host,
		"sweep_id": p.cfg.SweepID,
	})
	return nil
}

// Run beats immediately and then once per interval until ctx is done or the
// backend sends EXIT. It returns nil in both cases.
func (p *Poller) Run(ctx context.Context) error {
	if p.agentID == "" {
		if err := p.Register(ctx); err != nil {
			return fmt.Errorf("register agent: %w", err)
		}
	}

	if p.beat(ctx) {
		return nil
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if p.beat(ctx) {
				return nil
			}
		case <-ctx.Done():
			p.logger.Info("Heartbeat loop stopped")
			return nil
		}
	}
}

// beat performs one heartbeat and applies the returned commands in order.
// It reports whether EXIT was received.
func (p *Poller) beat(ctx context.Context) bool {
	report := p.table.LivenessReport()
	p.logger.Debug("Sending heartbeat", "live_runs", len(report))

	cmds, err := p.heartbeat(ctx, report)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.metrics.Heartbeat(false)
		p.logger.Error("Heartbeat failed", "error", err)
		p.events.Publish(events.TypeHeartbeatFailed, map[string]any{
			"agent_id": p.agentID,
			"error":    err.Error(),
		})
		return false
	}
	p.metrics.Heartbeat(true)
	p.events.Publish(events.TypeHeartbeatOK, map[string]any{
		"agent_id": p.agentID,
		"live":     len(report),
		"commands": len(cmds),
	})

	for _, cmd := range cmds {
		if p.apply(ctx, cmd) {
			return true
		}
	}
	return false
}

func (p *Poller) heartbeat(ctx context.Context, report map[string]bool) ([]protocol.Command, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialBackoff
	b.MaxInterval = p.cfg.MaxBackoff

	op := func() ([]protocol.Command, error) {
		cmds, err := p.client.Heartbeat(ctx, p.agentID, report)
		if err == nil {
			return cmds, nil
		}
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && !rpcErr.Retryable() {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	cmds, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.cfg.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.logger.Warn("Heartbeat attempt failed, retrying", "error", err, "retry_in", next)
		}),
	)
	if err != nil {
		return nil, asRPCError("heartbeat", err)
	}
	return cmds, nil
}

// apply handles one command and reports whether it was EXIT.
func (p *Poller) apply(ctx context.Context, cmd protocol.Command) bool {
	kind, err := queue.ParseKind(cmd.Type)
	if err != nil {
		p.logger.Warn("Skipping unknown command", "type", cmd.Type, "run_id", cmd.RunID)
		p.reject(cmd, "unknown command type")
		return false
	}
	p.metrics.Command(string(kind))
	p.events.Publish(events.TypeCommandReceived, map[string]any{
		"type":   cmd.Type,
		"run_id": cmd.RunID,
	})

	switch kind {
	case queue.KindRun, queue.KindResume:
		p.promote(ctx, kind, cmd)
	case queue.KindStop:
		p.stop(ctx, cmd.RunID)
	case queue.KindExit:
		p.exit(ctx)
		return true
	}
	return false
}

func (p *Poller) promote(ctx context.Context, kind queue.Kind, cmd protocol.Command) {
	logger := p.logger.With("run_id", cmd.RunID, "type", kind)

	if cur, ok := p.table.Get(cmd.RunID); ok && cur == runstate.Queued {
		logger.Info("Run already queued, ignoring duplicate command")
		return
	}
	// The state is written before the push so the dispatcher never sees a
	// record for an untracked run.
	if err := p.table.Set(cmd.RunID, runstate.Queued); err != nil {
		logger.Warn("Rejected stale run command", "error", err)
		p.reject(cmd, err.Error())
		return
	}

	rec := queue.RunRecord{Kind: kind, ID: cmd.RunID, Config: cmd.Args}
	if err := p.queue.Push(ctx, rec); err != nil {
		logger.Error("Failed to queue run", "error", err)
		return
	}
	p.metrics.SetQueueDepth(p.queue.Len())
	logger.Info("Queued run for launch")
}

func (p *Poller) stop(ctx context.Context, runID string) {
	logger := p.logger.With("run_id", runID)

	if err := p.table.Set(runID, runstate.Stopped); err != nil {
		logger.Info("Stop ignored for finished run", "error", err)
	}
	if p.killer.KillRun(ctx, runID) {
		logger.Info("Stopped run and killed launch job")
		return
	}
	logger.Info("Stopped run")
}

func (p *Poller) exit(ctx context.Context) {
	ids := p.table.StopAll()
	for _, id := range ids {
		p.killer.KillRun(ctx, id)
	}
	p.logger.Info("Received exit, stopped live runs", "stopped", len(ids))
	p.events.Publish(events.TypeControllerExited, map[string]any{
		"agent_id": p.agentID,
		"stopped":  ids,
	})
}

func (p *Poller) reject(cmd protocol.Command, reason string) {
	p.events.Publish(events.TypeCommandRejected, map[string]any{
		"type":   cmd.Type,
		"run_id": cmd.RunID,
		"reason": reason,
	})
}

func asRPCError(op string, err error) error {
	if errors.Is(err, ErrRPC) {
		return err
	}
	return &RPCError{Op: op, Err: err}
}
