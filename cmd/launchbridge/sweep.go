package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/launchbridge/internal/api"
	"github.com/mattjoyce/launchbridge/internal/bus"
	"github.com/mattjoyce/launchbridge/internal/config"
	"github.com/mattjoyce/launchbridge/internal/dispatch"
	"github.com/mattjoyce/launchbridge/internal/events"
	"github.com/mattjoyce/launchbridge/internal/heartbeat"
	"github.com/mattjoyce/launchbridge/internal/launch"
	"github.com/mattjoyce/launchbridge/internal/lock"
	"github.com/mattjoyce/launchbridge/internal/log"
	"github.com/mattjoyce/launchbridge/internal/metrics"
	"github.com/mattjoyce/launchbridge/internal/state"
	"github.com/mattjoyce/launchbridge/internal/storage"
	"github.com/mattjoyce/launchbridge/internal/sweep"
)

func newSweepCommand(g *globalFlags) *cobra.Command {
	var sweepID, backendURL string
	cmd := &cobra.Command{
		Use:     "sweep",
		Aliases: []string{"start"},
		Short:   "Run the sweep controller until the backend sends EXIT",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if sweepID != "" {
				cfg.Sweep.ID = sweepID
			}
			if backendURL != "" {
				cfg.Backend.URL = backendURL
			}
			return runSweep(commandContext(cmd), cfg)
		},
	}
	cmd.Flags().StringVar(&sweepID, "sweep-id", "", "Override sweep.id")
	cmd.Flags().StringVar(&backendURL, "backend", "", "Override backend.url")
	return cmd
}

func runSweep(ctx context.Context, cfg *config.Config) error {
	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithSweep(cfg.Sweep.ID)
	logger.Info("launchbridge starting", "version", currentVersionInfo().Version, "backend", cfg.Backend.URL)

	sweepLock, err := lock.AcquireSweepLock(cfg.LockDir(), cfg.Sweep.ID)
	if err != nil {
		return err
	}
	defer sweepLock.Release()
	logger.Info("acquired sweep lock", "path", sweepLock.Path())

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// The sweep lock is held, so unfinished jobs from this submitter belong
	// to a dead controller.
	lq := launch.NewLocalQueue(db, cfg.Launch.Queue, "launchbridge/"+cfg.Sweep.ID)
	if n, err := lq.RecoverOrphans(ctx, logger); err != nil {
		return err
	} else if n > 0 {
		logger.Warn("killed orphaned launch jobs", "count", n)
	}

	client, err := heartbeat.NewHTTPClient(cfg.Backend.URL, cfg.Backend.APIKey, cfg.Backend.Timeout)
	if err != nil {
		return err
	}

	hub := events.NewHub(cfg.Events.BufferSize)
	m := metrics.New()
	opts := []sweep.Option{
		sweep.WithEvents(hub),
		sweep.WithMetrics(m),
		sweep.WithJournal(state.NewStore(db, cfg.Sweep.ID)),
	}

	if cfg.Events.NATSURL != "" {
		b, err := bus.New(cfg.Events.NATSURL)
		if err != nil {
			return err
		}
		defer b.Close()
		if err := b.EnsureStream(bus.StreamName(cfg.Events.SubjectPrefix), cfg.Events.SubjectPrefix); err != nil {
			return err
		}
		fwdLogger := log.WithComponent("bus")
		opts = append(opts, sweep.WithService(func(ctx context.Context) error {
			return bus.Forward(ctx, hub, b, cfg.Events.SubjectPrefix, fwdLogger)
		}))
		logger.Info("event forwarding enabled", "nats_url", cfg.Events.NATSURL, "prefix", cfg.Events.SubjectPrefix)
	}

	controller := sweep.New(sweep.Config{
		Heartbeat: heartbeat.Config{
			SweepID:        cfg.Sweep.ID,
			Host:           cfg.Sweep.Host,
			Interval:       cfg.Backend.HeartbeatInterval,
			MaxAttempts:    cfg.Backend.Retry.MaxAttempts,
			InitialBackoff: cfg.Backend.Retry.BackoffBase,
			MaxBackoff:     cfg.Backend.Retry.BackoffMax,
		},
		Dispatch: dispatch.Config{
			URI:            cfg.Launch.URI,
			Resource:       cfg.Launch.Resource,
			DequeueTimeout: cfg.Dispatch.DequeueTimeout,
		},
		QueueCapacity: cfg.Dispatch.QueueCapacity,
	}, client, lq, logger, opts...)

	if cfg.API.Enabled {
		srv := api.New(api.Config{Listen: cfg.API.Listen, SweepID: cfg.Sweep.ID}, api.Deps{
			Table:   controller.Table(),
			Journal: state.NewStore(db, cfg.Sweep.ID),
			Queue:   controller.Queue(),
			Hub:     hub,
			Metrics: m.Handler(),
		}, log.WithComponent("api"))
		controller.AddService(srv.Start)
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	if err := controller.Run(ctx); err != nil {
		logger.Error("sweep controller failed", "error", err)
		return err
	}
	logger.Info("launchbridge stopped")
	return nil
}
