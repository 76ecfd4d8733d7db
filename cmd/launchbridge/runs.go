package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/launchbridge/internal/config"
	"github.com/mattjoyce/launchbridge/internal/state"
	"github.com/mattjoyce/launchbridge/internal/storage"
	"github.com/mattjoyce/launchbridge/internal/tui/watch"
)

func newRunsCommand(g *globalFlags) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List journaled runs, or show one run's transitions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			return withStateDB(ctx, cfg, func(db *sql.DB) error {
				sweepID := cfg.Sweep.ID
				if all {
					sweepID = ""
				}
				store := state.NewStore(db, sweepID)
				if len(args) == 1 {
					return showRun(ctx, cmd.OutOrStdout(), store, args[0])
				}
				return listRuns(ctx, cmd.OutOrStdout(), store, all)
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include runs from every sweep")
	return cmd
}

func withStateDB(ctx context.Context, cfg *config.Config, fn func(*sql.DB) error) error {
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return fn(db)
}

func listRuns(ctx context.Context, out io.Writer, store *state.Store, withSweep bool) error {
	runs, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	theme := watch.NewDefaultTheme()
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if withSweep {
		fmt.Fprintln(w, "SWEEP\tRUN\tSTATE\tUPDATED")
	} else {
		fmt.Fprintln(w, "RUN\tSTATE\tUPDATED")
	}
	for _, r := range runs {
		st := theme.StateStyle(string(r.State)).Render(string(r.State))
		if withSweep {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.SweepID, r.RunID, st, r.UpdatedAt.Format(time.RFC3339))
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.RunID, st, r.UpdatedAt.Format(time.RFC3339))
		}
	}
	return w.Flush()
}

func showRun(ctx context.Context, out io.Writer, store *state.Store, runID string) error {
	run, err := store.Get(ctx, runID)
	if errors.Is(err, state.ErrRunNotFound) {
		return fmt.Errorf("run %q not found", runID)
	}
	if err != nil {
		return err
	}
	history, err := store.History(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run:     %s\n", run.RunID)
	fmt.Fprintf(out, "Sweep:   %s\n", run.SweepID)
	fmt.Fprintf(out, "State:   %s %s\n", watch.StateIcon(string(run.State)), run.State)
	fmt.Fprintf(out, "Updated: %s\n", run.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintln(out, "History:")
	for _, tr := range history {
		from := string(tr.From)
		if from == "" {
			from = "-"
		}
		fmt.Fprintf(out, "  %s  %s -> %s\n", tr.At.Format(time.RFC3339), from, tr.To)
	}
	return nil
}
