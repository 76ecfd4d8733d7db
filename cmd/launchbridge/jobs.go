package main

import (
	"database/sql"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/launchbridge/internal/launch"
)

func newJobsCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Work the local launch queue",
		Long: `jobs lists, claims and completes entries of the local launch queue. An
agent claims a queued job, runs it, and reports the outcome with complete.`,
	}
	cmd.AddCommand(newJobsListCommand(g))
	cmd.AddCommand(newJobsClaimCommand(g))
	cmd.AddCommand(newJobsCompleteCommand(g))
	return cmd
}

func newJobsListCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List launch jobs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			return withStateDB(ctx, cfg, func(db *sql.DB) error {
				jobs, err := launch.NewLocalQueue(db, cfg.Launch.Queue, "").List(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No launch jobs.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tRUN\tSTATUS\tRESOURCE\tCREATED")
				for _, j := range jobs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.RunID, j.Status, j.Spec.Resource, j.CreatedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
}

func newJobsClaimCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Claim the oldest queued job and print its command line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			return withStateDB(ctx, cfg, func(db *sql.DB) error {
				job, err := launch.NewLocalQueue(db, cfg.Launch.Queue, "").Claim(ctx)
				if err != nil {
					return err
				}
				if job == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No queued jobs.")
					return nil
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job: %s\n", job.ID)
				fmt.Fprintf(out, "Run: %s\n", job.RunID)
				fmt.Fprintf(out, "URI: %s\n", job.Spec.URI)
				fmt.Fprintf(out, "Args: %s\n", strings.Join(job.Spec.Overrides.Args, " "))
				return nil
			})
		},
	}
}

func newJobsCompleteCommand(g *globalFlags) *cobra.Command {
	var status, lastError string
	cmd := &cobra.Command{
		Use:   "complete <job-id>",
		Short: "Record the outcome of a claimed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := launch.Status(status)
			if !st.Terminal() {
				return fmt.Errorf("--status must be succeeded, failed or killed, got %q", status)
			}
			cfg, err := g.load()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			return withStateDB(ctx, cfg, func(db *sql.DB) error {
				var errPtr *string
				if lastError != "" {
					errPtr = &lastError
				}
				if err := launch.NewLocalQueue(db, cfg.Launch.Queue, "").Complete(ctx, args[0], st, errPtr); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s: %s\n", args[0], st)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", string(launch.StatusSucceeded), "Terminal status: succeeded, failed or killed")
	cmd.Flags().StringVar(&lastError, "error", "", "Failure message to record")
	return cmd
}
