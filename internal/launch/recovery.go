package launch

import (
	"context"
	"fmt"
	"log/slog"
)

const orphanedMessage = "orphaned: sweep controller restarted"

// RecoverOrphans kills the jobs a previous controller with the same submitter
// left queued or running. The backend re-issues RUN or RESUME for runs it
// still wants, so keeping them would launch the same run twice.
func (q *LocalQueue) RecoverOrphans(ctx context.Context, logger *slog.Logger) (int, error) {
	jobs, err := q.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("find orphaned launch jobs: %w", err)
	}

	recovered := 0
	for _, job := range jobs {
		if job.Status.Terminal() || job.SubmittedBy != q.submittedBy {
			continue
		}
		logger.Warn("killing orphaned launch job",
			"job_id", job.ID,
			"run_id", job.RunID,
			"status", job.Status,
		)
		msg := orphanedMessage
		if err := q.Complete(ctx, job.ID, StatusKilled, &msg); err != nil {
			logger.Error("failed to kill orphaned launch job", "job_id", job.ID, "error", err)
			continue
		}
		recovered++
	}
	if recovered == 0 {
		logger.Debug("no orphaned launch jobs")
	}
	return recovered, nil
}
