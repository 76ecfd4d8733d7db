// Package dispatch promotes queued sweep runs into the launch queue.
//
// The dispatcher drains the in-process run queue filled by the heartbeat
// poller. For every record it:
//   - discards runs that are no longer QUEUED (stopped or finished meanwhile)
//   - builds a launch.RunSpec from the run config (see CommandArgs)
//   - submits it and moves the run QUEUED -> RUNNING
//   - keeps the launch handle so STOP can kill the job later
//
// The QUEUED -> RUNNING move and recording of the handle happen under the
// same mutex KillRun takes, so a job is killed exactly once no matter how a
// STOP interleaves with submission. If the STOP wins, the dispatcher kills
// the job it just submitted.
//
// Idle dequeue timeouts are used to reconcile handles: finished launch jobs
// move the run to DONE, ERRORED or STOPPED and the handle is released.
package dispatch
