// Package launch describes the generalized launch queue that receives runs
// promoted from a sweep, and provides a SQLite-backed local implementation.
package launch

import (
	"context"
	"errors"
	"time"
)

//go:generate mockgen -destination=mocks/mock_launch.go -package=mocks github.com/mattjoyce/launchbridge/internal/launch Submitter,Handle

// ResourceLocalProcess is the default target resource for promoted runs.
const ResourceLocalProcess = "local-process"

// RunSpec is the launch specification submitted for a promoted run.
type RunSpec struct {
	URI       string    `json:"uri"`
	Resource  string    `json:"resource"`
	Overrides Overrides `json:"overrides"`
	// RunID links the launch job back to the sweep run. Not part of the
	// launch spec proper.
	RunID string `json:"-"`
}

// Overrides carries the resolved command line for a run.
type Overrides struct {
	Args       []string `json:"args"`
	EntryPoint string   `json:"entry_point"`
}

// Status is the lifecycle of a launch job as seen by the launch queue.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusKilled    Status = "killed"
)

// Terminal reports whether the job has finished.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusKilled
}

// Handle refers to a submitted launch job.
type Handle interface {
	ID() string
	// Kill requests cancellation. Best effort: the job may already be done.
	Kill(ctx context.Context) error
	Status(ctx context.Context) (Status, error)
}

// Submitter accepts run specs into a launch queue.
type Submitter interface {
	Submit(ctx context.Context, spec RunSpec) (Handle, error)
}

// Job is a launch queue entry.
type Job struct {
	ID          string
	Queue       string
	RunID       string
	Spec        RunSpec
	Status      Status
	SubmittedBy string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	LastError   *string
}

var ErrJobNotFound = errors.New("launch job not found")
