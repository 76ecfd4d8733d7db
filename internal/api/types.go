package api

import "time"

// RunResponse is one entry of GET /runs.
type RunResponse struct {
	RunID     string     `json:"run_id"`
	State     string     `json:"state"`
	Live      bool       `json:"live"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TransitionResponse is one journaled state change.
type TransitionResponse struct {
	From string    `json:"from,omitempty"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// RunDetailResponse is returned by GET /runs/{run_id}.
type RunDetailResponse struct {
	RunResponse
	History []TransitionResponse `json:"history"`
}

// ListRunsResponse is returned by GET /runs.
type ListRunsResponse struct {
	SweepID string        `json:"sweep_id,omitempty"`
	Runs    []RunResponse `json:"runs"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string         `json:"status"`
	SweepID       string         `json:"sweep_id,omitempty"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	QueueDepth    int            `json:"queue_depth"`
	QueueCapacity int            `json:"queue_capacity"`
	Runs          map[string]int `json:"runs"`
}
