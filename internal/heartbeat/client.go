// Package heartbeat talks to the legacy sweep backend: it registers this
// controller as an agent and turns heartbeat replies into run records.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mattjoyce/launchbridge/internal/protocol"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/mattjoyce/launchbridge/internal/heartbeat Client,RunKiller

// Client is the agent registration and heartbeat RPC surface of the sweep
// backend.
type Client interface {
	RegisterAgent(ctx context.Context, host, sweepID string) (string, error)
	Heartbeat(ctx context.Context, agentID string, runStates map[string]bool) ([]protocol.Command, error)
}

// RunKiller stops the launch job backing a run. It reports whether a job was
// actually killed.
type RunKiller interface {
	KillRun(ctx context.Context, runID string) bool
}

// ErrRPC classifies every transport or decoding failure of the backend RPC.
var ErrRPC = errors.New("heartbeat rpc failed")

// RPCError is a failed call to the sweep backend.
type RPCError struct {
	Op         string // register | heartbeat
	StatusCode int    // 0 when no HTTP response was received
	Body       string
	Err        error
}

func (e *RPCError) Error() string {
	msg := fmt.Sprintf("%s rpc failed", e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *RPCError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRPC}
	}
	return []error{ErrRPC, e.Err}
}

// Retryable reports whether repeating the call may succeed. Client errors
// other than 408 and 429 are not retried.
func (e *RPCError) Retryable() bool {
	if e.StatusCode == 0 || e.StatusCode >= 500 {
		return true
	}
	return e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests
}
