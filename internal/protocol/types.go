package protocol

// RegisterRequest registers this controller as an agent for a sweep.
type RegisterRequest struct {
	Host    string `json:"host"`
	SweepID string `json:"sweep_id"`
}

// RegisterResponse carries the agent id assigned by the backend.
type RegisterResponse struct {
	ID string `json:"id"`
}

// HeartbeatRequest reports which runs are still alive on this agent.
type HeartbeatRequest struct {
	RunStates map[string]bool `json:"run_states"`
}

// HeartbeatResponse carries zero or more commands for the agent.
type HeartbeatResponse struct {
	Commands []Command `json:"commands"`
}

// Command is one instruction from the sweep backend.
type Command struct {
	Type  string         `json:"type"` // run | resume | stop | exit
	RunID string         `json:"run_id,omitempty"`
	Args  map[string]any `json:"args,omitempty"`
}

const (
	CommandRun    = "run"
	CommandResume = "resume"
	CommandStop   = "stop"
	CommandExit   = "exit"
)

// NeedsRunID reports whether the command type addresses a single run.
func (c Command) NeedsRunID() bool {
	switch c.Type {
	case CommandRun, CommandResume, CommandStop:
		return true
	}
	return false
}
