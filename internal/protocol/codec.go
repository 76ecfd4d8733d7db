package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// EncodeRegister serializes a RegisterRequest to w.
func EncodeRegister(w io.Writer, req *RegisterRequest) error {
	if req.SweepID == "" {
		return fmt.Errorf("register request missing sweep_id")
	}
	if err := json.NewEncoder(w).Encode(req); err != nil {
		return fmt.Errorf("failed to encode register request: %w", err)
	}
	return nil
}

// DecodeRegister reads a RegisterResponse. The agent id is required.
func DecodeRegister(r io.Reader) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode register response: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("register response missing required field: id")
	}
	return &resp, nil
}

// EncodeHeartbeat serializes a HeartbeatRequest to w. A nil report is sent as
// an empty object.
func EncodeHeartbeat(w io.Writer, req *HeartbeatRequest) error {
	out := *req
	if out.RunStates == nil {
		out.RunStates = map[string]bool{}
	}
	if err := json.NewEncoder(w).Encode(&out); err != nil {
		return fmt.Errorf("failed to encode heartbeat request: %w", err)
	}
	return nil
}

// DecodeHeartbeat reads a HeartbeatResponse from r and returns the raw body
// for diagnostics. Unknown fields are tolerated and command types are not
// validated here so callers can log and skip kinds they do not understand.
func DecodeHeartbeat(r io.Reader) (*HeartbeatResponse, []byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read heartbeat response: %w", err)
	}
	if len(data) == 0 {
		return nil, data, fmt.Errorf("backend returned an empty heartbeat response")
	}

	var resp HeartbeatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, data, fmt.Errorf("heartbeat response is not valid JSON: %w", err)
	}
	for i, c := range resp.Commands {
		if c.Type == "" {
			return nil, data, fmt.Errorf("command %d missing required field: type", i)
		}
		if c.NeedsRunID() && c.RunID == "" {
			return nil, data, fmt.Errorf("command %d (%s) missing required field: run_id", i, c.Type)
		}
	}
	return &resp, data, nil
}
