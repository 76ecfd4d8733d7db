package heartbeat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mattjoyce/launchbridge/internal/protocol"
)

const maxErrorBody = 4 << 10

// HTTPClient implements Client over the backend's JSON HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for baseURL. apiKey, when set, is sent as a
// bearer token.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) RegisterAgent(ctx context.Context, host, sweepID string) (string, error) {
	var body bytes.Buffer
	if err := protocol.EncodeRegister(&body, &protocol.RegisterRequest{Host: host, SweepID: sweepID}); err != nil {
		return "", &RPCError{Op: "register", Err: err}
	}

	resp, err := c.post(ctx, "register", "/api/v1/agents", &body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	out, err := protocol.DecodeRegister(resp.Body)
	if err != nil {
		return "", &RPCError{Op: "register", StatusCode: resp.StatusCode, Err: err}
	}
	return out.ID, nil
}

func (c *HTTPClient) Heartbeat(ctx context.Context, agentID string, runStates map[string]bool) ([]protocol.Command, error) {
	var body bytes.Buffer
	if err := protocol.EncodeHeartbeat(&body, &protocol.HeartbeatRequest{RunStates: runStates}); err != nil {
		return nil, &RPCError{Op: "heartbeat", Err: err}
	}

	path := "/api/v1/agents/" + url.PathEscape(agentID) + "/heartbeat"
	resp, err := c.post(ctx, "heartbeat", path, &body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, raw, err := protocol.DecodeHeartbeat(resp.Body)
	if err != nil {
		return nil, &RPCError{Op: "heartbeat", StatusCode: resp.StatusCode, Body: truncate(string(raw)), Err: err}
	}
	return out.Commands, nil
}

// post sends a JSON body and returns the response for 2xx statuses. Any
// other outcome is an *RPCError.
func (c *HTTPClient) post(ctx context.Context, op, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, &RPCError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RPCError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, &RPCError{Op: op, StatusCode: resp.StatusCode, Body: truncate(strings.TrimSpace(string(data)))}
	}
	return resp, nil
}

func truncate(s string) string {
	if len(s) <= maxErrorBody {
		return s
	}
	return s[:maxErrorBody] + "...(truncated)"
}
