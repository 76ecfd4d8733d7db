package config

import "time"

// Config represents the complete launchbridge configuration.
type Config struct {
	Include []string `yaml:"include,omitempty"`

	Service  ServiceConfig  `yaml:"service"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Backend  BackendConfig  `yaml:"backend"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Launch   LaunchConfig   `yaml:"launch"`
	Builder  BuilderConfig  `yaml:"builder"`
	State    StateConfig    `yaml:"state"`
	API      APIConfig      `yaml:"api,omitempty"`
	Events   EventsConfig   `yaml:"events,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// SweepConfig identifies the sweep this controller serves.
type SweepConfig struct {
	ID string `yaml:"id"`
	// Host is the agent label sent at registration. Empty means hostname.
	Host string `yaml:"host,omitempty"`
}

// BackendConfig points at the sweep coordination backend.
type BackendConfig struct {
	URL               string        `yaml:"url"`
	APIKey            string        `yaml:"api_key,omitempty"`
	Timeout           time.Duration `yaml:"timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	Retry             RetryConfig   `yaml:"retry"`
}

// RetryConfig defines retry behavior for a single heartbeat.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffMax  time.Duration `yaml:"backoff_max,omitempty"`
}

// DispatchConfig tunes the dispatcher loop.
type DispatchConfig struct {
	DequeueTimeout time.Duration `yaml:"dequeue_timeout"`
	QueueCapacity  int           `yaml:"queue_capacity"`
}

// LaunchConfig describes how run specs are submitted.
type LaunchConfig struct {
	Queue    string `yaml:"queue"`
	URI      string `yaml:"uri,omitempty"`
	Resource string `yaml:"resource"`
}

// BuilderConfig configures image builds.
type BuilderConfig struct {
	Type       string   `yaml:"type"`
	DockerBin  string   `yaml:"docker_bin"`
	ContextDir string   `yaml:"context_dir"`
	BaseImage  string   `yaml:"base_image"`
	Ignore     []string `yaml:"ignore,omitempty"`
}

// StateConfig defines state storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
	// LockDir holds per-sweep controller locks. Empty means next to Path.
	LockDir string `yaml:"lock_dir,omitempty"`
}

// APIConfig defines HTTP status server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// EventsConfig enables forwarding lifecycle events to NATS.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
	BufferSize    int    `yaml:"buffer_size,omitempty"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "launchbridge",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Backend: BackendConfig{
			Timeout:           30 * time.Second,
			HeartbeatInterval: 5 * time.Second,
			Retry: RetryConfig{
				MaxAttempts: 3,
				BackoffBase: 500 * time.Millisecond,
			},
		},
		Dispatch: DispatchConfig{
			DequeueTimeout: 5 * time.Second,
			QueueCapacity:  1024,
		},
		Launch: LaunchConfig{
			Queue:    "default",
			Resource: "local-process",
		},
		Builder: BuilderConfig{
			Type:       "docker",
			DockerBin:  "docker",
			ContextDir: "./data/build",
			BaseImage:  "python:3.11-slim",
		},
		State: StateConfig{
			Path: "./data/state.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
		Events: EventsConfig{
			SubjectPrefix: "launchbridge",
			BufferSize:    256,
		},
	}
}
