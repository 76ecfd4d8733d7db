package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file. Files listed under
// include are merged in order, relative to the including file.
func Load(configPath string) (*Config, error) {
	absPath, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{absPath: true}
	if len(cfg.Include) > 0 {
		if err := loadIncludes(cfg, cfg.Include, filepath.Dir(absPath), visited); err != nil {
			return nil, err
		}
	}

	cfg = applyConfigDefaults(cfg)

	if err := verifyAllConfigHashes(sortedKeys(visited)); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DiscoverConfig finds the config file by checking standard locations:
// $LAUNCHBRIDGE_CONFIG, ~/.config/launchbridge/config.yaml,
// /etc/launchbridge/config.yaml, ./config.yaml.
func DiscoverConfig() (string, error) {
	candidates := []string{}
	if p := os.Getenv("LAUNCHBRIDGE_CONFIG"); p != "" {
		candidates = append(candidates, p)
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "launchbridge", "config.yaml"))
	}
	candidates = append(candidates, "/etc/launchbridge/config.yaml", "./config.yaml")

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("no config found (checked: %s)", strings.Join(candidates, ", "))
}

// DiscoverAllConfigFiles returns absolute paths to all configuration files in the include tree.
func DiscoverAllConfigFiles(configPath string) ([]string, error) {
	absPath, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, err
	}
	visited := map[string]bool{absPath: true}
	if len(cfg.Include) > 0 {
		if err := loadIncludes(&Config{}, cfg.Include, filepath.Dir(absPath), visited); err != nil {
			return nil, err
		}
	}
	return sortedKeys(visited), nil
}

func resolveConfigPath(configPath string) (string, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return "", fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}
	return absPath, nil
}

// loadIncludes recursively loads and merges files from the include array.
// visited tracks loaded files to prevent cycles.
func loadIncludes(cfg *Config, includes []string, baseDir string, visited map[string]bool) error {
	for i, includePath := range includes {
		includePath = interpolateEnv(includePath)
		resolved := includePath
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(baseDir, includePath)
		}
		absPath, err := filepath.Abs(resolved)
		if err != nil {
			return fmt.Errorf("include[%d]: failed to resolve path %q: %w", i, includePath, err)
		}
		if visited[absPath] {
			return fmt.Errorf("include[%d]: circular dependency detected: %s", i, absPath)
		}
		if _, err := os.Stat(absPath); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("include[%d]: file not found: %s\n"+
					"Referenced from: %s", i, absPath, baseDir)
			}
			return fmt.Errorf("include[%d]: failed to access file %s: %w", i, absPath, err)
		}
		visited[absPath] = true

		included, err := loadConfigFile(absPath)
		if err != nil {
			return fmt.Errorf("include[%d] (%s): %w", i, includePath, err)
		}
		mergeConfig(cfg, included)

		if len(included.Include) > 0 {
			if err := loadIncludes(cfg, included.Include, filepath.Dir(absPath), visited); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadConfigFile loads and parses a single config file without defaults.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

// mergeConfig merges src into dst, with src taking precedence for non-zero values.
func mergeConfig(dst, src *Config) {
	setString(&dst.Service.Name, src.Service.Name)
	setString(&dst.Service.LogLevel, src.Service.LogLevel)
	setString(&dst.Service.LogFormat, src.Service.LogFormat)

	setString(&dst.Sweep.ID, src.Sweep.ID)
	setString(&dst.Sweep.Host, src.Sweep.Host)

	setString(&dst.Backend.URL, src.Backend.URL)
	setString(&dst.Backend.APIKey, src.Backend.APIKey)
	if src.Backend.Timeout != 0 {
		dst.Backend.Timeout = src.Backend.Timeout
	}
	if src.Backend.HeartbeatInterval != 0 {
		dst.Backend.HeartbeatInterval = src.Backend.HeartbeatInterval
	}
	if src.Backend.Retry.MaxAttempts != 0 {
		dst.Backend.Retry.MaxAttempts = src.Backend.Retry.MaxAttempts
	}
	if src.Backend.Retry.BackoffBase != 0 {
		dst.Backend.Retry.BackoffBase = src.Backend.Retry.BackoffBase
	}
	if src.Backend.Retry.BackoffMax != 0 {
		dst.Backend.Retry.BackoffMax = src.Backend.Retry.BackoffMax
	}

	if src.Dispatch.DequeueTimeout != 0 {
		dst.Dispatch.DequeueTimeout = src.Dispatch.DequeueTimeout
	}
	if src.Dispatch.QueueCapacity != 0 {
		dst.Dispatch.QueueCapacity = src.Dispatch.QueueCapacity
	}

	setString(&dst.Launch.Queue, src.Launch.Queue)
	setString(&dst.Launch.URI, src.Launch.URI)
	setString(&dst.Launch.Resource, src.Launch.Resource)

	setString(&dst.Builder.Type, src.Builder.Type)
	setString(&dst.Builder.DockerBin, src.Builder.DockerBin)
	setString(&dst.Builder.ContextDir, src.Builder.ContextDir)
	setString(&dst.Builder.BaseImage, src.Builder.BaseImage)
	if len(src.Builder.Ignore) > 0 {
		dst.Builder.Ignore = append(dst.Builder.Ignore, src.Builder.Ignore...)
	}

	setString(&dst.State.Path, src.State.Path)
	setString(&dst.State.LockDir, src.State.LockDir)

	if src.API.Enabled {
		dst.API.Enabled = true
	}
	setString(&dst.API.Listen, src.API.Listen)

	setString(&dst.Events.NATSURL, src.Events.NATSURL)
	setString(&dst.Events.SubjectPrefix, src.Events.SubjectPrefix)
	if src.Events.BufferSize != 0 {
		dst.Events.BufferSize = src.Events.BufferSize
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// applyConfigDefaults merges default values into config where not explicitly set.
func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()
	merged := *defaults
	merged.Include = cfg.Include
	mergeConfig(&merged, cfg)
	return &merged
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func unresolved(field, value string) error {
	if m := envVarPattern.FindStringSubmatch(value); len(m) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, m[1])
	}
	return nil
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if strings.TrimSpace(cfg.Sweep.ID) == "" {
		return fmt.Errorf("sweep.id is required")
	}
	if err := unresolved("sweep.id", cfg.Sweep.ID); err != nil {
		return err
	}

	if cfg.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if err := unresolved("backend.url", cfg.Backend.URL); err != nil {
		return err
	}
	if u, err := url.Parse(cfg.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.url must be an absolute URL (got %q)", cfg.Backend.URL)
	}
	if err := unresolved("backend.api_key", cfg.Backend.APIKey); err != nil {
		return err
	}
	if cfg.Backend.HeartbeatInterval <= 0 {
		return fmt.Errorf("backend.heartbeat_interval must be positive")
	}
	if cfg.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}
	if cfg.Backend.Retry.MaxAttempts < 1 {
		return fmt.Errorf("backend.retry.max_attempts must be at least 1")
	}

	if cfg.Dispatch.DequeueTimeout <= 0 {
		return fmt.Errorf("dispatch.dequeue_timeout must be positive")
	}
	if cfg.Dispatch.QueueCapacity < 1 {
		return fmt.Errorf("dispatch.queue_capacity must be at least 1")
	}

	switch cfg.Builder.Type {
	case "docker", "kaniko":
	default:
		return fmt.Errorf("builder.type must be docker or kaniko (got %q)", cfg.Builder.Type)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	if cfg.API.Enabled && cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is required when api is enabled")
	}
	if err := unresolved("events.nats_url", cfg.Events.NATSURL); err != nil {
		return err
	}
	return nil
}

// LockDir returns the directory holding per-sweep controller locks.
func (c *Config) LockDir() string {
	if c.State.LockDir != "" {
		return c.State.LockDir
	}
	return filepath.Dir(c.State.Path)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
