// Package doctor checks a loaded launchbridge configuration against the host
// it is about to run on.
package doctor

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"os/exec"
	"strings"

	"github.com/mattjoyce/launchbridge/internal/builder"
	"github.com/mattjoyce/launchbridge/internal/config"
	"github.com/mattjoyce/launchbridge/internal/storage"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor runs host checks that config.Load cannot do on its own.
type Doctor struct {
	cfg        *config.Config
	lookPath   func(string) (string, error)
	localCheck func(path, purpose string) error
}

// New creates a Doctor for a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{
		cfg:        cfg,
		lookPath:   exec.LookPath,
		localCheck: storage.RequireLocalFilesystem,
	}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateSweep(r)
	d.validateBackend(r)
	d.validateStorage(r)
	d.validateBuilder(r)
	d.validateAPI(r)
	d.validateEvents(r)
	d.warnTiming(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateSweep(r *Result) {
	if d.cfg.Sweep.ID == "" {
		d.addError(r, "sweep", "sweep.id", "sweep.id is required")
	}
}

// validateBackend flags credentials sent in the clear.
func (d *Doctor) validateBackend(r *Result) {
	u, err := url.Parse(d.cfg.Backend.URL)
	if err != nil || !u.IsAbs() {
		d.addError(r, "backend", "backend.url", fmt.Sprintf("backend.url %q is not an absolute URL", d.cfg.Backend.URL))
		return
	}
	if d.cfg.Backend.APIKey == "" {
		d.addWarning(r, "backend", "backend.api_key", "no API key configured; heartbeats are unauthenticated")
		return
	}
	if u.Scheme == "http" && !isLoopbackHost(u.Hostname()) {
		d.addWarning(r, "backend", "backend.url", "API key is sent over plain http to a non-loopback host")
	}
}

// validateStorage rejects network filesystems for the state database.
func (d *Doctor) validateStorage(r *Result) {
	if d.cfg.State.Path == "" {
		d.addError(r, "storage", "state.path", "state.path is required")
		return
	}
	if err := d.localCheck(d.cfg.State.Path, "sqlite"); err != nil {
		d.addError(r, "storage", "state.path", err.Error())
	}
	if err := d.localCheck(d.cfg.LockDir(), "lock"); err != nil {
		d.addError(r, "storage", "state.lock_dir", err.Error())
	}
}

func (d *Doctor) validateBuilder(r *Result) {
	b := d.cfg.Builder
	if b.Type == "docker" {
		if _, err := d.lookPath(b.DockerBin); err != nil {
			d.addWarning(r, "builder", "builder.docker_bin",
				fmt.Sprintf("docker binary %q not found; image builds will fail", b.DockerBin))
		}
	}
	if b.ContextDir != "" {
		if err := d.localCheck(b.ContextDir, "build context"); err != nil {
			d.addWarning(r, "builder", "builder.context_dir", err.Error())
		}
	}
	if b.BaseImage == "" {
		d.addError(r, "builder", "builder.base_image", "builder.base_image is required")
	}
	if builder.RequiresPushConfirmation(d.cfg.Launch.Resource) && b.Type == "kaniko" {
		d.addWarning(r, "builder", "builder.type",
			fmt.Sprintf("resource %q needs a pushed image; kaniko builds push from inside the cluster", d.cfg.Launch.Resource))
	}
}

// validateAPI warns about a status server bound beyond loopback.
func (d *Doctor) validateAPI(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	host, _, err := net.SplitHostPort(d.cfg.API.Listen)
	if err != nil {
		d.addError(r, "api", "api.listen", fmt.Sprintf("invalid listen address %q: %v", d.cfg.API.Listen, err))
		return
	}
	if !isLoopbackHost(host) {
		d.addWarning(r, "api", "api.listen", "status API exposes run state and is not bound to loopback")
	}
}

func (d *Doctor) validateEvents(r *Result) {
	ev := d.cfg.Events
	if ev.NATSURL == "" {
		return
	}
	if ev.SubjectPrefix == "" {
		d.addError(r, "events", "events.subject_prefix", "subject_prefix is required when nats_url is set")
	}
	if strings.ContainsAny(ev.SubjectPrefix, " *>") {
		d.addError(r, "events", "events.subject_prefix",
			fmt.Sprintf("subject_prefix %q contains NATS wildcard or whitespace", ev.SubjectPrefix))
	}
}

// warnTiming flags intervals that starve the heartbeat loop.
func (d *Doctor) warnTiming(r *Result) {
	be := d.cfg.Backend
	if be.Timeout > 0 && be.HeartbeatInterval > 0 && be.Timeout > 10*be.HeartbeatInterval {
		d.addWarning(r, "timing", "backend.timeout",
			fmt.Sprintf("timeout %s is much longer than heartbeat_interval %s", be.Timeout, be.HeartbeatInterval))
	}
	if be.HeartbeatInterval > 0 && be.HeartbeatInterval.Seconds() < 1 {
		d.addWarning(r, "timing", "backend.heartbeat_interval",
			fmt.Sprintf("heartbeat_interval %s is very short (< 1s)", be.HeartbeatInterval))
	}
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid {
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, label string, issue Issue) {
	if issue.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", label, issue.Category, issue.Field, issue.Message)
		return
	}
	fmt.Fprintf(b, "  %s [%s] %s\n", label, issue.Category, issue.Message)
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
