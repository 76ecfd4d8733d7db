package doctor

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/launchbridge/internal/config"
)

func validConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Sweep.ID = "sweep-1"
	cfg.Backend.URL = "https://sweeps.example.com/api"
	cfg.Backend.APIKey = "secret"
	cfg.State.Path = "/tmp/launchbridge-test/state.db"
	return cfg
}

func newDoctor(cfg *config.Config) *Doctor {
	d := New(cfg)
	d.lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }
	d.localCheck = func(string, string) error { return nil }
	return d
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()
	r := newDoctor(validConfig()).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got: %v", r.Warnings)
	}
}

func TestValidate_MissingSweepID(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Sweep.ID = ""
	r := newDoctor(cfg).Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "sweep", "sweep.id")
}

func TestValidate_RelativeBackendURL(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Backend.URL = "sweeps/api"
	r := newDoctor(cfg).Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "backend", "absolute")
}

func TestValidate_PlainHTTPWithKey(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Backend.URL = "http://sweeps.example.com/api"
	r := newDoctor(cfg).Validate()
	if !r.Valid {
		t.Fatalf("expected valid, got: %v", r.Errors)
	}
	assertHasWarning(t, r, "backend", "plain http")

	cfg.Backend.URL = "http://127.0.0.1:9000/api"
	r = newDoctor(cfg).Validate()
	if len(r.Warnings) != 0 {
		t.Fatalf("loopback http should not warn, got: %v", r.Warnings)
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Backend.APIKey = ""
	r := newDoctor(cfg).Validate()
	assertHasWarning(t, r, "backend", "unauthenticated")
}

func TestValidate_NetworkFilesystemState(t *testing.T) {
	t.Parallel()
	d := newDoctor(validConfig())
	d.localCheck = func(path, purpose string) error {
		if purpose == "sqlite" {
			return errors.New("sqlite path is on a network filesystem (nfs)")
		}
		return nil
	}
	r := d.Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "storage", "network filesystem")
}

func TestValidate_MissingDockerBinary(t *testing.T) {
	t.Parallel()
	d := newDoctor(validConfig())
	d.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	r := d.Validate()
	if !r.Valid {
		t.Fatalf("missing docker is a warning, got errors: %v", r.Errors)
	}
	assertHasWarning(t, r, "builder", "not found")

	cfg := validConfig()
	cfg.Builder.Type = "kaniko"
	d = newDoctor(cfg)
	d.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	r = d.Validate()
	if len(r.Warnings) != 0 {
		t.Fatalf("kaniko does not need docker, got: %v", r.Warnings)
	}
}

func TestValidate_KanikoSagemaker(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Builder.Type = "kaniko"
	cfg.Launch.Resource = "sagemaker"
	r := newDoctor(cfg).Validate()
	assertHasWarning(t, r, "builder", "pushed image")
}

func TestValidate_APIListen(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.API.Enabled = true
	cfg.API.Listen = "0.0.0.0:8080"
	r := newDoctor(cfg).Validate()
	assertHasWarning(t, r, "api", "loopback")

	cfg.API.Listen = "not-an-address"
	r = newDoctor(cfg).Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "api", "invalid listen address")
}

func TestValidate_EventsPrefix(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Events.NATSURL = "nats://127.0.0.1:4222"
	cfg.Events.SubjectPrefix = "bad.>"
	r := newDoctor(cfg).Validate()
	if r.Valid {
		t.Fatal("expected invalid")
	}
	assertHasError(t, r, "events", "wildcard")
}

func TestValidate_Timing(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Backend.HeartbeatInterval = 200 * time.Millisecond
	r := newDoctor(cfg).Validate()
	assertHasWarning(t, r, "timing", "very short")
	assertHasWarning(t, r, "timing", "much longer")
}

func TestFormatHuman(t *testing.T) {
	t.Parallel()

	out := FormatHuman(&Result{Valid: true})
	if out != "Configuration valid.\n" {
		t.Fatalf("unexpected output: %q", out)
	}

	out = FormatHuman(&Result{
		Valid:    false,
		Errors:   []Issue{{Category: "sweep", Field: "sweep.id", Message: "sweep.id is required"}},
		Warnings: []Issue{{Category: "api", Message: "exposed"}},
	})
	for _, want := range []string{
		"Configuration invalid (1 error(s), 1 warning(s))",
		"ERROR [sweep] sweep.id: sweep.id is required",
		"WARN  [api] exposed",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	t.Parallel()
	out, err := FormatJSON(&Result{Valid: true})
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}
	if !strings.Contains(out, `"valid": true`) {
		t.Fatalf("unexpected JSON: %s", out)
	}
}

func assertHasError(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, e := range r.Errors {
		if e.Category == category && strings.Contains(e.Message, substring) {
			return
		}
	}
	t.Fatalf("expected error with category=%q containing %q, got: %v", category, substring, r.Errors)
}

func assertHasWarning(t *testing.T, r *Result, category, substring string) {
	t.Helper()
	for _, w := range r.Warnings {
		if w.Category == category && strings.Contains(w.Message, substring) {
			return
		}
	}
	t.Fatalf("expected warning with category=%q containing %q, got: %v", category, substring, r.Warnings)
}
