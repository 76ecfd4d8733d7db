// Package builder packages a launch job into a container image: it renders a
// Dockerfile, assembles a build context, builds the image and optionally
// pushes it to a registry.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mattjoyce/launchbridge/internal/events"
	"github.com/mattjoyce/launchbridge/internal/metrics"
	"github.com/mattjoyce/launchbridge/internal/redact"
	"github.com/mattjoyce/launchbridge/internal/workspace"
)

// Project is the launch job being packaged.
type Project struct {
	Name  string
	RunID string
	// Dir holds the project source copied into the image.
	Dir       string
	Resource  string
	BaseImage string
	// Requirements is a pip requirements file relative to Dir, if any.
	Requirements string
	OverrideArgs []string
}

// EntryPoint is the command the image runs.
type EntryPoint struct {
	Name    string
	Command []string
}

// Request is one BuildImage call.
type Request struct {
	Project    Project
	Repository string
	EntryPoint EntryPoint
	Options    map[string]any
}

// DefaultIgnore lists entries never copied into a build context.
var DefaultIgnore = []string{".git", ".venv", "__pycache__", ".mypy_cache", ".pytest_cache", "node_modules"}

// Config controls a Builder.
type Config struct {
	Kind      string // docker | kaniko
	BaseImage string
	Ignore    []string
}

// Builder runs the image build pipeline.
type Builder struct {
	cfg     Config
	docker  DockerClient
	ws      workspace.Manager
	events  events.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	newID   func() string
}

type Option func(*Builder)

func WithEvents(p events.Publisher) Option { return func(b *Builder) { b.events = p } }

func WithMetrics(m *metrics.Metrics) Option { return func(b *Builder) { b.metrics = m } }

func New(cfg Config, docker DockerClient, ws workspace.Manager, logger *slog.Logger, opts ...Option) (*Builder, error) {
	if cfg.Kind == "" {
		cfg.Kind = KindDocker
	}
	if cfg.Kind != KindDocker && cfg.Kind != KindKaniko {
		return nil, fmt.Errorf("unsupported builder kind %q", cfg.Kind)
	}
	if cfg.Ignore == nil {
		cfg.Ignore = DefaultIgnore
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		cfg:    cfg,
		docker: docker,
		ws:     ws,
		logger: logger.With("component", "builder", "builder_kind", cfg.Kind),
		newID:  func() string { return "build-" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.events == nil {
		b.events = (*events.Hub)(nil)
	}
	return b, nil
}

// Kind returns the builder kind.
func (b *Builder) Kind() string { return b.cfg.Kind }

// BuildImage builds the image for req and returns its reference. Build and
// push failures are returned as *LaunchError. The build context is removed
// once the build returns, whatever the outcome.
func (b *Builder) BuildImage(ctx context.Context, req Request) (string, error) {
	p := req.Project
	if p.BaseImage == "" {
		p.BaseImage = b.cfg.BaseImage
	}

	ref := ImageRef(p, req.Repository, req.EntryPoint)
	logger := b.logger.With("image", ref, "run_id", p.RunID, "resource", p.Resource)

	fail := func(err error) (string, error) {
		b.metrics.Build("build_failed")
		logger.Error("image build failed", "error", err)
		b.events.Publish(events.TypeBuildFailed, map[string]any{"image": ref, "error": err.Error()})
		return "", &LaunchError{Kind: ErrBuild, ImageRef: ref, Err: err}
	}

	if p.Dir == "" {
		return fail(errors.New("project directory is empty"))
	}

	entryCmd := EntryCommand(req.EntryPoint, p.OverrideArgs)
	dockerfile, err := GenerateDockerfile(p, req.EntryPoint, p.Resource, b.cfg.Kind)
	if err != nil {
		return fail(err)
	}

	// The recorded Dockerfile is rendered from a masked entry point.
	recorded, err := GenerateDockerfile(p, EntryPoint{Name: req.EntryPoint.Name, Command: redact.Args(req.EntryPoint.Command)}, p.Resource, b.cfg.Kind)
	if err != nil {
		return fail(err)
	}

	contextID := b.newID()
	metaPath := MetadataPath(b.ws.BaseDir(), contextID)
	err = writeMetadata(metaPath, Metadata{
		ImageURI:       ref,
		Command:        strings.Join(redact.Args(entryCmd), " "),
		BuilderOptions: redact.Map(req.Options),
		Dockerfile:     recorded,
		CreatedAt:      timeNow().UTC(),
	})
	if err != nil {
		return fail(err)
	}

	bc, err := b.ws.Create(ctx, contextID)
	if err != nil {
		return fail(fmt.Errorf("create build context: %w", err))
	}

	b.events.Publish(events.TypeBuildStarted, map[string]any{"image": ref, "context": contextID, "metadata": metaPath})
	logger.Info("building image", "context", bc.Dir, "metadata", metaPath)

	buildErr := b.assemble(ctx, bc, p, dockerfile)
	if buildErr == nil {
		buildErr = b.docker.Build(ctx, []string{ref}, filepath.Join(bc.Dir, DockerfileName), bc.Dir)
	}
	b.removeContext(ctx, contextID, logger)
	if buildErr != nil {
		return fail(buildErr)
	}
	b.events.Publish(events.TypeBuildSucceeded, map[string]any{"image": ref})

	if req.Repository == "" {
		b.metrics.Build("ok")
		logger.Info("built image")
		return ref, nil
	}

	if err := b.push(ctx, ref, req.Repository, p.Resource, logger); err != nil {
		return "", err
	}
	b.metrics.Build("ok")
	return ref, nil
}

func (b *Builder) assemble(ctx context.Context, bc workspace.BuildContext, p Project, dockerfile string) error {
	if err := writeFile(filepath.Join(bc.Dir, DockerfileName), dockerfile); err != nil {
		return err
	}
	if err := b.ws.Import(ctx, bc.ID, p.Dir, ProjectDir, b.cfg.Ignore); err != nil {
		return fmt.Errorf("copy project files: %w", err)
	}
	return nil
}

func (b *Builder) push(ctx context.Context, ref, repository, resource string, logger *slog.Logger) error {
	tag := strings.TrimPrefix(ref, repository+":")
	logger.Info("pushing image")

	fail := func(resp string, err error) error {
		b.metrics.Build("push_failed")
		logger.Error("image push failed", "error", err, "response", resp)
		b.events.Publish(events.TypeBuildFailed, map[string]any{"image": ref, "error": err.Error(), "response": resp})
		return &LaunchError{Kind: ErrPush, ImageRef: ref, Response: resp, Err: err}
	}

	resp, err := b.docker.Push(ctx, repository, tag)
	if err != nil {
		return fail(resp, err)
	}
	if resp == "" {
		return fail("", errors.New("registry returned no push response"))
	}
	if RequiresPushConfirmation(resource) {
		marker := fmt.Sprintf("The push refers to repository [%s]", repository)
		if !strings.Contains(resp, marker) {
			return fail(resp, fmt.Errorf("push response does not confirm repository %s", repository))
		}
	}

	b.events.Publish(events.TypePushSucceeded, map[string]any{"image": ref, "repository": repository})
	logger.Info("pushed image")
	return nil
}

// removeContext deletes the build context. Failure is only logged so it never
// hides the build result.
func (b *Builder) removeContext(ctx context.Context, id string, logger *slog.Logger) {
	if err := b.ws.Remove(context.WithoutCancel(ctx), id); err != nil {
		logger.Warn("build context cleanup failed", "context", id, "error", err)
	}
}
