package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/launchbridge/internal/builder"
	"github.com/mattjoyce/launchbridge/internal/config"
	"github.com/mattjoyce/launchbridge/internal/launch"
	"github.com/mattjoyce/launchbridge/internal/log"
	"github.com/mattjoyce/launchbridge/internal/metrics"
	"github.com/mattjoyce/launchbridge/internal/storage"
	"github.com/mattjoyce/launchbridge/internal/workspace"
)

type buildFlags struct {
	dir             string
	name            string
	runID           string
	jobID           string
	repository      string
	entrypoint      string
	entrypointName  string
	resource        string
	baseImage       string
	requirements    string
	builderKind     string
	options         map[string]string
	printDockerfile bool
}

func newBuildCommand(g *globalFlags) *cobra.Command {
	f := &buildFlags{}
	cmd := &cobra.Command{
		Use:   "build [flags] [-- override args...]",
		Short: "Build (and optionally push) the container image for a launch job",
		Long: `Build packages a project directory into a container image. Arguments after
"--" are appended to the entrypoint command. With --job the project
directory, run id, resource and override args come from a queued launch job.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadOrDefaults()
			if err != nil {
				return err
			}
			return runBuild(commandContext(cmd), cmd, cfg, f, args)
		},
	}

	cmd.Flags().StringVar(&f.dir, "dir", ".", "Project directory to package")
	cmd.Flags().StringVar(&f.name, "name", "", "Project name (default: directory name)")
	cmd.Flags().StringVar(&f.runID, "run-id", "", "Run id used as the image tag when --repository is set")
	cmd.Flags().StringVar(&f.jobID, "job", "", "Build the project of this launch job")
	cmd.Flags().StringVar(&f.repository, "repository", "", "Registry repository to tag and push to")
	cmd.Flags().StringVar(&f.entrypoint, "entrypoint", "", `Entrypoint command, e.g. "python train.py"`)
	cmd.Flags().StringVar(&f.entrypointName, "entrypoint-name", "main", "Entrypoint name")
	cmd.Flags().StringVar(&f.resource, "resource", "", "Target resource (default: launch.resource)")
	cmd.Flags().StringVar(&f.baseImage, "base-image", "", "Base image (default: builder.base_image)")
	cmd.Flags().StringVar(&f.requirements, "requirements", "", "pip requirements file relative to the project directory")
	cmd.Flags().StringVar(&f.builderKind, "builder", "", "docker or kaniko (default: builder.type)")
	cmd.Flags().StringToStringVar(&f.options, "option", nil, "Builder option recorded in the metadata (key=value, repeatable)")
	cmd.Flags().BoolVar(&f.printDockerfile, "print-dockerfile", false, "Print the generated Dockerfile and exit")
	_ = cmd.MarkFlagRequired("entrypoint")
	return cmd
}

func runBuild(ctx context.Context, cmd *cobra.Command, cfg *config.Config, f *buildFlags, overrideArgs []string) error {
	kind := firstNonEmpty(f.builderKind, cfg.Builder.Type)
	project := builder.Project{
		Name:         f.name,
		RunID:        f.runID,
		Dir:          f.dir,
		Resource:     firstNonEmpty(f.resource, cfg.Launch.Resource),
		BaseImage:    firstNonEmpty(f.baseImage, cfg.Builder.BaseImage),
		Requirements: f.requirements,
		OverrideArgs: overrideArgs,
	}

	if f.jobID != "" {
		job, err := lookupJob(ctx, cfg, f.jobID)
		if err != nil {
			return err
		}
		project.Dir = job.Spec.URI
		project.RunID = firstNonEmpty(f.runID, job.RunID)
		project.Resource = firstNonEmpty(f.resource, job.Spec.Resource)
		project.OverrideArgs = append(append([]string{}, job.Spec.Overrides.Args...), overrideArgs...)
	}
	if project.Name == "" {
		abs, err := filepath.Abs(project.Dir)
		if err != nil {
			return err
		}
		project.Name = filepath.Base(abs)
	}

	ep := builder.EntryPoint{Name: f.entrypointName, Command: strings.Fields(f.entrypoint)}
	if len(ep.Command) == 0 {
		return fmt.Errorf("--entrypoint is empty")
	}

	if f.printDockerfile {
		dockerfile, err := builder.GenerateDockerfile(project, ep, project.Resource, kind)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), dockerfile)
		return nil
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("build")

	docker, err := builder.NewDockerCLI(cfg.Builder.DockerBin)
	if err != nil {
		return err
	}
	ws, err := workspace.NewFSManager(cfg.Builder.ContextDir)
	if err != nil {
		return err
	}
	b, err := builder.New(builder.Config{
		Kind:      kind,
		BaseImage: cfg.Builder.BaseImage,
		Ignore:    append(append([]string{}, builder.DefaultIgnore...), cfg.Builder.Ignore...),
	}, docker, ws, logger, builder.WithMetrics(metrics.New()))
	if err != nil {
		return err
	}

	options := make(map[string]any, len(f.options))
	for k, v := range f.options {
		options[k] = v
	}
	ref, err := b.BuildImage(ctx, builder.Request{
		Project:    project,
		Repository: f.repository,
		EntryPoint: ep,
		Options:    options,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ref)
	return nil
}

func lookupJob(ctx context.Context, cfg *config.Config, id string) (*launch.Job, error) {
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	job, err := launch.NewLocalQueue(db, cfg.Launch.Queue, "").Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("launch job %s: %w", id, err)
	}
	return job, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
