package builder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"text/template"
)

// DockerfileName is the fixed name of the generated Dockerfile inside a build
// context.
const DockerfileName = "Dockerfile.launch-autogenerated"

// ProjectDir is where project files are placed inside a build context.
const ProjectDir = "src"

const DefaultBaseImage = "python:3.11-slim"

const (
	KindDocker = "docker"
	KindKaniko = "kaniko"
)

const ResourceSageMaker = "sagemaker"

var dockerfileTemplate = template.Must(template.New("dockerfile").Parse(
	`{{if .BuildKit}}# syntax=docker/dockerfile:1.4
{{end}}# Generated by launchbridge ({{.Builder}} builder, {{.Resource}} resource). Do not edit.
FROM {{.BaseImage}}

ENV PYTHONUNBUFFERED=1
WORKDIR {{.WorkDir}}
{{if .Requirements}}
COPY {{.ProjectDir}}/{{.Requirements}} ./{{.Requirements}}
{{if .BuildKit}}RUN --mount=type=cache,mode=0777,target=/root/.cache/pip pip install -r {{.Requirements}}
{{else}}RUN pip install --no-cache-dir -r {{.Requirements}}
{{end}}{{end}}
COPY {{.ProjectDir}}/ ./
ENTRYPOINT {{.Entrypoint}}
`))

type dockerfileData struct {
	BuildKit     bool
	Builder      string
	Resource     string
	BaseImage    string
	WorkDir      string
	ProjectDir   string
	Requirements string
	Entrypoint   string
}

// GenerateDockerfile renders the Dockerfile for a project. It depends only on
// its arguments.
func GenerateDockerfile(p Project, ep EntryPoint, resource, builderKind string) (string, error) {
	if builderKind != KindDocker && builderKind != KindKaniko {
		return "", fmt.Errorf("unsupported builder kind %q", builderKind)
	}
	if len(ep.Command) == 0 {
		return "", fmt.Errorf("entry point %q has no command", ep.Name)
	}

	reqs := ""
	if p.Requirements != "" {
		reqs = path.Clean(strings.ReplaceAll(p.Requirements, `\`, "/"))
		if path.IsAbs(reqs) || reqs == ".." || strings.HasPrefix(reqs, "../") {
			return "", fmt.Errorf("requirements file %q must be inside the project", p.Requirements)
		}
	}

	base := p.BaseImage
	if base == "" {
		base = DefaultBaseImage
	}

	workDir := "/launch"
	if resource == ResourceSageMaker {
		workDir = "/opt/ml/code"
	}

	var entry bytes.Buffer
	enc := json.NewEncoder(&entry)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ep.Command); err != nil {
		return "", fmt.Errorf("encode entry point: %w", err)
	}

	var buf bytes.Buffer
	err := dockerfileTemplate.Execute(&buf, dockerfileData{
		// Kaniko does not support BuildKit cache mounts.
		BuildKit:     builderKind == KindDocker,
		Builder:      builderKind,
		Resource:     resource,
		BaseImage:    base,
		WorkDir:      workDir,
		ProjectDir:   ProjectDir,
		Requirements: reqs,
		Entrypoint:   strings.TrimSuffix(entry.String(), "\n"),
	})
	if err != nil {
		return "", fmt.Errorf("render dockerfile: %w", err)
	}
	return buf.String(), nil
}

// EntryCommand is the full command line of a run: the entry point command
// followed by the project's override arguments.
func EntryCommand(ep EntryPoint, overrideArgs []string) []string {
	out := make([]string, 0, len(ep.Command)+len(overrideArgs))
	out = append(out, ep.Command...)
	return append(out, overrideArgs...)
}

// RequiresPushConfirmation reports whether pushes for resource must be
// confirmed by the registry response.
func RequiresPushConfirmation(resource string) bool {
	return resource == ResourceSageMaker
}
