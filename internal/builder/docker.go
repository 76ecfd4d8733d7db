package builder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

//go:generate mockgen -destination=mocks/mock_docker.go -package=mocks github.com/mattjoyce/launchbridge/internal/builder DockerClient

// DockerClient is the build tool and registry surface used by the pipeline.
type DockerClient interface {
	Build(ctx context.Context, tags []string, dockerfile, contextDir string) error
	// Push returns the raw registry response. An empty response means the
	// push produced nothing to confirm.
	Push(ctx context.Context, repository, tag string) (string, error)
}

// DockerCLI implements DockerClient by running the docker binary.
type DockerCLI struct {
	dockerBin string
}

var _ DockerClient = (*DockerCLI)(nil)

func NewDockerCLI(dockerBin string) (*DockerCLI, error) {
	dockerBin = strings.TrimSpace(dockerBin)
	if dockerBin == "" {
		dockerBin = "docker"
	}
	if _, err := exec.LookPath(dockerBin); err != nil {
		return nil, fmt.Errorf("docker binary not found: %w", err)
	}
	return &DockerCLI{dockerBin: dockerBin}, nil
}

func (d *DockerCLI) Build(ctx context.Context, tags []string, dockerfile, contextDir string) error {
	if len(tags) == 0 {
		return fmt.Errorf("at least one image tag is required")
	}

	args := []string{"build"}
	for _, t := range tags {
		args = append(args, "-t", t)
	}
	args = append(args, "-f", dockerfile, contextDir)

	cmd := exec.CommandContext(ctx, d.dockerBin, args...)
	cmd.Env = append(os.Environ(), "DOCKER_BUILDKIT=1")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker build failed: %w: %s", err, tail(string(out)))
	}
	return nil
}

func (d *DockerCLI) Push(ctx context.Context, repository, tag string) (string, error) {
	cmd := exec.CommandContext(ctx, d.dockerBin, "push", repository+":"+tag)
	out, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		return "", fmt.Errorf("docker push failed: %w: %s", err, tail(text))
	}
	return text, nil
}

// tail keeps the last lines of build tool output, where the error usually is.
func tail(s string) string {
	const maxLines = 20
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	return "...\n" + strings.Join(lines[len(lines)-maxLines:], "\n")
}
