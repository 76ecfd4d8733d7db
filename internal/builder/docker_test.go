package builder

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDocker writes a shell script standing in for the docker binary. It
// records its arguments and fails when the first argument is in failOn.
func fakeDocker(t *testing.T, failOn string) (bin, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}

	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args")
	bin = filepath.Join(dir, "docker")
	script := `#!/bin/sh
echo "$@" >> "` + argsFile + `"
if [ "$1" = "` + failOn + `" ]; then
  echo "step 3/5 : RUN pip install"
  echo "error: something broke" >&2
  exit 1
fi
if [ "$1" = "push" ]; then
  repo="${2%:*}"
  echo "The push refers to repository [$repo]"
  echo "${2##*:}: digest: sha256:abc size: 42"
fi
exit 0
`
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin, argsFile
}

func TestDockerCLIBuildAndPush(t *testing.T) {
	bin, argsFile := fakeDocker(t, "none")
	cli, err := NewDockerCLI(bin)
	require.NoError(t, err)

	require.NoError(t, cli.Build(context.Background(), []string{"repo:r1"}, "/ctx/Dockerfile.launch-autogenerated", "/ctx"))

	resp, err := cli.Push(context.Background(), "repo", "r1")
	require.NoError(t, err)
	assert.Contains(t, resp, "The push refers to repository [repo]")

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(args)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "build -t repo:r1 -f /ctx/Dockerfile.launch-autogenerated /ctx", lines[0])
	assert.Equal(t, "push repo:r1", lines[1])
}

func TestDockerCLIBuildFailureIncludesOutput(t *testing.T) {
	bin, _ := fakeDocker(t, "build")
	cli, err := NewDockerCLI(bin)
	require.NoError(t, err)

	err = cli.Build(context.Background(), []string{"img:1"}, "Dockerfile", ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docker build failed")
	assert.Contains(t, err.Error(), "something broke")

	assert.Error(t, cli.Build(context.Background(), nil, "Dockerfile", "."))
}

func TestDockerCLIPushFailure(t *testing.T) {
	bin, _ := fakeDocker(t, "push")
	cli, err := NewDockerCLI(bin)
	require.NoError(t, err)

	resp, err := cli.Push(context.Background(), "repo", "r1")
	require.Error(t, err)
	assert.Empty(t, resp)
	assert.Contains(t, err.Error(), "docker push failed")
}

func TestNewDockerCLIMissingBinary(t *testing.T) {
	_, err := NewDockerCLI(filepath.Join(t.TempDir(), "no-such-docker"))
	assert.Error(t, err)
}

func TestTail(t *testing.T) {
	var lines []string
	for i := 0; i < 30; i++ {
		lines = append(lines, "line")
	}
	out := tail(strings.Join(lines, "\n"))
	assert.True(t, strings.HasPrefix(out, "...\n"))
	assert.Len(t, strings.Split(out, "\n"), 21)
	assert.Equal(t, "short", tail("short\n"))
}
