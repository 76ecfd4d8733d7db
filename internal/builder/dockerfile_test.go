package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trainEntry = EntryPoint{Name: "main", Command: []string{"python", "train.py"}}

func TestGenerateDockerfileDocker(t *testing.T) {
	p := Project{Name: "p", Requirements: "requirements.txt"}

	got, err := GenerateDockerfile(p, trainEntry, "local-process", KindDocker)
	require.NoError(t, err)

	want := `# syntax=docker/dockerfile:1.4
# Generated by launchbridge (docker builder, local-process resource). Do not edit.
FROM python:3.11-slim

ENV PYTHONUNBUFFERED=1
WORKDIR /launch

COPY src/requirements.txt ./requirements.txt
RUN --mount=type=cache,mode=0777,target=/root/.cache/pip pip install -r requirements.txt

COPY src/ ./
ENTRYPOINT ["python","train.py"]
`
	assert.Equal(t, want, got)

	again, err := GenerateDockerfile(p, trainEntry, "local-process", KindDocker)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestGenerateDockerfileKanikoHasNoBuildKitFeatures(t *testing.T) {
	p := Project{Name: "p", BaseImage: "pytorch/pytorch:2.3.0", Requirements: "reqs/base.txt"}

	got, err := GenerateDockerfile(p, trainEntry, "kubernetes", KindKaniko)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(got, "# syntax"))
	assert.NotContains(t, got, "--mount=type=cache")
	assert.Contains(t, got, "FROM pytorch/pytorch:2.3.0\n")
	assert.Contains(t, got, "RUN pip install --no-cache-dir -r reqs/base.txt\n")
}

func TestGenerateDockerfileWithoutRequirements(t *testing.T) {
	got, err := GenerateDockerfile(Project{Name: "p"}, trainEntry, "local-process", KindKaniko)
	require.NoError(t, err)
	assert.NotContains(t, got, "pip install")
	assert.Contains(t, got, "WORKDIR /launch\n\nCOPY src/ ./\n")
}

func TestGenerateDockerfileSageMakerWorkDir(t *testing.T) {
	got, err := GenerateDockerfile(Project{Name: "p"}, trainEntry, ResourceSageMaker, KindDocker)
	require.NoError(t, err)
	assert.Contains(t, got, "WORKDIR /opt/ml/code\n")
}

func TestGenerateDockerfileErrors(t *testing.T) {
	_, err := GenerateDockerfile(Project{}, trainEntry, "local-process", "buildah")
	assert.Error(t, err)

	_, err = GenerateDockerfile(Project{}, EntryPoint{Name: "main"}, "local-process", KindDocker)
	assert.Error(t, err)

	for _, reqs := range []string{"../secrets.txt", "/etc/passwd", ".."} {
		_, err = GenerateDockerfile(Project{Requirements: reqs}, trainEntry, "local-process", KindDocker)
		assert.Error(t, err, reqs)
	}
}

func TestEntryCommand(t *testing.T) {
	ep := EntryPoint{Command: []string{"python", "train.py"}}
	got := EntryCommand(ep, []string{"--lr=0.1"})
	assert.Equal(t, []string{"python", "train.py", "--lr=0.1"}, got)
	assert.Equal(t, []string{"python", "train.py"}, ep.Command)
}

func TestImageRef(t *testing.T) {
	p := Project{Name: "Cool_Model v2!", RunID: "r9", Dir: "/src/cool", Resource: "local-process"}

	assert.Equal(t, "repo:r9", ImageRef(p, "repo", trainEntry))

	local := ImageRef(p, "", trainEntry)
	assert.Regexp(t, `^launchbridge/cool_model-v2:[0-9a-f]{12}$`, local)
	assert.Equal(t, local, ImageRef(p, "", trainEntry))

	other := p
	other.Dir = "/src/other"
	assert.NotEqual(t, local, ImageRef(other, "", trainEntry))

	// The run id does not change the local tag.
	rerun := p
	rerun.RunID = "r10"
	assert.Equal(t, local, ImageRef(rerun, "", trainEntry))

	noRun := p
	noRun.RunID = ""
	assert.Regexp(t, `^repo:[0-9a-f]{12}$`, ImageRef(noRun, "repo", trainEntry))
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"My Project":  "my-project",
		"a__b":        "a__b",
		"---":         "project",
		"":            "project",
		"Résumé Bot":  "r-sum-bot",
		"x.y-z":       "x.y-z",
		".hidden-dir": "hidden-dir",
	}
	for in, want := range tests {
		assert.Equal(t, want, slug(in), in)
	}
}
